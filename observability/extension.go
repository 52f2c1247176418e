package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension   = (*MetricsExtension)(nil)
	_ ext.JobFailed   = (*MetricsExtension)(nil)
	_ ext.JobRetried  = (*MetricsExtension)(nil)
	_ ext.JobReleased = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide queue event counters. Every counter
// carries a backend attribute.
//
// Instruments:
//   - vigil.job.failed: failure events, with first_attempt
//   - vigil.job.retried: operator retries
//   - vigil.job.released: operator releases
type MetricsExtension struct {
	JobFailed   metric.Int64Counter
	JobRetried  metric.Int64Counter
	JobReleased metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter("github.com/xraph/vigil/observability"))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On error the API returns noop instruments.
	failed, _ := meter.Int64Counter("vigil.job.failed",
		metric.WithDescription("Job execution failures observed in discovered backends"),
		metric.WithUnit("{event}"),
	)
	retried, _ := meter.Int64Counter("vigil.job.retried",
		metric.WithDescription("Jobs re-enqueued through the monitor"),
		metric.WithUnit("{job}"),
	)
	released, _ := meter.Int64Counter("vigil.job.released",
		metric.WithDescription("Jobs deleted through the monitor"),
		metric.WithUnit("{job}"),
	)
	return &MetricsExtension{JobFailed: failed, JobRetried: retried, JobReleased: released}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, ev backend.FailureEvent) error {
	m.JobFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", ev.BackendID),
		attribute.Bool("first_attempt", ev.Attempt == 1),
	))
	return nil
}

// OnJobRetried implements ext.JobRetried.
func (m *MetricsExtension) OnJobRetried(ctx context.Context, backendID, _ string) error {
	m.JobRetried.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backendID)))
	return nil
}

// OnJobReleased implements ext.JobReleased.
func (m *MetricsExtension) OnJobReleased(ctx context.Context, backendID, _ string) error {
	m.JobReleased.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backendID)))
	return nil
}
