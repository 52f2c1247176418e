package observability_test

import (
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/ext"
	"github.com/xraph/vigil/observability"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

// sumOf returns the total of an int64 counter, optionally filtered by one
// attribute.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if key != "" {
					v, _ := dp.Attributes.Value(attribute.Key(key))
					if v.Emit() != value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_JobFailed(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnJobFailed(ctx, backend.FailureEvent{BackendID: "emailQueue", Attempt: 1})
	_ = e.OnJobFailed(ctx, backend.FailureEvent{BackendID: "emailQueue", Attempt: 2})

	if got := sumOf(t, reader, "vigil.job.failed", "", ""); got != 2 {
		t.Errorf("vigil.job.failed: want 2, got %d", got)
	}
	if got := sumOf(t, reader, "vigil.job.failed", "first_attempt", "true"); got != 1 {
		t.Errorf("vigil.job.failed{first_attempt=true}: want 1, got %d", got)
	}
}

func TestMetricsExtension_RetriedAndReleased(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnJobRetried(ctx, "emailQueue", "3")
	_ = e.OnJobReleased(ctx, "emailQueue", "1")
	_ = e.OnJobReleased(ctx, "reports", "9")

	if got := sumOf(t, reader, "vigil.job.retried", "backend", "emailQueue"); got != 1 {
		t.Errorf("vigil.job.retried: want 1, got %d", got)
	}
	if got := sumOf(t, reader, "vigil.job.released", "", ""); got != 2 {
		t.Errorf("vigil.job.released: want 2, got %d", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	reg.EmitJobFailed(ctx, backend.FailureEvent{BackendID: "q", Attempt: 1})
	reg.EmitJobRetried(ctx, "q", "1")
	reg.EmitJobReleased(ctx, "q", "1")

	for _, name := range []string{"vigil.job.failed", "vigil.job.retried", "vigil.job.released"} {
		if got := sumOf(t, reader, name, "", ""); got != 1 {
			t.Errorf("%s: want 1, got %d", name, got)
		}
	}
}
