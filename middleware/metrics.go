package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for vigil metrics.
const meterName = "github.com/xraph/vigil"

// Metrics returns middleware that records per-call adapter metrics using
// the global OTel MeterProvider. Without a configured provider the
// instruments are noops.
//
// Instruments:
//   - vigil.adapter.duration (Float64Histogram): call time in seconds
//   - vigil.adapter.calls (Int64Counter): total calls
//
// Both carry the attributes backend, op and status ("ok", "not_found" or
// "error").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"vigil.adapter.duration",
		metric.WithDescription("Duration of backend adapter calls in seconds"),
		metric.WithUnit("s"),
	)
	calls, _ := meter.Int64Counter(
		"vigil.adapter.calls",
		metric.WithDescription("Total number of backend adapter calls"),
		metric.WithUnit("{call}"),
	)

	return func(ctx context.Context, c Call, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("backend", c.Target.Backend),
			attribute.String("op", c.Op),
			attribute.String("status", outcome(err)),
		)
		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)

		return err
	}
}
