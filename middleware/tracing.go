package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for vigil tracing.
const tracerName = "github.com/xraph/vigil"

// Tracing returns middleware that wraps each adapter call in an
// OpenTelemetry span named "vigil.adapter.<op>".
//
// Span attributes: vigil.backend, vigil.channel, vigil.op and, for single
// job calls, vigil.job.id. A missing job is recorded as an event rather
// than an error status.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("vigil.backend", c.Target.Backend),
			attribute.String("vigil.channel", c.Target.Channel),
			attribute.String("vigil.op", c.Op),
		}
		if c.JobID != "" {
			attrs = append(attrs, attribute.String("vigil.job.id", c.JobID))
		}

		ctx, span := tracer.Start(ctx, "vigil.adapter."+c.Op,
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		err := next(ctx)
		switch outcome(err) {
		case "ok":
			span.SetStatus(codes.Ok, "")
		case "not_found":
			span.AddEvent("job not found")
			span.SetStatus(codes.Ok, "")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
