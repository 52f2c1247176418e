// Package observability provides an OpenTelemetry metrics extension for
// vigil. The MetricsExtension implements the ext hooks to count failure
// events seen across discovered backends and the retries and releases
// requested by operators.
//
// For per-call adapter tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
