// Package middleware provides composable middleware around backend adapter
// calls.
//
// A [Middleware] wraps one adapter call (list, get, count, retry, release,
// total failed). [Wrap] applies a chain to every call of a backend.Adapter;
// the discovery registry does this for each resolved backend when
// configured with discovery.WithMiddleware. Middleware are applied
// right-to-left: the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → adapter
//	reg := discovery.New(discovery.WithMiddleware(
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	))
//
// # Built-in Middleware
//
//   - [Logging] logs backend, operation, duration and outcome
//   - [Recover] catches adapter panics and converts them to errors
//   - [Tracing] wraps each call in an OpenTelemetry span
//   - [Metrics] records per-call duration and outcome counters
//
// Failure subscriptions pass straight through to the wrapped adapter.
package middleware
