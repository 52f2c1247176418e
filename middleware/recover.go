package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the adapter.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c Call, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("adapter panicked",
					slog.String("backend", c.Target.Backend),
					slog.String("op", c.Op),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in %s on backend %s: %v", c.Op, c.Target.Backend, r)
			}
		}()
		return next(ctx)
	}
}
