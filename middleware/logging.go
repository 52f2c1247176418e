package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each adapter call. Successful calls
// and missing jobs log at Debug, other failures at Warn.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		attrs := []any{
			slog.String("backend", c.Target.Backend),
			slog.String("channel", c.Target.Channel),
			slog.String("op", c.Op),
			slog.Duration("elapsed", elapsed),
		}
		if c.JobID != "" {
			attrs = append(attrs, slog.String("job_id", c.JobID))
		}

		switch outcome(err) {
		case "ok":
			logger.Debug("adapter call completed", attrs...)
		case "not_found":
			logger.Debug("adapter call found no job", attrs...)
		default:
			logger.Warn("adapter call failed", append(attrs, slog.String("error", err.Error()))...)
		}
		return err
	}
}
