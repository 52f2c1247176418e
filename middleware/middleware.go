package middleware

import (
	"context"
	"errors"

	"github.com/xraph/vigil"
)

// Operation names reported in Call.Op.
const (
	OpListJobs      = "list_jobs"
	OpGetJob        = "get_job"
	OpCountByStatus = "count_by_status"
	OpListJobIDs    = "list_job_ids"
	OpRetry         = "retry"
	OpRelease       = "release"
	OpTotalFailed   = "total_failed"
)

// Target identifies the backend an adapter serves.
type Target struct {
	Backend string
	Channel string
}

// Call describes one adapter invocation.
type Call struct {
	Op     string
	Target Target

	// JobID is set for calls that address a single job.
	JobID string
}

// Handler is the terminal function that performs the adapter call.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It MUST call next
// to continue the chain unless short-circuiting on error.
type Middleware func(ctx context.Context, c Call, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// The first middleware in the list is the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, c, prev)
			}
		}
		return h(ctx)
	}
}

// outcome classifies a call result for logs and metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, vigil.ErrJobNotFound):
		return "not_found"
	default:
		return "error"
	}
}
