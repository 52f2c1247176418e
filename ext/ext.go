package ext

import (
	"context"

	"github.com/xraph/vigil/backend"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job hooks
// ──────────────────────────────────────────────────

// JobFailed is called for every failed execution attempt reported by a
// discovered backend, including attempts that will be retried.
type JobFailed interface {
	OnJobFailed(ctx context.Context, ev backend.FailureEvent) error
}

// JobRetried is called after a job has been re-enqueued through the monitor.
type JobRetried interface {
	OnJobRetried(ctx context.Context, backendID, jobID string) error
}

// JobReleased is called after a job has been deleted through the monitor.
type JobReleased interface {
	OnJobReleased(ctx context.Context, backendID, jobID string) error
}

// ──────────────────────────────────────────────────
// Other hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
