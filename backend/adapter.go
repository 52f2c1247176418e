package backend

import (
	"context"
	"time"

	"github.com/xraph/vigil/id"
)

// ListOpts controls ListJobs.
type ListOpts struct {
	// Limit caps the number of records returned. Zero means no limit.
	Limit int

	// Order is the requested sort. Callers re-sort what they receive, but an
	// adapter that applies Limit must apply Order first, or the wrong
	// records survive the cut.
	Order Order
}

// Adapter is the contract vigil requires from a queue backend.
//
// GetJob must return an error matching vigil.ErrJobNotFound when the id is
// absent from the channel. Retry and Release act on the id alone; callers
// check channel membership first.
type Adapter interface {
	ListJobs(ctx context.Context, channel string, opts ListOpts) ([]*Record, error)
	GetJob(ctx context.Context, channel, jobID string) (*Record, error)
	CountByStatus(ctx context.Context, channel string) (Stats, error)
	ListJobIDs(ctx context.Context, channel string, failedOnly bool) ([]string, error)
	Retry(ctx context.Context, jobID string) error
	Release(ctx context.Context, jobID string) error
	TotalFailed(ctx context.Context) (int64, error)

	// Subscribe registers an observer for job execution failures and
	// returns a function that removes it.
	Subscribe(fn FailureObserver) (unsubscribe func())
}

// FailureEvent describes one failed execution attempt.
type FailureEvent struct {
	ID          id.FailureID `json:"id"`
	BackendID   string       `json:"backendId,omitempty"`
	Channel     string       `json:"channel"`
	JobID       string       `json:"jobId"`
	Description string       `json:"description,omitempty"`
	Attempt     int          `json:"attempt"`
	Error       string       `json:"error,omitempty"`
	OccurredAt  time.Time    `json:"occurredAt"`
}

// FailureObserver receives failure events. It runs on the goroutine that
// emitted the event.
type FailureObserver func(ctx context.Context, ev FailureEvent)
