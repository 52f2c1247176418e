// Package memory implements backend.Adapter fully in memory. It is safe for
// concurrent access and is intended for tests, demos and embedding vigil
// next to an in-process engine that writes through Put, Reserve and Fail.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
)

var _ backend.Adapter = (*Adapter)(nil)

// Adapter is an in-memory queue backend.
type Adapter struct {
	backend.Observers

	mu     sync.RWMutex
	jobs   map[string]*backend.Record
	nextID int64
	now    func() time.Time
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(a *Adapter) { a.now = fn }
}

// New returns an empty Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		jobs: make(map[string]*backend.Record),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// ──────────────────────────────────────────────────
// Writer helpers
// ──────────────────────────────────────────────────

// Put stores a copy of rec, replacing any record with the same id. An empty
// id is assigned the next sequence number, and a zero PushedAt is set to now.
// It returns the stored id.
func (a *Adapter) Put(_ context.Context, rec *backend.Record) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cp := rec.Clone()
	if cp.ID == "" {
		a.nextID++
		cp.ID = strconv.FormatInt(a.nextID, 10)
	} else if n, err := strconv.ParseInt(cp.ID, 10, 64); err == nil && n > a.nextID {
		a.nextID = n
	}
	if cp.PushedAt.IsZero() {
		cp.PushedAt = a.now()
	}
	a.jobs[cp.ID] = cp
	return cp.ID, nil
}

// Reserve marks a job as leased by a worker and counts the attempt.
func (a *Adapter) Reserve(_ context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.jobs[jobID]
	if !ok {
		return fmt.Errorf("vigil/memory: reserve %s: %w", jobID, vigil.ErrJobNotFound)
	}
	now := a.now()
	r.ReservedAt = &now
	r.UpdatedAt = &now
	r.Attempt++
	return nil
}

// Fail records an execution failure and emits a FailureEvent to observers.
func (a *Adapter) Fail(ctx context.Context, jobID, message string) error {
	a.mu.Lock()
	r, ok := a.jobs[jobID]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("vigil/memory: fail %s: %w", jobID, vigil.ErrJobNotFound)
	}
	now := a.now()
	r.Fail = true
	r.FailedAt = &now
	r.UpdatedAt = &now
	r.Error = message
	ev := backend.FailureEvent{
		Channel:     r.Channel,
		JobID:       r.ID,
		Description: r.Description,
		Attempt:     r.Attempt,
		Error:       message,
		OccurredAt:  now,
	}
	a.mu.Unlock()

	a.Emit(ctx, ev)
	return nil
}

// ──────────────────────────────────────────────────
// backend.Adapter
// ──────────────────────────────────────────────────

// ListJobs returns copies of the channel's records in the requested order.
func (a *Adapter) ListJobs(_ context.Context, channel string, opts backend.ListOpts) ([]*backend.Record, error) {
	a.mu.RLock()
	out := make([]*backend.Record, 0, len(a.jobs))
	for _, r := range a.jobs {
		if r.Channel == channel {
			out = append(out, r.Clone())
		}
	}
	a.mu.RUnlock()

	backend.Sort(out, opts.Order)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// GetJob returns a copy of one record in the channel.
func (a *Adapter) GetJob(_ context.Context, channel, jobID string) (*backend.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	r, ok := a.jobs[jobID]
	if !ok || r.Channel != channel {
		return nil, vigil.ErrJobNotFound
	}
	return r.Clone(), nil
}

// CountByStatus computes stats under a single read lock.
func (a *Adapter) CountByStatus(_ context.Context, channel string) (backend.Stats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var s backend.Stats
	for _, r := range a.jobs {
		if r.Channel == channel {
			s.Add(r.Status())
		}
	}
	return s, nil
}

// ListJobIDs returns the ids in the channel, newest first.
func (a *Adapter) ListJobIDs(ctx context.Context, channel string, failedOnly bool) ([]string, error) {
	records, err := a.ListJobs(ctx, channel, backend.ListOpts{Order: backend.OrderPushedDesc})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if failedOnly && !r.Fail {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Retry resets a job so it will be picked up again.
func (a *Adapter) Retry(_ context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.jobs[jobID]
	if !ok {
		return fmt.Errorf("vigil/memory: retry %s: %w", jobID, vigil.ErrJobNotFound)
	}
	r.ResetForRetry()
	return nil
}

// Release deletes a job.
func (a *Adapter) Release(_ context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.jobs[jobID]; !ok {
		return fmt.Errorf("vigil/memory: release %s: %w", jobID, vigil.ErrJobNotFound)
	}
	delete(a.jobs, jobID)
	return nil
}

// TotalFailed counts failed jobs across all channels.
func (a *Adapter) TotalFailed(_ context.Context) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var n int64
	for _, r := range a.jobs {
		if r.Fail {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored jobs across all channels.
func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.jobs)
}
