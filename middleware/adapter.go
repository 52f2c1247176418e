package middleware

import (
	"context"

	"github.com/xraph/vigil/backend"
)

var _ backend.Adapter = (*wrapped)(nil)

// Wrap returns an adapter whose calls run through the middleware chain.
func Wrap(a backend.Adapter, t Target, mws ...Middleware) backend.Adapter {
	if len(mws) == 0 {
		return a
	}
	return &wrapped{inner: a, target: t, chain: Chain(mws...)}
}

type wrapped struct {
	inner  backend.Adapter
	target Target
	chain  Middleware
}

func (w *wrapped) run(ctx context.Context, op, jobID string, fn Handler) error {
	return w.chain(ctx, Call{Op: op, Target: w.target, JobID: jobID}, fn)
}

func (w *wrapped) ListJobs(ctx context.Context, channel string, opts backend.ListOpts) ([]*backend.Record, error) {
	var out []*backend.Record
	err := w.run(ctx, OpListJobs, "", func(ctx context.Context) error {
		var err error
		out, err = w.inner.ListJobs(ctx, channel, opts)
		return err
	})
	return out, err
}

func (w *wrapped) GetJob(ctx context.Context, channel, jobID string) (*backend.Record, error) {
	var out *backend.Record
	err := w.run(ctx, OpGetJob, jobID, func(ctx context.Context) error {
		var err error
		out, err = w.inner.GetJob(ctx, channel, jobID)
		return err
	})
	return out, err
}

func (w *wrapped) CountByStatus(ctx context.Context, channel string) (backend.Stats, error) {
	var out backend.Stats
	err := w.run(ctx, OpCountByStatus, "", func(ctx context.Context) error {
		var err error
		out, err = w.inner.CountByStatus(ctx, channel)
		return err
	})
	return out, err
}

func (w *wrapped) ListJobIDs(ctx context.Context, channel string, failedOnly bool) ([]string, error) {
	var out []string
	err := w.run(ctx, OpListJobIDs, "", func(ctx context.Context) error {
		var err error
		out, err = w.inner.ListJobIDs(ctx, channel, failedOnly)
		return err
	})
	return out, err
}

func (w *wrapped) Retry(ctx context.Context, jobID string) error {
	return w.run(ctx, OpRetry, jobID, func(ctx context.Context) error {
		return w.inner.Retry(ctx, jobID)
	})
}

func (w *wrapped) Release(ctx context.Context, jobID string) error {
	return w.run(ctx, OpRelease, jobID, func(ctx context.Context) error {
		return w.inner.Release(ctx, jobID)
	})
}

func (w *wrapped) TotalFailed(ctx context.Context) (int64, error) {
	var out int64
	err := w.run(ctx, OpTotalFailed, "", func(ctx context.Context) error {
		var err error
		out, err = w.inner.TotalFailed(ctx)
		return err
	})
	return out, err
}

func (w *wrapped) Subscribe(fn backend.FailureObserver) func() {
	return w.inner.Subscribe(fn)
}
