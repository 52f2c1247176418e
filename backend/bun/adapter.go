package bunbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/id"
)

var _ backend.Adapter = (*Adapter)(nil)

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets the logger for the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithClock overrides the time source used by the writer helpers.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// Adapter is a Bun ORM queue backend. The caller owns the *bun.DB
// lifecycle; Adapter never closes it.
type Adapter struct {
	backend.Observers

	db     *bun.DB
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Bun adapter.
func New(db *bun.DB, opts ...Option) *Adapter {
	a := &Adapter{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DB returns the underlying *bun.DB.
func (a *Adapter) DB() *bun.DB { return a.db }

// Migrate creates the queue table and its indexes if they are missing.
func (a *Adapter) Migrate(ctx context.Context) error {
	_, err := a.db.NewCreateTable().
		Model((*queueModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("vigil/bun: create queue table: %w", err)
	}

	_, err = a.db.NewCreateIndex().
		Model((*queueModel)(nil)).
		Index("idx_queue_channel_pushed").
		IfNotExists().
		Column("channel", "time_pushed").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("vigil/bun: create queue index: %w", err)
	}

	a.logger.Debug("queue table ready")
	return nil
}

// Ping checks database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// ──────────────────────────────────────────────────
// backend.Adapter
// ──────────────────────────────────────────────────

// ListJobs returns the channel's records in the requested order.
func (a *Adapter) ListJobs(ctx context.Context, channel string, opts backend.ListOpts) ([]*backend.Record, error) {
	var models []queueModel
	q := a.db.NewSelect().Model(&models).
		Where("channel = ?", channel)

	if opts.Order == backend.OrderTriage {
		q = q.OrderExpr("CASE WHEN fail THEN 2 WHEN date_reserved IS NOT NULL THEN 0 ELSE 1 END")
	}
	q = q.OrderExpr("time_pushed DESC").OrderExpr("id DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("vigil/bun: list jobs: %w", err)
	}

	out := make([]*backend.Record, len(models))
	for i := range models {
		out[i] = fromQueueModel(&models[i])
	}
	return out, nil
}

// GetJob returns one record of the channel.
func (a *Adapter) GetJob(ctx context.Context, channel, jobID string) (*backend.Record, error) {
	n, ok := parseID(jobID)
	if !ok {
		return nil, vigil.ErrJobNotFound
	}
	m := new(queueModel)
	err := a.db.NewSelect().Model(m).
		Where("id = ?", n).
		Where("channel = ?", channel).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, vigil.ErrJobNotFound
		}
		return nil, fmt.Errorf("vigil/bun: get job: %w", err)
	}
	return fromQueueModel(m), nil
}

// CountByStatus computes all counters in one aggregate query.
func (a *Adapter) CountByStatus(ctx context.Context, channel string) (backend.Stats, error) {
	var s backend.Stats
	err := a.db.NewSelect().
		Model((*queueModel)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(CASE WHEN NOT fail AND date_reserved IS NULL THEN 1 ELSE 0 END), 0)").
		ColumnExpr("COALESCE(SUM(CASE WHEN NOT fail AND date_reserved IS NOT NULL THEN 1 ELSE 0 END), 0)").
		ColumnExpr("COALESCE(SUM(CASE WHEN fail THEN 1 ELSE 0 END), 0)").
		Where("channel = ?", channel).
		Scan(ctx, &s.Total, &s.Waiting, &s.Reserved, &s.Failed)
	if err != nil {
		return backend.Stats{}, fmt.Errorf("vigil/bun: count by status: %w", err)
	}
	return s, nil
}

// ListJobIDs returns the channel's ids, newest first.
func (a *Adapter) ListJobIDs(ctx context.Context, channel string, failedOnly bool) ([]string, error) {
	var nums []int64
	q := a.db.NewSelect().
		Model((*queueModel)(nil)).
		Column("id").
		Where("channel = ?", channel)
	if failedOnly {
		q = q.Where("fail")
	}
	err := q.OrderExpr("time_pushed DESC").OrderExpr("id DESC").Scan(ctx, &nums)
	if err != nil {
		return nil, fmt.Errorf("vigil/bun: list job ids: %w", err)
	}

	ids := make([]string, len(nums))
	for i, n := range nums {
		ids[i] = strconv.FormatInt(n, 10)
	}
	return ids, nil
}

// Retry clears the execution state of a job.
func (a *Adapter) Retry(ctx context.Context, jobID string) error {
	return a.update(ctx, "retry", jobID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("date_reserved = NULL").
			Set("time_updated = NULL").
			Set("date_failed = NULL").
			Set("progress = 0").
			Set("progress_label = NULL").
			Set("attempt = 0").
			Set("fail = ?", false).
			Set("error = NULL")
	})
}

// Release deletes a job.
func (a *Adapter) Release(ctx context.Context, jobID string) error {
	n, ok := parseID(jobID)
	if !ok {
		return fmt.Errorf("vigil/bun: release %s: %w", jobID, vigil.ErrJobNotFound)
	}
	res, err := a.db.NewDelete().
		Model((*queueModel)(nil)).
		Where("id = ?", n).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("vigil/bun: release: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 { //nolint:errcheck // drivers used here always report it
		return fmt.Errorf("vigil/bun: release %s: %w", jobID, vigil.ErrJobNotFound)
	}
	return nil
}

// TotalFailed counts failed jobs across all channels.
func (a *Adapter) TotalFailed(ctx context.Context) (int64, error) {
	n, err := a.db.NewSelect().
		Model((*queueModel)(nil)).
		Where("fail").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("vigil/bun: total failed: %w", err)
	}
	return int64(n), nil
}

// ──────────────────────────────────────────────────
// Writer helpers
// ──────────────────────────────────────────────────

// Put inserts rec and returns the id the database assigned.
func (a *Adapter) Put(ctx context.Context, rec *backend.Record) (string, error) {
	m := toQueueModel(rec)
	if m.TimePushed.IsZero() {
		m.TimePushed = a.now().UTC()
	}
	if _, err := a.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return "", fmt.Errorf("vigil/bun: put: %w", err)
	}
	return strconv.FormatInt(m.ID, 10), nil
}

// Reserve marks a job as leased and counts the attempt.
func (a *Adapter) Reserve(ctx context.Context, jobID string) error {
	now := a.now().UTC()
	return a.update(ctx, "reserve", jobID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("date_reserved = ?", now).
			Set("time_updated = ?", now).
			Set("attempt = attempt + 1")
	})
}

// Fail records an execution failure and notifies local subscribers.
func (a *Adapter) Fail(ctx context.Context, jobID, message string) error {
	now := a.now().UTC()
	err := a.update(ctx, "fail", jobID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("fail = ?", true).
			Set("date_failed = ?", now).
			Set("time_updated = ?", now).
			Set("error = ?", message)
	})
	if err != nil {
		return err
	}

	n, _ := parseID(jobID)
	m := new(queueModel)
	if err := a.db.NewSelect().Model(m).Where("id = ?", n).Scan(ctx); err != nil {
		return fmt.Errorf("vigil/bun: fail: reload %s: %w", jobID, err)
	}

	a.Emit(ctx, backend.FailureEvent{
		ID:          id.NewFailureID(),
		Channel:     m.Channel,
		JobID:       jobID,
		Description: m.Description,
		Attempt:     m.Attempt,
		Error:       message,
		OccurredAt:  now,
	})
	return nil
}

func (a *Adapter) update(ctx context.Context, op, jobID string, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	n, ok := parseID(jobID)
	if !ok {
		return fmt.Errorf("vigil/bun: %s %s: %w", op, jobID, vigil.ErrJobNotFound)
	}
	q := a.db.NewUpdate().Model((*queueModel)(nil)).Where("id = ?", n)
	res, err := set(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("vigil/bun: %s: %w", op, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 { //nolint:errcheck // drivers used here always report it
		return fmt.Errorf("vigil/bun: %s %s: %w", op, jobID, vigil.ErrJobNotFound)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func parseID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
