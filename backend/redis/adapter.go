package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/id"
)

var _ backend.Adapter = (*Adapter)(nil)

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithKeyPrefix namespaces every key. The default is DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(a *Adapter) { a.keys = keys{prefix: prefix} }
}

// WithClock overrides the time source used by the writer helpers.
func WithClock(fn func() time.Time) Option {
	return func(a *Adapter) { a.now = fn }
}

// Adapter is a Redis-backed queue backend.
type Adapter struct {
	backend.Observers

	client goredis.UniversalClient
	keys   keys
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Adapter over client. The caller owns the client lifecycle.
func New(client goredis.UniversalClient, opts ...Option) *Adapter {
	a := &Adapter{
		client: client,
		keys:   keys{prefix: DefaultKeyPrefix},
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Client returns the underlying Redis client.
func (a *Adapter) Client() goredis.UniversalClient { return a.client }

// Ping verifies the Redis connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// ──────────────────────────────────────────────────
// backend.Adapter
// ──────────────────────────────────────────────────

// ListJobs loads every record of the channel in one pipeline and returns
// them in the requested order.
func (a *Adapter) ListJobs(ctx context.Context, channel string, opts backend.ListOpts) ([]*backend.Record, error) {
	ids, err := a.client.ZRevRange(ctx, a.keys.channel(channel), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("vigil/redis: list jobs zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := a.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jID := range ids {
		cmds[i] = pipe.HGetAll(ctx, a.keys.job(jID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("vigil/redis: list jobs hgetall: %w", err)
	}

	out := make([]*backend.Record, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue // released between the two reads
		}
		out = append(out, mapToRecord(vals))
	}

	backend.Sort(out, opts.Order)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// GetJob returns one record of the channel.
func (a *Adapter) GetJob(ctx context.Context, channel, jobID string) (*backend.Record, error) {
	vals, err := a.client.HGetAll(ctx, a.keys.job(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("vigil/redis: get job: %w", err)
	}
	if len(vals) == 0 || vals[fieldChannel] != channel {
		return nil, vigil.ErrJobNotFound
	}
	return mapToRecord(vals), nil
}

// CountByStatus classifies every job of the channel from two hash fields.
func (a *Adapter) CountByStatus(ctx context.Context, channel string) (backend.Stats, error) {
	var s backend.Stats
	err := a.scanStatus(ctx, channel, func(_ string, st backend.Status) { s.Add(st) })
	if err != nil {
		return backend.Stats{}, fmt.Errorf("vigil/redis: count by status: %w", err)
	}
	return s, nil
}

// ListJobIDs returns the channel's ids, newest first.
func (a *Adapter) ListJobIDs(ctx context.Context, channel string, failedOnly bool) ([]string, error) {
	var ids []string
	err := a.scanStatus(ctx, channel, func(jID string, st backend.Status) {
		if !failedOnly || st == backend.StatusFailed {
			ids = append(ids, jID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("vigil/redis: list job ids: %w", err)
	}
	return ids, nil
}

// Retry clears the execution state of a job so the engine picks it up again.
func (a *Adapter) Retry(ctx context.Context, jobID string) error {
	key := a.keys.job(jobID)
	exists, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("vigil/redis: retry exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("vigil/redis: retry %s: %w", jobID, vigil.ErrJobNotFound)
	}

	pipe := a.client.TxPipeline()
	pipe.HDel(ctx, key, fieldReservedAt, fieldFailedAt, fieldUpdatedAt)
	pipe.HSet(ctx, key,
		fieldProgress, "0",
		fieldProgressLabel, "",
		fieldAttempt, "0",
		fieldFail, "0",
		fieldError, "",
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vigil/redis: retry: %w", err)
	}
	return nil
}

// Release deletes a job and removes it from its channel.
func (a *Adapter) Release(ctx context.Context, jobID string) error {
	key := a.keys.job(jobID)
	channel, err := a.client.HGet(ctx, key, fieldChannel).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("vigil/redis: release %s: %w", jobID, vigil.ErrJobNotFound)
		}
		return fmt.Errorf("vigil/redis: release get channel: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, a.keys.channel(channel), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vigil/redis: release: %w", err)
	}
	return nil
}

// TotalFailed counts failed jobs across every known channel.
func (a *Adapter) TotalFailed(ctx context.Context) (int64, error) {
	channels, err := a.client.SMembers(ctx, a.keys.channels()).Result()
	if err != nil {
		return 0, fmt.Errorf("vigil/redis: total failed smembers: %w", err)
	}
	var n int64
	for _, ch := range channels {
		err := a.scanStatus(ctx, ch, func(_ string, st backend.Status) {
			if st == backend.StatusFailed {
				n++
			}
		})
		if err != nil {
			return 0, fmt.Errorf("vigil/redis: total failed: %w", err)
		}
	}
	return n, nil
}

// scanStatus calls fn for every job of the channel, newest first.
func (a *Adapter) scanStatus(ctx context.Context, channel string, fn func(jobID string, st backend.Status)) error {
	ids, err := a.client.ZRevRange(ctx, a.keys.channel(channel), 0, -1).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := a.client.Pipeline()
	cmds := make([]*goredis.SliceCmd, len(ids))
	for i, jID := range ids {
		cmds[i] = pipe.HMGet(ctx, a.keys.job(jID), statusFields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != len(statusFields) || (vals[0] == nil && vals[1] == nil) {
			continue
		}
		fn(ids[i], statusOf(vals))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Writer helpers
// ──────────────────────────────────────────────────

// Put stores rec and indexes it in its channel. An empty id is assigned
// from a counter and a zero PushedAt is set to now. It returns the id.
func (a *Adapter) Put(ctx context.Context, rec *backend.Record) (string, error) {
	r := rec.Clone()
	if r.ID == "" {
		n, err := a.client.Incr(ctx, a.keys.sequence()).Result()
		if err != nil {
			return "", fmt.Errorf("vigil/redis: put next id: %w", err)
		}
		r.ID = strconv.FormatInt(n, 10)
	}
	if r.PushedAt.IsZero() {
		r.PushedAt = a.now()
	}

	pipe := a.client.TxPipeline()
	pipe.HSet(ctx, a.keys.job(r.ID), recordToMap(r))
	pipe.ZAdd(ctx, a.keys.channel(r.Channel), goredis.Z{
		Score:  float64(r.PushedAt.UnixMilli()),
		Member: r.ID,
	})
	pipe.SAdd(ctx, a.keys.channels(), r.Channel)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("vigil/redis: put: %w", err)
	}
	return r.ID, nil
}

// Reserve marks a job as leased and counts the attempt.
func (a *Adapter) Reserve(ctx context.Context, jobID string) error {
	key := a.keys.job(jobID)
	exists, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("vigil/redis: reserve exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("vigil/redis: reserve %s: %w", jobID, vigil.ErrJobNotFound)
	}

	now := formatUnix(a.now())
	pipe := a.client.TxPipeline()
	pipe.HSet(ctx, key, fieldReservedAt, now, fieldUpdatedAt, now)
	pipe.HIncrBy(ctx, key, fieldAttempt, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vigil/redis: reserve: %w", err)
	}
	return nil
}

// Fail records an execution failure and publishes a FailureEvent. Observers
// receive it through Listen, in this process or any other.
func (a *Adapter) Fail(ctx context.Context, jobID, message string) error {
	key := a.keys.job(jobID)
	now := a.now()

	vals, err := a.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("vigil/redis: fail get job: %w", err)
	}
	if len(vals) == 0 {
		return fmt.Errorf("vigil/redis: fail %s: %w", jobID, vigil.ErrJobNotFound)
	}
	r := mapToRecord(vals)

	ev := backend.FailureEvent{
		ID:          id.NewFailureID(),
		Channel:     r.Channel,
		JobID:       r.ID,
		Description: r.Description,
		Attempt:     r.Attempt,
		Error:       message,
		OccurredAt:  now,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("vigil/redis: fail encode event: %w", err)
	}

	ts := formatUnix(now)
	pipe := a.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldFail, "1",
		fieldFailedAt, ts,
		fieldUpdatedAt, ts,
		fieldError, message,
	)
	pipe.Publish(ctx, a.keys.failures(), body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vigil/redis: fail: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Failure stream
// ──────────────────────────────────────────────────

// Listen subscribes to the failure channel and hands every event to the
// registered observers. It blocks until ctx is canceled.
func (a *Adapter) Listen(ctx context.Context) error {
	sub := a.client.Subscribe(ctx, a.keys.failures())
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("vigil/redis: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				a.logger.Warn("vigil/redis: dropping malformed failure event",
					slog.String("error", err.Error()),
				)
				continue
			}
			a.Emit(ctx, ev)
		}
	}
}

func decodeEvent(payload string) (backend.FailureEvent, error) {
	var ev backend.FailureEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return backend.FailureEvent{}, err
	}
	if ev.JobID == "" {
		return backend.FailureEvent{}, errors.New("missing job id")
	}
	return ev, nil
}
