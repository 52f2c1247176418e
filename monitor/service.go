package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/ext"
	"github.com/xraph/vigil/payload"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPayloads sets the payload registry used to render job detail.
func WithPayloads(r *payload.Registry) Option {
	return func(s *Service) { s.payloads = r }
}

// WithExtensions sets the registry notified after retries and releases.
func WithExtensions(r *ext.Registry) Option {
	return func(s *Service) { s.extensions = r }
}

// Service implements the monitoring and control operations.
type Service struct {
	registry   *discovery.Registry
	settings   vigil.SettingsSource
	payloads   *payload.Registry
	extensions *ext.Registry
	logger     *slog.Logger
}

// New creates a Service over the given registry and settings.
func New(reg *discovery.Registry, settings vigil.SettingsSource, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		settings: settings,
		payloads: payload.NewRegistry(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.extensions == nil {
		s.extensions = ext.NewRegistry(s.logger)
	}
	return s
}

// Registry returns the discovery registry.
func (s *Service) Registry() *discovery.Registry { return s.registry }

// Settings loads the current settings, falling back to defaults when the
// source fails.
func (s *Service) Settings(ctx context.Context) vigil.Settings {
	st, err := s.settings.Settings(ctx)
	if err != nil {
		s.logger.Warn("monitor: settings unavailable, using defaults",
			slog.String("error", err.Error()),
		)
		return vigil.DefaultSettings()
	}
	return st
}

func (s *Service) resolve(ctx context.Context, backendID string) (*discovery.Backend, error) {
	b, ok := s.registry.Resolve(ctx, backendID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", vigil.ErrBackendNotFound, backendID)
	}
	return b, nil
}

// adapterError keeps not-found errors recognizable and marks everything
// else as an adapter failure.
func adapterError(op string, err error) error {
	if errors.Is(err, vigil.ErrJobNotFound) {
		return fmt.Errorf("vigil/monitor: %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", vigil.ErrAdapter, op, err)
}

// ──────────────────────────────────────────────────
// Read operations
// ──────────────────────────────────────────────────

// ListJobs returns up to limit jobs of a backend in triage order, together
// with the channel's stats. A limit of zero or less uses the configured
// JobsPerPage.
func (s *Service) ListJobs(ctx context.Context, backendID string, limit int) (*JobList, error) {
	b, err := s.resolve(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.Settings(ctx).JobsPerPage
	}

	records, err := b.Adapter.ListJobs(ctx, b.Channel, backend.ListOpts{
		Limit: limit,
		Order: backend.OrderTriage,
	})
	if err != nil {
		return nil, adapterError("list jobs", err)
	}
	backend.Sort(records, backend.OrderTriage)
	if len(records) > limit {
		records = records[:limit]
	}

	stats, err := b.Adapter.CountByStatus(ctx, b.Channel)
	if err != nil {
		return nil, adapterError("count jobs", err)
	}

	out := &JobList{Jobs: make([]JobView, len(records)), Stats: stats}
	for i, r := range records {
		out.Jobs[i] = newJobView(r)
	}
	return out, nil
}

// JobDetail returns one job with execution metadata and its rendered
// payload. A payload that cannot be rendered yields a nil Data field; the
// call itself still succeeds.
func (s *Service) JobDetail(ctx context.Context, backendID, jobID string) (*JobDetail, error) {
	b, err := s.resolve(ctx, backendID)
	if err != nil {
		return nil, err
	}

	r, err := b.Adapter.GetJob(ctx, b.Channel, jobID)
	if err != nil {
		return nil, adapterError("get job", err)
	}

	d := newJobDetail(r)
	if len(r.Payload) > 0 {
		rendering, err := s.payloads.Render(r.Class, r.Payload)
		if err != nil {
			s.logger.Debug("monitor: payload not rendered",
				slog.String("backend", backendID),
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		} else {
			d.Data = rendering
		}
	}
	return d, nil
}

// Overview summarizes every discovered backend. Backends are read one after
// another; a failing backend carries its error and does not affect the
// others.
func (s *Service) Overview(ctx context.Context) []QueueSummary {
	backends := s.registry.List(ctx)
	out := make([]QueueSummary, 0, len(backends))
	for _, b := range backends {
		sum := QueueSummary{ID: b.ID, Label: b.Label, Channel: b.Channel}
		stats, err := b.Adapter.CountByStatus(ctx, b.Channel)
		if err != nil {
			s.logger.Warn("monitor: backend stats unavailable",
				slog.String("backend", b.ID),
				slog.String("error", err.Error()),
			)
			sum.Error = err.Error()
		} else {
			sum.Stats = &stats
		}
		out = append(out, sum)
	}
	return out
}

// FailedCount sums failed jobs across every discovered backend. Backends
// that cannot report are logged and left out.
func (s *Service) FailedCount(ctx context.Context) int64 {
	var total int64
	for _, b := range s.registry.List(ctx) {
		n, err := b.Adapter.TotalFailed(ctx)
		if err != nil {
			s.logger.Warn("monitor: failed count unavailable",
				slog.String("backend", b.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		total += n
	}
	return total
}

// ──────────────────────────────────────────────────
// Write operations
// ──────────────────────────────────────────────────

// Retry re-enqueues one job after checking it belongs to the backend's
// channel.
func (s *Service) Retry(ctx context.Context, backendID, jobID string) error {
	b, err := s.ensureJob(ctx, backendID, jobID)
	if err != nil {
		return err
	}
	if err := b.Adapter.Retry(ctx, jobID); err != nil {
		return adapterError("retry", err)
	}
	s.logger.Info("job retried", slog.String("backend", backendID), slog.String("job_id", jobID))
	s.extensions.EmitJobRetried(ctx, backendID, jobID)
	return nil
}

// Release deletes one job after checking it belongs to the backend's
// channel.
func (s *Service) Release(ctx context.Context, backendID, jobID string) error {
	b, err := s.ensureJob(ctx, backendID, jobID)
	if err != nil {
		return err
	}
	if err := b.Adapter.Release(ctx, jobID); err != nil {
		return adapterError("release", err)
	}
	s.logger.Info("job released", slog.String("backend", backendID), slog.String("job_id", jobID))
	s.extensions.EmitJobReleased(ctx, backendID, jobID)
	return nil
}

func (s *Service) ensureJob(ctx context.Context, backendID, jobID string) (*discovery.Backend, error) {
	b, err := s.resolve(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if _, err := b.Adapter.GetJob(ctx, b.Channel, jobID); err != nil {
		return nil, adapterError("get job", err)
	}
	return b, nil
}

// RetryAllFailed retries every failed job in the backend's channel. Each id
// is attempted independently; failures are collected in the result.
func (s *Service) RetryAllFailed(ctx context.Context, backendID string) (*BulkResult, error) {
	return s.bulk(ctx, backendID, "retry", true, func(a backend.Adapter, id string) error {
		if err := a.Retry(ctx, id); err != nil {
			return err
		}
		s.extensions.EmitJobRetried(ctx, backendID, id)
		return nil
	})
}

// ReleaseAll releases every job in the backend's channel regardless of
// status. Each id is attempted independently.
func (s *Service) ReleaseAll(ctx context.Context, backendID string) (*BulkResult, error) {
	return s.bulk(ctx, backendID, "release", false, func(a backend.Adapter, id string) error {
		if err := a.Release(ctx, id); err != nil {
			return err
		}
		s.extensions.EmitJobReleased(ctx, backendID, id)
		return nil
	})
}

func (s *Service) bulk(ctx context.Context, backendID, op string, failedOnly bool, fn func(backend.Adapter, string) error) (*BulkResult, error) {
	b, err := s.resolve(ctx, backendID)
	if err != nil {
		return nil, err
	}

	ids, err := b.Adapter.ListJobIDs(ctx, b.Channel, failedOnly)
	if err != nil {
		return nil, adapterError("list job ids", err)
	}

	res := &BulkResult{Attempted: len(ids)}
	for _, id := range ids {
		if err := fn(b.Adapter, id); err != nil {
			s.logger.Warn("monitor: bulk "+op+" skipped job",
				slog.String("backend", backendID),
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			res.Failures = append(res.Failures, BulkFailure{JobID: id, Error: err.Error()})
			continue
		}
		res.Succeeded++
	}

	s.logger.Info("bulk "+op+" finished",
		slog.String("backend", backendID),
		slog.Int("attempted", res.Attempted),
		slog.Int("succeeded", res.Succeeded),
	)
	return res, nil
}
