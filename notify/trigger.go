package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/ext"
)

// Outcome is the decision taken for one failure event.
type Outcome string

// Outcomes. Every event starts armed and ends in exactly one of the others.
const (
	OutcomeArmed      Outcome = "armed"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeSent       Outcome = "sent"
	OutcomeSendFailed Outcome = "send-failed"
)

// Compile-time interface checks.
var (
	_ ext.Extension = (*Trigger)(nil)
	_ ext.JobFailed = (*Trigger)(nil)
)

// Option configures a Trigger.
type Option func(*Trigger)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trigger) { t.logger = l }
}

// WithConfig sets the process config used for the link back to the monitor.
func WithConfig(c vigil.Config) Option {
	return func(t *Trigger) { t.config = c }
}

// WithRateLimit caps outbound alerts to r per second with the given burst.
// Alerts over the limit are suppressed.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(t *Trigger) { t.limiter = rate.NewLimiter(r, burst) }
}

// WithMeter sets the meter for the vigil.notify.outcomes counter. The
// global MeterProvider is used otherwise.
func WithMeter(m metric.Meter) Option {
	return func(t *Trigger) { t.meter = m }
}

// WithClock overrides the time source for message timestamps.
func WithClock(fn func() time.Time) Option {
	return func(t *Trigger) { t.now = fn }
}

// Trigger applies the first-failure policy and dispatches alerts.
type Trigger struct {
	settings vigil.SettingsSource
	mailer   Mailer
	config   vigil.Config
	limiter  *rate.Limiter
	meter    metric.Meter
	outcomes metric.Int64Counter
	now      func() time.Time
	logger   *slog.Logger
}

// NewTrigger creates a Trigger that reads settings from settings and sends
// through mailer.
func NewTrigger(settings vigil.SettingsSource, mailer Mailer, opts ...Option) *Trigger {
	t := &Trigger{
		settings: settings,
		mailer:   mailer,
		config:   vigil.DefaultConfig(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	if t.meter == nil {
		t.meter = otel.Meter("github.com/xraph/vigil")
	}
	// On error the API returns a noop instrument.
	t.outcomes, _ = t.meter.Int64Counter(
		"vigil.notify.outcomes",
		metric.WithDescription("Failure notification decisions by outcome"),
		metric.WithUnit("{event}"),
	)
	return t
}

// Name implements ext.Extension.
func (t *Trigger) Name() string { return "notify-trigger" }

// OnJobFailed implements ext.JobFailed. It never returns an error.
func (t *Trigger) OnJobFailed(ctx context.Context, ev backend.FailureEvent) error {
	t.Handle(ctx, ev)
	return nil
}

// Handle decides and carries out the notification for one event.
func (t *Trigger) Handle(ctx context.Context, ev backend.FailureEvent) Outcome {
	outcome, reason := t.handle(ctx, ev)
	t.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", ev.BackendID),
		attribute.String("outcome", string(outcome)),
	))
	if outcome == OutcomeSuppressed {
		t.logger.Debug("notify: suppressed",
			slog.String("backend", ev.BackendID),
			slog.String("job_id", ev.JobID),
			slog.Int("attempt", ev.Attempt),
			slog.String("reason", reason),
		)
	}
	return outcome
}

func (t *Trigger) handle(ctx context.Context, ev backend.FailureEvent) (Outcome, string) {
	if ev.Attempt != 1 {
		return OutcomeSuppressed, "not first attempt"
	}

	settings, err := t.settings.Settings(ctx)
	if err != nil {
		t.logger.Warn("notify: settings unavailable",
			slog.String("job_id", ev.JobID),
			slog.String("error", err.Error()),
		)
		return OutcomeSuppressed, "settings unavailable"
	}
	if !settings.NotificationsArmed() {
		return OutcomeSuppressed, "notifications disabled"
	}
	if t.limiter != nil && !t.limiter.Allow() {
		return OutcomeSuppressed, "rate limited"
	}

	msg := Compose(ev, settings.NotificationEmail, t.config.MonitorLink(), t.now())
	if err := t.mailer.Send(ctx, msg); err != nil {
		err = fmt.Errorf("%w: %w", vigil.ErrNotificationDispatch, err)
		t.logger.Warn("notify: dispatch failed",
			slog.String("notification_id", msg.ID.String()),
			slog.String("backend", ev.BackendID),
			slog.String("job_id", ev.JobID),
			slog.String("error", err.Error()),
		)
		return OutcomeSendFailed, ""
	}

	t.logger.Info("notify: failure alert sent",
		slog.String("notification_id", msg.ID.String()),
		slog.String("backend", ev.BackendID),
		slog.String("job_id", ev.JobID),
		slog.String("to", msg.To),
	)
	return OutcomeSent, ""
}
