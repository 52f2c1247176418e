package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/backend/memory"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/ext"
	"github.com/xraph/vigil/notify"
)

type captureMailer struct {
	sent []*notify.Message
	err  error
}

func (c *captureMailer) Send(_ context.Context, m *notify.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

func armed() vigil.Settings {
	s := vigil.DefaultSettings()
	s.EnableEmailNotifications = true
	s.NotificationEmail = "ops@example.com"
	return s
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func firstFailure() backend.FailureEvent {
	return backend.FailureEvent{
		BackendID:   "emailQueue",
		Channel:     "emailQueue",
		JobID:       "3",
		Description: "Send invoice",
		Attempt:     1,
		Error:       "smtp timeout",
	}
}

func TestHandle_AttemptGating(t *testing.T) {
	tests := []struct {
		name     string
		settings vigil.Settings
		attempt  int
		want     notify.Outcome
	}{
		{"first attempt armed", armed(), 1, notify.OutcomeSent},
		{"second attempt", armed(), 2, notify.OutcomeSuppressed},
		{"attempt zero", armed(), 0, notify.OutcomeSuppressed},
		{"disabled", vigil.DefaultSettings(), 1, notify.OutcomeSuppressed},
		{"enabled without address", func() vigil.Settings {
			s := armed()
			s.NotificationEmail = ""
			return s
		}(), 1, notify.OutcomeSuppressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &captureMailer{}
			tr := notify.NewTrigger(vigil.StaticSettings(tt.settings), mailer, notify.WithLogger(quiet()))

			ev := firstFailure()
			ev.Attempt = tt.attempt
			if got := tr.Handle(context.Background(), ev); got != tt.want {
				t.Fatalf("outcome = %s, want %s", got, tt.want)
			}
			wantSent := 0
			if tt.want == notify.OutcomeSent {
				wantSent = 1
			}
			if len(mailer.sent) != wantSent {
				t.Errorf("sent %d messages, want %d", len(mailer.sent), wantSent)
			}
		})
	}
}

func TestHandle_MessageContent(t *testing.T) {
	mailer := &captureMailer{}
	cfg := vigil.DefaultConfig()
	cfg.MonitorURL = "https://ops.example.com"
	now := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

	tr := notify.NewTrigger(vigil.StaticSettings(armed()), mailer,
		notify.WithLogger(quiet()),
		notify.WithConfig(cfg),
		notify.WithClock(func() time.Time { return now }),
	)
	tr.Handle(context.Background(), firstFailure())

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mailer.sent))
	}
	m := mailer.sent[0]
	if m.To != "ops@example.com" {
		t.Errorf("To = %q", m.To)
	}
	if m.Subject != "Queue job failed: Send invoice" {
		t.Errorf("Subject = %q", m.Subject)
	}
	if m.ID.IsNil() || m.ID.Prefix() != "ntf" {
		t.Errorf("ID = %s", m.ID)
	}
	if !m.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %s", m.CreatedAt)
	}
	for _, want := range []string{"Send invoice", "emailQueue", "smtp timeout", "https://ops.example.com/queue-monitor"} {
		if !strings.Contains(m.Body, want) {
			t.Errorf("body missing %q:\n%s", want, m.Body)
		}
	}
}

func TestCompose_Fallbacks(t *testing.T) {
	m := notify.Compose(backend.FailureEvent{JobID: "1", Attempt: 1}, "ops@example.com", "", time.Now())

	if m.Description != notify.UnknownDescription || m.Subject != "Queue job failed: Unknown" {
		t.Errorf("description fallback: %q / %q", m.Description, m.Subject)
	}
	if m.Channel != notify.DefaultChannel {
		t.Errorf("Channel = %q", m.Channel)
	}
	if m.Error != notify.UnknownError {
		t.Errorf("Error = %q", m.Error)
	}
	if strings.Contains(m.Body, "Review") {
		t.Error("body should omit the link line when no link is configured")
	}
}

func TestHandle_DispatchErrorIsContained(t *testing.T) {
	var logs bytes.Buffer
	mailer := &captureMailer{err: errors.New("connection refused")}
	tr := notify.NewTrigger(vigil.StaticSettings(armed()), mailer,
		notify.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	if got := tr.Handle(context.Background(), firstFailure()); got != notify.OutcomeSendFailed {
		t.Fatalf("outcome = %s, want send-failed", got)
	}
	if err := tr.OnJobFailed(context.Background(), firstFailure()); err != nil {
		t.Fatalf("OnJobFailed must not propagate dispatch errors: %v", err)
	}
	if !strings.Contains(logs.String(), "dispatch failed") || !strings.Contains(logs.String(), "connection refused") {
		t.Errorf("expected dispatch failure to be logged, got %q", logs.String())
	}
}

func TestHandle_SettingsErrorSuppresses(t *testing.T) {
	mailer := &captureMailer{}
	tr := notify.NewTrigger(vigil.SettingsFunc(func(context.Context) (vigil.Settings, error) {
		return vigil.Settings{}, errors.New("settings store offline")
	}), mailer, notify.WithLogger(quiet()))

	if got := tr.Handle(context.Background(), firstFailure()); got != notify.OutcomeSuppressed {
		t.Fatalf("outcome = %s, want suppressed", got)
	}
	if len(mailer.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestHandle_RateLimit(t *testing.T) {
	mailer := &captureMailer{}
	tr := notify.NewTrigger(vigil.StaticSettings(armed()), mailer,
		notify.WithLogger(quiet()),
		notify.WithRateLimit(0, 2),
	)

	var outcomes []notify.Outcome
	for i := 0; i < 3; i++ {
		outcomes = append(outcomes, tr.Handle(context.Background(), firstFailure()))
	}

	want := []notify.Outcome{notify.OutcomeSent, notify.OutcomeSent, notify.OutcomeSuppressed}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcome[%d] = %s, want %s", i, outcomes[i], want[i])
		}
	}
}

func TestHandle_RecordsOutcomeMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tr := notify.NewTrigger(vigil.StaticSettings(armed()), &captureMailer{},
		notify.WithLogger(quiet()),
		notify.WithMeter(mp.Meter("test")),
	)
	ev := firstFailure()
	tr.Handle(context.Background(), ev)
	ev.Attempt = 2
	tr.Handle(context.Background(), ev)
	tr.Handle(context.Background(), ev)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "vigil.notify.outcomes" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("outcome")
				counts[v.AsString()] += dp.Value
			}
		}
	}
	if counts["sent"] != 1 || counts["suppressed"] != 2 {
		t.Errorf("outcome counts = %v", counts)
	}
}

func TestTrigger_EndToEndThroughDiscovery(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	id, _ := mem.Put(ctx, &backend.Record{Channel: "emailQueue", Description: "Send invoice"})

	reg := discovery.New(discovery.WithLogger(quiet()))
	reg.RegisterAdapter("emailQueue", mem)

	mailer := &captureMailer{}
	exts := ext.NewRegistry(quiet())
	exts.Register(notify.NewTrigger(vigil.StaticSettings(armed()), mailer, notify.WithLogger(quiet())))

	cancel := reg.Subscribe(ctx, exts.EmitJobFailed)
	defer cancel()

	// First attempt fails: alert. Second attempt fails: no alert.
	for i := 0; i < 2; i++ {
		if err := mem.Reserve(ctx, id); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if err := mem.Fail(ctx, id, "smtp timeout"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(mailer.sent))
	}
	if mailer.sent[0].BackendID != "emailQueue" || mailer.sent[0].JobID != id {
		t.Errorf("message = %+v", mailer.sent[0])
	}
}
