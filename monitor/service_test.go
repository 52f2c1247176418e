package monitor_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/backend/memory"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/ext"
	"github.com/xraph/vigil/middleware"
	"github.com/xraph/vigil/monitor"
	"github.com/xraph/vigil/payload"
)

// flakyAdapter fails selected operations on top of an in-memory backend.
type flakyAdapter struct {
	*memory.Adapter
	failRetry map[string]bool
	failCount bool
}

func (f *flakyAdapter) Retry(ctx context.Context, id string) error {
	if f.failRetry[id] {
		return errors.New("lock wait timeout")
	}
	return f.Adapter.Retry(ctx, id)
}

func (f *flakyAdapter) CountByStatus(ctx context.Context, ch string) (backend.Stats, error) {
	if f.failCount {
		return backend.Stats{}, errors.New("connection refused")
	}
	return f.Adapter.CountByStatus(ctx, ch)
}

func (f *flakyAdapter) TotalFailed(ctx context.Context) (int64, error) {
	if f.failCount {
		return 0, errors.New("connection refused")
	}
	return f.Adapter.TotalFailed(ctx)
}

type harness struct {
	svc   *monitor.Service
	reg   *discovery.Registry
	email *memory.Adapter
	calls []middleware.Call
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

// newHarness registers "emailQueue" holding the three reference jobs:
// 1 waiting (pushed 100), 2 reserved (pushed 90), 3 failed (pushed 95).
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{email: memory.New()}

	reserved := time.Unix(1000, 0).UTC()
	for _, r := range []*backend.Record{
		{ID: "1", Channel: "emailQueue", Description: "Send welcome", PushedAt: time.Unix(100, 0)},
		{ID: "2", Channel: "emailQueue", Description: "Send digest", PushedAt: time.Unix(90, 0), ReservedAt: &reserved, Attempt: 1},
		{ID: "3", Channel: "emailQueue", Description: "Send invoice", PushedAt: time.Unix(95, 0), Fail: true, Attempt: 1, Error: "smtp timeout"},
	} {
		if _, err := h.email.Put(ctx, r); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	spy := func(ctx context.Context, c middleware.Call, next middleware.Handler) error {
		h.calls = append(h.calls, c)
		return next(ctx)
	}
	h.reg = discovery.New(discovery.WithLogger(quiet()), discovery.WithMiddleware(spy))
	h.reg.RegisterAdapter("queue", memory.New())
	h.reg.RegisterAdapter("emailQueue", h.email)

	h.svc = monitor.New(h.reg, vigil.StaticSettings(vigil.DefaultSettings()), monitor.WithLogger(quiet()))
	return h
}

func (h *harness) mutations() []middleware.Call {
	var out []middleware.Call
	for _, c := range h.calls {
		if c.Op == middleware.OpRetry || c.Op == middleware.OpRelease {
			out = append(out, c)
		}
	}
	return out
}

func TestListJobs_OrderAndStats(t *testing.T) {
	h := newHarness(t)

	list, err := h.svc.ListJobs(context.Background(), "emailQueue", 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}

	want := []string{"2", "1", "3"}
	if len(list.Jobs) != len(want) {
		t.Fatalf("got %d jobs, want %d", len(list.Jobs), len(want))
	}
	for i, w := range want {
		if list.Jobs[i].ID != w {
			t.Errorf("position %d = %s, want %s", i, list.Jobs[i].ID, w)
		}
	}

	wantStats := backend.Stats{Total: 3, Waiting: 1, Reserved: 1, Failed: 1}
	if list.Stats != wantStats {
		t.Errorf("stats = %+v, want %+v", list.Stats, wantStats)
	}
	if !list.Stats.Consistent() {
		t.Error("stats inconsistent")
	}

	labels := map[string]string{"1": "Pending", "2": "Reserved", "3": "Failed"}
	for _, j := range list.Jobs {
		if j.StatusLabel != labels[j.ID] {
			t.Errorf("job %s label = %q, want %q", j.ID, j.StatusLabel, labels[j.ID])
		}
	}
	if *list.Jobs[1].TimePushed != "1970-01-01 00:01:40" {
		t.Errorf("TimePushed = %q", *list.Jobs[1].TimePushed)
	}
}

func TestListJobs_LimitAndDefaultPageSize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	list, err := h.svc.ListJobs(ctx, "emailQueue", 1)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != "2" {
		t.Errorf("limit 1 returned %+v", list.Jobs)
	}
	if list.Stats.Total != 3 {
		t.Errorf("stats should cover the whole channel, got %+v", list.Stats)
	}

	for i := 0; i < 60; i++ {
		_, _ = h.email.Put(ctx, &backend.Record{Channel: "emailQueue", PushedAt: time.Unix(int64(200+i), 0)})
	}
	list, _ = h.svc.ListJobs(ctx, "emailQueue", 0)
	if len(list.Jobs) != vigil.DefaultSettings().JobsPerPage {
		t.Errorf("default page = %d jobs, want %d", len(list.Jobs), vigil.DefaultSettings().JobsPerPage)
	}
}

func TestListJobs_DescriptionFallback(t *testing.T) {
	h := newHarness(t)
	_, _ = h.email.Put(context.Background(), &backend.Record{ID: "9", Channel: "emailQueue", PushedAt: time.Unix(500, 0)})

	list, _ := h.svc.ListJobs(context.Background(), "emailQueue", 0)
	for _, j := range list.Jobs {
		if j.ID == "9" && j.Description != monitor.UnknownDescription {
			t.Errorf("description = %q", j.Description)
		}
	}
}

func TestUnknownAndDefaultBackends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, id := range []string{"unknownId", "queue"} {
		if _, err := h.svc.ListJobs(ctx, id, 0); !errors.Is(err, vigil.ErrBackendNotFound) {
			t.Errorf("ListJobs(%q): expected ErrBackendNotFound, got %v", id, err)
		}
		if _, err := h.svc.JobDetail(ctx, id, "1"); !errors.Is(err, vigil.ErrBackendNotFound) {
			t.Errorf("JobDetail(%q): expected ErrBackendNotFound, got %v", id, err)
		}
		if err := h.svc.Retry(ctx, id, "1"); !errors.Is(err, vigil.ErrBackendNotFound) {
			t.Errorf("Retry(%q): expected ErrBackendNotFound, got %v", id, err)
		}
		if _, err := h.svc.ReleaseAll(ctx, id); !errors.Is(err, vigil.ErrBackendNotFound) {
			t.Errorf("ReleaseAll(%q): expected ErrBackendNotFound, got %v", id, err)
		}
	}
}

func TestRetryRelease_MissingJobDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.Retry(ctx, "emailQueue", "404"); !errors.Is(err, vigil.ErrJobNotFound) {
		t.Errorf("Retry: expected ErrJobNotFound, got %v", err)
	}
	if err := h.svc.Release(ctx, "emailQueue", "404"); !errors.Is(err, vigil.ErrJobNotFound) {
		t.Errorf("Release: expected ErrJobNotFound, got %v", err)
	}
	if m := h.mutations(); len(m) != 0 {
		t.Errorf("unexpected backend mutations: %+v", m)
	}
}

func TestRetry_CrossChannelIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.email.Put(ctx, &backend.Record{ID: "50", Channel: "other", Fail: true})

	if err := h.svc.Retry(ctx, "emailQueue", "50"); !errors.Is(err, vigil.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for a job in another channel, got %v", err)
	}
	if m := h.mutations(); len(m) != 0 {
		t.Errorf("unexpected backend mutations: %+v", m)
	}
}

func TestRetryAndRelease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.Retry(ctx, "emailQueue", "3"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	d, err := h.svc.JobDetail(ctx, "emailQueue", "3")
	if err != nil {
		t.Fatalf("JobDetail: %v", err)
	}
	if d.Status != backend.StatusWaiting || d.Error != nil {
		t.Errorf("after retry: status=%s error=%v", d.Status, d.Error)
	}

	if err := h.svc.Release(ctx, "emailQueue", "3"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := h.svc.JobDetail(ctx, "emailQueue", "3"); !errors.Is(err, vigil.ErrJobNotFound) {
		t.Errorf("expected released job to be gone, got %v", err)
	}
}

func TestRetryAllFailed_TouchesOnlyFailedJobs(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.RetryAllFailed(context.Background(), "emailQueue")
	if err != nil {
		t.Fatalf("RetryAllFailed: %v", err)
	}
	if res.Attempted != 1 || res.Succeeded != 1 || !res.OK() {
		t.Errorf("result = %+v", res)
	}

	m := h.mutations()
	if len(m) != 1 || m[0].Op != middleware.OpRetry || m[0].JobID != "3" {
		t.Errorf("mutations = %+v, want a single retry of job 3", m)
	}
}

func TestReleaseAll_EmptiesChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.ReleaseAll(ctx, "emailQueue")
	if err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if res.Attempted != 3 || res.Succeeded != 3 {
		t.Errorf("result = %+v", res)
	}
	if h.email.Len() != 0 {
		t.Errorf("%d jobs left after ReleaseAll", h.email.Len())
	}
}

func TestRetryAllFailed_BestEffort(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	for _, id := range []string{"1", "2", "3"} {
		_, _ = mem.Put(ctx, &backend.Record{ID: id, Channel: "reports", Fail: true})
	}
	flaky := &flakyAdapter{Adapter: mem, failRetry: map[string]bool{"2": true}}

	reg := discovery.New(discovery.WithLogger(quiet()))
	reg.RegisterAdapter("reports", flaky)
	svc := monitor.New(reg, vigil.StaticSettings(vigil.DefaultSettings()), monitor.WithLogger(quiet()))

	res, err := svc.RetryAllFailed(ctx, "reports")
	if err != nil {
		t.Fatalf("RetryAllFailed: %v", err)
	}
	if res.Attempted != 3 || res.Succeeded != 2 || res.OK() {
		t.Errorf("result = %+v", res)
	}
	if len(res.Failures) != 1 || res.Failures[0].JobID != "2" {
		t.Errorf("failures = %+v", res.Failures)
	}

	n, _ := mem.TotalFailed(ctx)
	if n != 1 {
		t.Errorf("failed jobs left = %d, want 1", n)
	}
}

func TestAdapterFailureIsWrapped(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyAdapter{Adapter: memory.New(), failCount: true}

	reg := discovery.New(discovery.WithLogger(quiet()))
	reg.RegisterAdapter("reports", flaky)
	svc := monitor.New(reg, vigil.StaticSettings(vigil.DefaultSettings()), monitor.WithLogger(quiet()))

	_, err := svc.ListJobs(ctx, "reports", 0)
	if !errors.Is(err, vigil.ErrAdapter) {
		t.Fatalf("expected ErrAdapter, got %v", err)
	}
	if want := "connection refused"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("error %q should carry adapter message", err)
	}
}

func TestOverviewAndFailedCount_IsolateBackends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	broken := &flakyAdapter{Adapter: memory.New(), failCount: true}
	h.reg.RegisterAdapter("brokenQueue", broken)

	slow := memory.New()
	_, _ = slow.Put(ctx, &backend.Record{Channel: "slowQueue", Fail: true})
	_, _ = slow.Put(ctx, &backend.Record{Channel: "slowQueue", Fail: true})
	h.reg.RegisterAdapter("slowQueue", slow)

	overview := h.svc.Overview(ctx)
	if len(overview) != 3 {
		t.Fatalf("overview has %d entries, want 3", len(overview))
	}
	if overview[0].ID != "emailQueue" || overview[0].Stats == nil || overview[0].Stats.Total != 3 {
		t.Errorf("emailQueue summary = %+v", overview[0])
	}
	if overview[1].ID != "brokenQueue" || overview[1].Error == "" || overview[1].Stats != nil {
		t.Errorf("brokenQueue summary = %+v", overview[1])
	}
	if overview[2].Label != "Slow Queue" || overview[2].Stats.Failed != 2 {
		t.Errorf("slowQueue summary = %+v", overview[2])
	}

	if n := h.svc.FailedCount(ctx); n != 3 {
		t.Errorf("FailedCount = %d, want 3", n)
	}
}

type welcomeEmail struct {
	To string `json:"to"`
}

func (w *welcomeEmail) Fields() map[string]any { return map[string]any{"to": w.To} }

func TestJobDetail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	payloads := payload.NewRegistry()
	payload.Register[welcomeEmail](payloads, "mail.Welcome", payload.JSONCodec{})
	svc := monitor.New(h.reg, vigil.StaticSettings(vigil.DefaultSettings()),
		monitor.WithLogger(quiet()), monitor.WithPayloads(payloads))

	failedAt := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	_, _ = h.email.Put(ctx, &backend.Record{
		ID: "10", Channel: "emailQueue", Description: "Welcome",
		Class: "mail.Welcome", Payload: []byte(`{"to":"new@example.com"}`),
		PushedAt: time.Unix(50, 0), Fail: true, FailedAt: &failedAt, Error: "mailbox full",
		Attempt: 2, Delay: 5,
	})
	_, _ = h.email.Put(ctx, &backend.Record{
		ID: "11", Channel: "emailQueue", Class: "mail.Welcome", Payload: []byte(`{broken`),
		PushedAt: time.Unix(60, 0),
	})

	d, err := svc.JobDetail(ctx, "emailQueue", "10")
	if err != nil {
		t.Fatalf("JobDetail: %v", err)
	}
	if d.TTR != 300 || d.Priority != 1024 || d.Delay != 5 {
		t.Errorf("defaults: ttr=%d priority=%d delay=%d", d.TTR, d.Priority, d.Delay)
	}
	if d.Error == nil || *d.Error != "mailbox full" {
		t.Errorf("Error = %v", d.Error)
	}
	if d.DateFailed == nil || *d.DateFailed != "2024-05-01 08:30:00" {
		t.Errorf("DateFailed = %v", d.DateFailed)
	}
	if d.DateReserved != nil {
		t.Errorf("DateReserved = %v, want nil", *d.DateReserved)
	}
	if d.Data == nil || d.Data.Class != "mail.Welcome" || d.Data.Fields["to"] != "new@example.com" {
		t.Errorf("Data = %+v", d.Data)
	}

	broken, err := svc.JobDetail(ctx, "emailQueue", "11")
	if err != nil {
		t.Fatalf("detail with undecodable payload must succeed: %v", err)
	}
	if broken.Data != nil {
		t.Errorf("Data = %+v, want nil", broken.Data)
	}

	if _, err := svc.JobDetail(ctx, "emailQueue", "404"); !errors.Is(err, vigil.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSettingsFallback(t *testing.T) {
	reg := discovery.New()
	svc := monitor.New(reg, vigil.SettingsFunc(func(context.Context) (vigil.Settings, error) {
		return vigil.Settings{}, errors.New("settings store offline")
	}), monitor.WithLogger(quiet()))

	if got := svc.Settings(context.Background()); got != vigil.DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", got)
	}
}

type actionRecorder struct{ calls []string }

func (a *actionRecorder) Name() string { return "recorder" }

func (a *actionRecorder) OnJobRetried(_ context.Context, backendID, jobID string) error {
	a.calls = append(a.calls, "retried "+backendID+"/"+jobID)
	return nil
}

func (a *actionRecorder) OnJobReleased(_ context.Context, backendID, jobID string) error {
	a.calls = append(a.calls, "released "+backendID+"/"+jobID)
	return nil
}

func TestExtensionsSeeOperatorActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rec := &actionRecorder{}
	exts := ext.NewRegistry(quiet())
	exts.Register(rec)
	svc := monitor.New(h.reg, vigil.StaticSettings(vigil.DefaultSettings()),
		monitor.WithLogger(quiet()), monitor.WithExtensions(exts))

	if _, err := svc.RetryAllFailed(ctx, "emailQueue"); err != nil {
		t.Fatalf("RetryAllFailed: %v", err)
	}
	if err := svc.Release(ctx, "emailQueue", "1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	_ = svc.Retry(ctx, "emailQueue", "404")

	want := []string{"retried emailQueue/3", "released emailQueue/1"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, rec.calls[i], want[i])
		}
	}
}
