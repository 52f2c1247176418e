package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	forgetesting "github.com/xraph/forge/testing"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/api"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/backend/memory"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/monitor"
)

// ── Test Helpers ──────────────────────────────────────

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type brokenAdapter struct{ *memory.Adapter }

func (b brokenAdapter) ListJobs(context.Context, string, backend.ListOpts) ([]*backend.Record, error) {
	return nil, errors.New("connection refused")
}

func (b brokenAdapter) CountByStatus(context.Context, string) (backend.Stats, error) {
	return backend.Stats{}, errors.New("connection refused")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// setupAPITest serves the API over an in-memory backend "emailQueue" holding
// job 1 (waiting), job 2 (reserved) and job 3 (failed).
func setupAPITest(t *testing.T) (*httptest.Server, *memory.Adapter) {
	t.Helper()
	ctx := context.Background()

	mem := memory.New()
	reserved := time.Unix(1000, 0)
	for _, r := range []*backend.Record{
		{ID: "1", Channel: "emailQueue", Description: "Send welcome", PushedAt: time.Unix(100, 0)},
		{ID: "2", Channel: "emailQueue", Description: "Send digest", PushedAt: time.Unix(90, 0), ReservedAt: &reserved, Attempt: 1},
		{ID: "3", Channel: "emailQueue", Description: "Send invoice", PushedAt: time.Unix(95, 0), Fail: true, Attempt: 1, Error: "smtp timeout"},
	} {
		if _, err := mem.Put(ctx, r); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	reg := discovery.New(discovery.WithLogger(testLogger()))
	reg.RegisterAdapter("queue", memory.New())
	reg.RegisterAdapter("emailQueue", mem)
	reg.RegisterAdapter("brokenQueue", brokenAdapter{memory.New()})

	svc := monitor.New(reg, vigil.StaticSettings(vigil.DefaultSettings()), monitor.WithLogger(testLogger()))

	fapp := forgetesting.NewTestApp("vigil-api-test", "0.1.0")
	api.New(svc, fapp.Router(), api.WithLogger(testLogger())).RegisterRoutes(fapp.Router())

	ts := httptest.NewServer(fapp.Router())
	t.Cleanup(ts.Close)
	return ts, mem
}

func do(t *testing.T, ts *httptest.Server, method, path string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

// ── Tests ─────────────────────────────────────────────

func TestListJobs(t *testing.T) {
	ts, _ := setupAPITest(t)

	status, env := do(t, ts, http.MethodGet, "/v1/queues/emailQueue/jobs")
	if status != http.StatusOK || !env.Success {
		t.Fatalf("status=%d env=%+v", status, env)
	}

	var list monitor.JobList
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	var ids []string
	for _, j := range list.Jobs {
		ids = append(ids, j.ID)
	}
	if len(ids) != 3 || ids[0] != "2" || ids[1] != "1" || ids[2] != "3" {
		t.Errorf("order = %v, want [2 1 3]", ids)
	}
	if list.Stats != (backend.Stats{Total: 3, Waiting: 1, Reserved: 1, Failed: 1}) {
		t.Errorf("stats = %+v", list.Stats)
	}
}

func TestListJobs_Limit(t *testing.T) {
	ts, _ := setupAPITest(t)

	status, env := do(t, ts, http.MethodGet, "/v1/queues/emailQueue/jobs?limit=1")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var list monitor.JobList
	_ = json.Unmarshal(env.Data, &list)
	if len(list.Jobs) != 1 {
		t.Errorf("got %d jobs, want 1", len(list.Jobs))
	}

	for _, bad := range []string{"-1", "501"} {
		status, env := do(t, ts, http.MethodGet, "/v1/queues/emailQueue/jobs?limit="+bad)
		if status != http.StatusBadRequest || env.Success || env.Message != "Invalid limit." {
			t.Errorf("limit=%s: status=%d success=%v message=%q", bad, status, env.Success, env.Message)
		}
	}

	// A non-integer limit fails request binding.
	resp, err := ts.Client().Get(ts.URL + "/v1/queues/emailQueue/jobs?limit=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		t.Errorf("limit=abc: status=%d, want 4xx", resp.StatusCode)
	}
}

func TestNotFound(t *testing.T) {
	ts, mem := setupAPITest(t)

	tests := []struct {
		method, path, message string
	}{
		{http.MethodGet, "/v1/queues/unknownId/jobs", "Queue not found."},
		{http.MethodGet, "/v1/queues/queue/jobs", "Queue not found."},
		{http.MethodGet, "/v1/queues/emailQueue/jobs/404", "Job not found."},
		{http.MethodPost, "/v1/queues/emailQueue/jobs/404/retry", "Job not found."},
		{http.MethodPost, "/v1/queues/emailQueue/jobs/404/release", "Job not found."},
		{http.MethodPost, "/v1/queues/unknownId/retry-all", "Queue not found."},
	}
	for _, tt := range tests {
		status, env := do(t, ts, tt.method, tt.path)
		if status != http.StatusNotFound || env.Success || env.Message != tt.message {
			t.Errorf("%s %s: status=%d env=%+v", tt.method, tt.path, status, env)
		}
	}

	if mem.Len() != 3 {
		t.Errorf("not-found requests must not mutate, %d jobs left", mem.Len())
	}
}

func TestAdapterFailureIsBadGateway(t *testing.T) {
	ts, _ := setupAPITest(t)

	status, env := do(t, ts, http.MethodGet, "/v1/queues/brokenQueue/jobs")
	if status != http.StatusBadGateway || env.Success {
		t.Fatalf("status=%d env=%+v", status, env)
	}
	if env.Error == "" {
		t.Error("expected the adapter message in the envelope")
	}
}

func TestRetryAndRelease(t *testing.T) {
	ts, mem := setupAPITest(t)
	ctx := context.Background()

	status, env := do(t, ts, http.MethodPost, "/v1/queues/emailQueue/jobs/3/retry")
	if status != http.StatusOK || env.Message != "Job queued for retry." {
		t.Fatalf("retry: status=%d env=%+v", status, env)
	}
	r, err := mem.GetJob(ctx, "emailQueue", "3")
	if err != nil || r.Fail {
		t.Errorf("job 3 after retry: %+v, %v", r, err)
	}

	status, env = do(t, ts, http.MethodPost, "/v1/queues/emailQueue/jobs/1/release")
	if status != http.StatusOK || env.Message != "Job released." {
		t.Fatalf("release: status=%d env=%+v", status, env)
	}
	if _, err := mem.GetJob(ctx, "emailQueue", "1"); !errors.Is(err, vigil.ErrJobNotFound) {
		t.Errorf("job 1 should be gone, got %v", err)
	}
}

func TestBulkActions(t *testing.T) {
	ts, mem := setupAPITest(t)

	status, env := do(t, ts, http.MethodPost, "/v1/queues/emailQueue/retry-all")
	if status != http.StatusOK || env.Message != "All failed jobs queued for retry." {
		t.Fatalf("retry-all: status=%d env=%+v", status, env)
	}
	var res monitor.BulkResult
	_ = json.Unmarshal(env.Data, &res)
	if res.Attempted != 1 || res.Succeeded != 1 {
		t.Errorf("retry-all result = %+v", res)
	}

	status, env = do(t, ts, http.MethodPost, "/v1/queues/emailQueue/release-all")
	if status != http.StatusOK || env.Message != "All jobs released." {
		t.Fatalf("release-all: status=%d env=%+v", status, env)
	}
	if mem.Len() != 0 {
		t.Errorf("%d jobs left", mem.Len())
	}
}

func TestOverviewBadgeAndSettings(t *testing.T) {
	ts, _ := setupAPITest(t)

	status, env := do(t, ts, http.MethodGet, "/v1/queues")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var overview []monitor.QueueSummary
	_ = json.Unmarshal(env.Data, &overview)
	if len(overview) != 2 {
		t.Fatalf("overview = %+v", overview)
	}
	if overview[0].Label != "Email Queue" || overview[0].Stats == nil {
		t.Errorf("emailQueue = %+v", overview[0])
	}
	if overview[1].ID != "brokenQueue" || overview[1].Error == "" {
		t.Errorf("brokenQueue = %+v", overview[1])
	}

	_, env = do(t, ts, http.MethodGet, "/v1/badge")
	var badge api.BadgeResponse
	_ = json.Unmarshal(env.Data, &badge)
	if badge.Failed != 1 {
		t.Errorf("badge = %d, want 1", badge.Failed)
	}

	_, env = do(t, ts, http.MethodGet, "/v1/settings")
	var settings api.SettingsResponse
	_ = json.Unmarshal(env.Data, &settings)
	if settings.RefreshInterval != 2000 || settings.JobsPerPage != 50 {
		t.Errorf("settings = %+v", settings)
	}
}
