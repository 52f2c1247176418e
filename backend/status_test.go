package backend_test

import (
	"testing"
	"time"

	"github.com/xraph/vigil/backend"
)

func TestClassify(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name       string
		fail       bool
		reservedAt *time.Time
		want       backend.Status
	}{
		{"failed wins over reserved", true, &now, backend.StatusFailed},
		{"failed unreserved", true, nil, backend.StatusFailed},
		{"reserved", false, &now, backend.StatusReserved},
		{"waiting", false, nil, backend.StatusWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backend.Classify(tt.fail, tt.reservedAt); got != tt.want {
				t.Errorf("Classify(%v, %v) = %q, want %q", tt.fail, tt.reservedAt, got, tt.want)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[backend.Status]string{
		backend.StatusWaiting:   "Pending",
		backend.StatusReserved:  "Reserved",
		backend.StatusFailed:    "Failed",
		backend.StatusCompleted: "Completed",
		backend.Status("bogus"): "Unknown",
	}
	for st, want := range tests {
		if got := st.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", st, got, want)
		}
	}
}

func TestStatsOf_SumsToTotal(t *testing.T) {
	now := time.Now()
	records := []*backend.Record{
		{ID: "1"},
		{ID: "2", ReservedAt: &now},
		{ID: "3", Fail: true},
		{ID: "4", Fail: true, ReservedAt: &now},
		{ID: "5"},
	}

	s := backend.StatsOf(records)
	want := backend.Stats{Total: 5, Waiting: 2, Reserved: 1, Failed: 2}
	if s != want {
		t.Errorf("StatsOf = %+v, want %+v", s, want)
	}
	if !s.Consistent() {
		t.Error("expected consistent stats")
	}
	if (backend.Stats{Total: 2, Waiting: 1}).Consistent() {
		t.Error("expected inconsistent stats to be reported")
	}
}

func TestRecord_ResetForRetry(t *testing.T) {
	now := time.Now()
	r := &backend.Record{
		ID: "7", Attempt: 3, Fail: true, Error: "boom",
		ReservedAt: &now, FailedAt: &now, UpdatedAt: &now,
		Progress: 40, ProgressLabel: "halfway",
	}
	r.ResetForRetry()

	if r.Status() != backend.StatusWaiting {
		t.Errorf("status after reset = %q, want waiting", r.Status())
	}
	if r.Attempt != 0 || r.Error != "" || r.Progress != 0 || r.ProgressLabel != "" {
		t.Errorf("execution state not cleared: %+v", r)
	}
	if r.FailedAt != nil || r.UpdatedAt != nil {
		t.Error("timestamps not cleared")
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	now := time.Now()
	r := &backend.Record{ID: "1", Payload: []byte("abc"), ReservedAt: &now}
	cp := r.Clone()
	cp.Payload[0] = 'x'
	*cp.ReservedAt = now.Add(time.Hour)

	if string(r.Payload) != "abc" {
		t.Error("payload shared with clone")
	}
	if !r.ReservedAt.Equal(now) {
		t.Error("timestamp shared with clone")
	}
}
