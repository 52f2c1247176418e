package monitor

import (
	"time"

	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/payload"
)

// DateFormat is the layout used for every timestamp in views.
const DateFormat = "2006-01-02 15:04:05"

// UnknownDescription is shown for jobs without a description.
const UnknownDescription = "Unknown Job"

// JobView is the listing form of a job.
type JobView struct {
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	Status        backend.Status `json:"status"`
	StatusLabel   string         `json:"statusLabel"`
	Progress      int            `json:"progress"`
	ProgressLabel *string        `json:"progressLabel"`
	TimePushed    *string        `json:"timePushed"`
	Attempt       int            `json:"attempt"`
	Fail          bool           `json:"fail"`
}

// JobDetail is the full form of a job returned by JobDetail.
type JobDetail struct {
	JobView

	TTR          int     `json:"ttr"`
	Delay        int     `json:"delay"`
	Priority     int     `json:"priority"`
	Error        *string `json:"error"`
	DateReserved *string `json:"dateReserved"`
	DateFailed   *string `json:"dateFailed"`
	TimeUpdated  *string `json:"timeUpdated"`

	// Data is nil when the payload is absent or cannot be rendered.
	Data *payload.Rendering `json:"data"`
}

// JobList is the result of ListJobs.
type JobList struct {
	Jobs  []JobView     `json:"jobs"`
	Stats backend.Stats `json:"stats"`
}

// QueueSummary is one backend in an overview.
type QueueSummary struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Channel string         `json:"channel"`
	Stats   *backend.Stats `json:"stats,omitempty"`

	// Error is set instead of Stats when the backend could not be read.
	Error string `json:"error,omitempty"`
}

// BulkFailure records one id a bulk operation could not process.
type BulkFailure struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// BulkResult summarizes a best-effort bulk operation.
type BulkResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failures  []BulkFailure `json:"failures,omitempty"`
}

// OK reports whether every attempted id succeeded.
func (r *BulkResult) OK() bool { return len(r.Failures) == 0 }

func newJobView(r *backend.Record) JobView {
	st := r.Status()
	desc := r.Description
	if desc == "" {
		desc = UnknownDescription
	}
	attempt := r.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return JobView{
		ID:            r.ID,
		Description:   desc,
		Status:        st,
		StatusLabel:   st.Label(),
		Progress:      r.Progress,
		ProgressLabel: optString(r.ProgressLabel),
		TimePushed:    formatTime(r.PushedAt),
		Attempt:       attempt,
		Fail:          r.Fail,
	}
}

func newJobDetail(r *backend.Record) *JobDetail {
	d := &JobDetail{
		JobView:      newJobView(r),
		TTR:          r.TTR,
		Delay:        r.Delay,
		Priority:     r.Priority,
		Error:        optString(r.Error),
		DateReserved: formatTimePtr(r.ReservedAt),
		DateFailed:   formatTimePtr(r.FailedAt),
		TimeUpdated:  formatTimePtr(r.UpdatedAt),
	}
	if d.TTR == 0 {
		d.TTR = backend.DefaultTTR
	}
	if d.Priority == 0 {
		d.Priority = backend.DefaultPriority
	}
	return d
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(DateFormat)
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
