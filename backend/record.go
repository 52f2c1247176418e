package backend

import "time"

// Defaults applied when a backend leaves execution metadata unset.
const (
	DefaultTTR      = 300
	DefaultDelay    = 0
	DefaultPriority = 1024
)

// Record is a snapshot of one job as stored by a backend.
type Record struct {
	ID          string `json:"id"`
	Channel     string `json:"channel"`
	Description string `json:"description,omitempty"`

	// Class names the payload type so the payload registry can decode it.
	Class   string `json:"class,omitempty"`
	Payload []byte `json:"payload,omitempty"`

	PushedAt   time.Time  `json:"pushedAt"`
	ReservedAt *time.Time `json:"reservedAt,omitempty"`
	FailedAt   *time.Time `json:"failedAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`

	Attempt  int `json:"attempt"`
	TTR      int `json:"ttr"`
	Delay    int `json:"delay"`
	Priority int `json:"priority"`

	Fail  bool   `json:"fail"`
	Error string `json:"error,omitempty"`

	Progress      int    `json:"progress"`
	ProgressLabel string `json:"progressLabel,omitempty"`
}

// Status derives the record's status.
func (r *Record) Status() Status { return Classify(r.Fail, r.ReservedAt) }

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Payload != nil {
		cp.Payload = append([]byte(nil), r.Payload...)
	}
	cp.ReservedAt = cloneTime(r.ReservedAt)
	cp.FailedAt = cloneTime(r.FailedAt)
	cp.UpdatedAt = cloneTime(r.UpdatedAt)
	return &cp
}

// ResetForRetry clears execution state so the backend treats the record as
// freshly enqueued.
func (r *Record) ResetForRetry() {
	r.ReservedAt = nil
	r.FailedAt = nil
	r.UpdatedAt = nil
	r.Progress = 0
	r.ProgressLabel = ""
	r.Attempt = 0
	r.Fail = false
	r.Error = ""
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
