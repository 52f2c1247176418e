package backend

import "time"

// Status is the derived state of a job at observation time.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusReserved Status = "reserved"
	StatusFailed   Status = "failed"

	// StatusCompleted is never produced by Classify. Consumers that track a
	// job across snapshots infer it when the job disappears from its backend.
	StatusCompleted Status = "completed"
)

// Classify maps the raw fail flag and reservation timestamp to a Status.
func Classify(fail bool, reservedAt *time.Time) Status {
	switch {
	case fail:
		return StatusFailed
	case reservedAt != nil:
		return StatusReserved
	default:
		return StatusWaiting
	}
}

// Label returns the operator-facing label for a status.
func (s Status) Label() string {
	switch s {
	case StatusWaiting:
		return "Pending"
	case StatusReserved:
		return "Reserved"
	case StatusFailed:
		return "Failed"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }
