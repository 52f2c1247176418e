package audithook

// Audit event actions. Each constant corresponds to one ext hook and becomes
// the Action field of the audit event.
const (
	ActionJobFailed   = "job.failed"
	ActionJobRetried  = "job.retried"
	ActionJobReleased = "job.released"
)

// CategoryJob groups every action this extension emits.
const CategoryJob = "vigil.job"

// ResourceJob is the Resource field of every audit event.
const ResourceJob = "job"

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobFailed,
		ActionJobRetried,
		ActionJobReleased,
	}
}
