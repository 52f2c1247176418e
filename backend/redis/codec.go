package redis

import (
	"strconv"
	"time"

	"github.com/xraph/vigil/backend"
)

// Hash field names.
const (
	fieldID            = "id"
	fieldChannel       = "channel"
	fieldDescription   = "description"
	fieldClass         = "class"
	fieldPayload       = "payload"
	fieldPushedAt      = "pushed_at"
	fieldReservedAt    = "reserved_at"
	fieldFailedAt      = "failed_at"
	fieldUpdatedAt     = "updated_at"
	fieldAttempt       = "attempt"
	fieldTTR           = "ttr"
	fieldDelay         = "delay"
	fieldPriority      = "priority"
	fieldFail          = "fail"
	fieldError         = "error"
	fieldProgress      = "progress"
	fieldProgressLabel = "progress_label"
)

// Timestamps are stored as Unix seconds, matching what queue engines
// commonly write.
func formatUnix(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

func parseUnix(s string) *time.Time {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return nil
	}
	t := time.Unix(n, 0).UTC()
	return &t
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func recordToMap(r *backend.Record) map[string]any {
	m := map[string]any{
		fieldID:            r.ID,
		fieldChannel:       r.Channel,
		fieldDescription:   r.Description,
		fieldClass:         r.Class,
		fieldPayload:       string(r.Payload),
		fieldPushedAt:      formatUnix(r.PushedAt),
		fieldAttempt:       strconv.Itoa(r.Attempt),
		fieldTTR:           strconv.Itoa(r.TTR),
		fieldDelay:         strconv.Itoa(r.Delay),
		fieldPriority:      strconv.Itoa(r.Priority),
		fieldFail:          formatBool(r.Fail),
		fieldError:         r.Error,
		fieldProgress:      strconv.Itoa(r.Progress),
		fieldProgressLabel: r.ProgressLabel,
	}
	if r.ReservedAt != nil {
		m[fieldReservedAt] = formatUnix(*r.ReservedAt)
	}
	if r.FailedAt != nil {
		m[fieldFailedAt] = formatUnix(*r.FailedAt)
	}
	if r.UpdatedAt != nil {
		m[fieldUpdatedAt] = formatUnix(*r.UpdatedAt)
	}
	return m
}

func mapToRecord(m map[string]string) *backend.Record {
	atoi := func(k string) int {
		n, _ := strconv.Atoi(m[k]) //nolint:errcheck // best-effort parse from trusted Redis data
		return n
	}
	r := &backend.Record{
		ID:            m[fieldID],
		Channel:       m[fieldChannel],
		Description:   m[fieldDescription],
		Class:         m[fieldClass],
		Attempt:       atoi(fieldAttempt),
		TTR:           atoi(fieldTTR),
		Delay:         atoi(fieldDelay),
		Priority:      atoi(fieldPriority),
		Fail:          m[fieldFail] == "1",
		Error:         m[fieldError],
		Progress:      atoi(fieldProgress),
		ProgressLabel: m[fieldProgressLabel],
		ReservedAt:    parseUnix(m[fieldReservedAt]),
		FailedAt:      parseUnix(m[fieldFailedAt]),
		UpdatedAt:     parseUnix(m[fieldUpdatedAt]),
	}
	if p := m[fieldPayload]; p != "" {
		r.Payload = []byte(p)
	}
	if t := parseUnix(m[fieldPushedAt]); t != nil {
		r.PushedAt = *t
	}
	return r
}

// statusFields is the projection CountByStatus and ListJobIDs need.
var statusFields = []string{fieldFail, fieldReservedAt}

func statusOf(vals []any) backend.Status {
	fail, _ := vals[0].(string)
	reserved, _ := vals[1].(string)
	return backend.Classify(fail == "1", parseUnix(reserved))
}
