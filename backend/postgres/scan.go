package postgres

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/vigil/backend"
)

const recordColumns = `id, channel, job, description, class, time_pushed, ttr, delay, priority,
	date_reserved, time_updated, progress, progress_label, attempt, fail, date_failed, error`

// triageOrder mirrors backend.Bucket: reserved, waiting, failed.
const triageOrder = `CASE WHEN fail THEN 2 WHEN date_reserved IS NOT NULL THEN 0 ELSE 1 END,
	time_pushed DESC, id DESC`

const pushedOrder = `time_pushed DESC, id DESC`

// listQuery builds the ListJobs statement. A limit of zero becomes
// LIMIT NULL, which Postgres treats as no limit.
func listQuery(o backend.Order) string {
	order := triageOrder
	if o == backend.OrderPushedDesc {
		order = pushedOrder
	}
	return `SELECT ` + recordColumns + ` FROM queue WHERE channel = $1 ORDER BY ` + order + ` LIMIT NULLIF($2, 0)`
}

func scanRecord(row pgx.Row) (*backend.Record, error) {
	var (
		r                               backend.Record
		n                               int64
		desc, class, label, errText     *string
		reservedAt, updatedAt, failedAt *time.Time
	)
	err := row.Scan(
		&n, &r.Channel, &r.Payload, &desc, &class, &r.PushedAt, &r.TTR, &r.Delay, &r.Priority,
		&reservedAt, &updatedAt, &r.Progress, &label, &r.Attempt, &r.Fail, &failedAt, &errText,
	)
	if err != nil {
		return nil, err
	}
	r.ID = strconv.FormatInt(n, 10)
	r.Description = deref(desc)
	r.Class = deref(class)
	r.ProgressLabel = deref(label)
	r.Error = deref(errText)
	r.PushedAt = r.PushedAt.UTC()
	r.ReservedAt = utc(reservedAt)
	r.UpdatedAt = utc(updatedAt)
	r.FailedAt = utc(failedAt)
	return &r, nil
}

// parseID rejects ids that cannot be a BIGSERIAL value, which lets callers
// answer not-found without a round trip.
func parseID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func withDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
