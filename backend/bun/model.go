package bunbackend

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/vigil/backend"
)

type queueModel struct {
	bun.BaseModel `bun:"table:queue,alias:q"`

	ID            int64      `bun:"id,pk,autoincrement"`
	Channel       string     `bun:"channel,notnull,default:'queue'"`
	Job           []byte     `bun:"job"`
	Description   string     `bun:"description,nullzero"`
	Class         string     `bun:"class,nullzero"`
	TimePushed    time.Time  `bun:"time_pushed,notnull"`
	TTR           int        `bun:"ttr,notnull,default:300"`
	Delay         int        `bun:"delay,notnull,default:0"`
	Priority      int        `bun:"priority,notnull,default:1024"`
	DateReserved  *time.Time `bun:"date_reserved"`
	TimeUpdated   *time.Time `bun:"time_updated"`
	Progress      int        `bun:"progress,notnull,default:0"`
	ProgressLabel string     `bun:"progress_label,nullzero"`
	Attempt       int        `bun:"attempt,notnull,default:0"`
	Fail          bool       `bun:"fail,notnull,default:false"`
	DateFailed    *time.Time `bun:"date_failed"`
	Error         string     `bun:"error,nullzero"`
}

func toQueueModel(r *backend.Record) *queueModel {
	m := &queueModel{
		Channel:       r.Channel,
		Job:           r.Payload,
		Description:   r.Description,
		Class:         r.Class,
		TimePushed:    r.PushedAt.UTC(),
		TTR:           r.TTR,
		Delay:         r.Delay,
		Priority:      r.Priority,
		DateReserved:  r.ReservedAt,
		TimeUpdated:   r.UpdatedAt,
		Progress:      r.Progress,
		ProgressLabel: r.ProgressLabel,
		Attempt:       r.Attempt,
		Fail:          r.Fail,
		DateFailed:    r.FailedAt,
		Error:         r.Error,
	}
	if m.TTR == 0 {
		m.TTR = backend.DefaultTTR
	}
	if m.Priority == 0 {
		m.Priority = backend.DefaultPriority
	}
	return m
}

func fromQueueModel(m *queueModel) *backend.Record {
	return &backend.Record{
		ID:            strconv.FormatInt(m.ID, 10),
		Channel:       m.Channel,
		Description:   m.Description,
		Class:         m.Class,
		Payload:       m.Job,
		PushedAt:      m.TimePushed.UTC(),
		ReservedAt:    utc(m.DateReserved),
		FailedAt:      utc(m.DateFailed),
		UpdatedAt:     utc(m.TimeUpdated),
		Attempt:       m.Attempt,
		TTR:           m.TTR,
		Delay:         m.Delay,
		Priority:      m.Priority,
		Fail:          m.Fail,
		Error:         m.Error,
		Progress:      m.Progress,
		ProgressLabel: m.ProgressLabel,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
