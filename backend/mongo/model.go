package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/vigil/backend"
)

type queueDoc struct {
	ID            bson.ObjectID `bson:"_id"`
	Channel       string        `bson:"channel"`
	Job           []byte        `bson:"job,omitempty"`
	Description   string        `bson:"description,omitempty"`
	Class         string        `bson:"class,omitempty"`
	TimePushed    time.Time     `bson:"time_pushed"`
	TTR           int           `bson:"ttr"`
	Delay         int           `bson:"delay"`
	Priority      int           `bson:"priority"`
	DateReserved  *time.Time    `bson:"date_reserved,omitempty"`
	TimeUpdated   *time.Time    `bson:"time_updated,omitempty"`
	Progress      int           `bson:"progress"`
	ProgressLabel string        `bson:"progress_label,omitempty"`
	Attempt       int           `bson:"attempt"`
	Fail          bool          `bson:"fail"`
	DateFailed    *time.Time    `bson:"date_failed,omitempty"`
	Error         string        `bson:"error,omitempty"`
}

func toQueueDoc(r *backend.Record) *queueDoc {
	d := &queueDoc{
		ID:            bson.NewObjectID(),
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
	if d.TTR == 0 {
		d.TTR = backend.DefaultTTR
	}
	if d.Priority == 0 {
		d.Priority = backend.DefaultPriority
	}
	return d
}

func fromQueueDoc(d *queueDoc) *backend.Record {
	return &backend.Record{
		ID:            d.ID.Hex(),
		Channel:       d.Channel,
		Description:   d.Description,
		Class:         d.Class,
		Payload:       d.Job,
		PushedAt:      d.TimePushed.UTC(),
		ReservedAt:    utc(d.DateReserved),
		FailedAt:      utc(d.DateFailed),
		UpdatedAt:     utc(d.TimeUpdated),
		Attempt:       d.Attempt,
		TTR:           d.TTR,
		Delay:         d.Delay,
		Priority:      d.Priority,
		Fail:          d.Fail,
		Error:         d.Error,
		Progress:      d.Progress,
		ProgressLabel: d.ProgressLabel,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
