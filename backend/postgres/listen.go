package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/id"
)

// notification is the JSON document built by vigil_notify_failure().
type notification struct {
	ID          string  `json:"id"`
	Channel     string  `json:"channel"`
	Description *string `json:"description"`
	Attempt     int     `json:"attempt"`
	Error       *string `json:"error"`
	FailedAt    float64 `json:"failed_at"`
}

// Listen holds one pooled connection in LISTEN mode and emits a failure
// event to subscribers for every notification. It blocks until ctx is
// canceled, which is reported as a nil error.
func (a *Adapter) Listen(ctx context.Context) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("vigil/postgres: acquire listener: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("vigil/postgres: listen: %w", err)
	}
	a.logger.Debug("listening for failures", slog.String("channel", NotifyChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("vigil/postgres: wait for notification: %w", err)
		}

		ev, err := decodeNotification(n)
		if err != nil {
			a.logger.Warn("vigil/postgres: dropping malformed failure event",
				slog.String("error", err.Error()),
			)
			continue
		}
		a.Emit(ctx, ev)
	}
}

func decodeNotification(n *pgconn.Notification) (backend.FailureEvent, error) {
	if n.Channel != NotifyChannel {
		return backend.FailureEvent{}, fmt.Errorf("unexpected channel %q", n.Channel)
	}
	var msg notification
	if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
		return backend.FailureEvent{}, err
	}
	if msg.ID == "" {
		return backend.FailureEvent{}, errors.New("missing job id")
	}

	sec, frac := math.Modf(msg.FailedAt)
	return backend.FailureEvent{
		ID:          id.NewFailureID(),
		Channel:     msg.Channel,
		JobID:       msg.ID,
		Description: deref(msg.Description),
		Attempt:     msg.Attempt,
		Error:       deref(msg.Error),
		OccurredAt:  time.Unix(int64(sec), int64(frac*1e9)).UTC(),
	}, nil
}
