package bunbackend_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	bunbackend "github.com/xraph/vigil/backend/bun"
)

var epoch = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func setupAdapter(t *testing.T) *bunbackend.Adapter {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	a := bunbackend.New(db, bunbackend.WithClock(func() time.Time { return epoch.Add(time.Hour) }))
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

// seed pushes one waiting, one reserved and one failed job, in that push
// order, and returns their ids.
func seed(t *testing.T, a *bunbackend.Adapter, channel string) (waiting, reserved, failed string) {
	t.Helper()
	ctx := context.Background()

	put := func(offset time.Duration, desc string) string {
		jobID, err := a.Put(ctx, &backend.Record{
			Channel:     channel,
			Description: desc,
			PushedAt:    epoch.Add(offset),
		})
		require.NoError(t, err)
		return jobID
	}

	failed = put(0, "Resize image")
	reserved = put(time.Minute, "Send welcome email")
	waiting = put(2*time.Minute, "Rebuild search index")

	require.NoError(t, a.Reserve(ctx, reserved))
	require.NoError(t, a.Reserve(ctx, failed))
	require.NoError(t, a.Fail(ctx, failed, "boom"))
	return waiting, reserved, failed
}

func TestListJobs_TriageOrder(t *testing.T) {
	a := setupAdapter(t)
	waiting, reserved, failed := seed(t, a, "queue")

	got, err := a.ListJobs(context.Background(), "queue", backend.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{reserved, waiting, failed}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, backend.StatusReserved, got[0].Status())
	assert.Equal(t, backend.StatusWaiting, got[1].Status())
	assert.Equal(t, backend.StatusFailed, got[2].Status())
	assert.Equal(t, backend.DefaultTTR, got[1].TTR)
	assert.Equal(t, backend.DefaultPriority, got[1].Priority)
}

func TestListJobs_LimitAndPushedOrder(t *testing.T) {
	a := setupAdapter(t)
	waiting, reserved, _ := seed(t, a, "queue")

	got, err := a.ListJobs(context.Background(), "queue", backend.ListOpts{
		Limit: 2,
		Order: backend.OrderPushedDesc,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, waiting, got[0].ID)
	assert.Equal(t, reserved, got[1].ID)
}

func TestCountByStatus(t *testing.T) {
	a := setupAdapter(t)
	seed(t, a, "queue")
	seed(t, a, "other")

	s, err := a.CountByStatus(context.Background(), "queue")
	require.NoError(t, err)
	assert.Equal(t, backend.Stats{Total: 3, Waiting: 1, Reserved: 1, Failed: 1}, s)
	assert.True(t, s.Consistent())

	empty, err := a.CountByStatus(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Equal(t, backend.Stats{}, empty)

	total, err := a.TotalFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGetJob(t *testing.T) {
	a := setupAdapter(t)
	_, _, failed := seed(t, a, "queue")
	ctx := context.Background()

	r, err := a.GetJob(ctx, "queue", failed)
	require.NoError(t, err)
	assert.True(t, r.Fail)
	assert.Equal(t, "boom", r.Error)
	assert.Equal(t, 1, r.Attempt)
	require.NotNil(t, r.FailedAt)
	assert.True(t, r.FailedAt.Equal(epoch.Add(time.Hour)))

	_, err = a.GetJob(ctx, "other", failed)
	assert.ErrorIs(t, err, vigil.ErrJobNotFound)

	_, err = a.GetJob(ctx, "queue", "not-a-number")
	assert.ErrorIs(t, err, vigil.ErrJobNotFound)
}

func TestListJobIDs(t *testing.T) {
	a := setupAdapter(t)
	waiting, reserved, failed := seed(t, a, "queue")
	ctx := context.Background()

	all, err := a.ListJobIDs(ctx, "queue", false)
	require.NoError(t, err)
	assert.Equal(t, []string{waiting, reserved, failed}, all)

	onlyFailed, err := a.ListJobIDs(ctx, "queue", true)
	require.NoError(t, err)
	assert.Equal(t, []string{failed}, onlyFailed)
}

func TestRetry(t *testing.T) {
	a := setupAdapter(t)
	_, _, failed := seed(t, a, "queue")
	ctx := context.Background()

	require.NoError(t, a.Retry(ctx, failed))

	r, err := a.GetJob(ctx, "queue", failed)
	require.NoError(t, err)
	assert.False(t, r.Fail)
	assert.Nil(t, r.ReservedAt)
	assert.Nil(t, r.FailedAt)
	assert.Zero(t, r.Attempt)
	assert.Empty(t, r.Error)
	assert.Equal(t, backend.StatusWaiting, r.Status())

	assert.ErrorIs(t, a.Retry(ctx, "999"), vigil.ErrJobNotFound)
}

func TestRelease(t *testing.T) {
	a := setupAdapter(t)
	waiting, _, _ := seed(t, a, "queue")
	ctx := context.Background()

	require.NoError(t, a.Release(ctx, waiting))
	_, err := a.GetJob(ctx, "queue", waiting)
	assert.ErrorIs(t, err, vigil.ErrJobNotFound)

	err = a.Release(ctx, waiting)
	assert.True(t, errors.Is(err, vigil.ErrJobNotFound), "second release: %v", err)
}

func TestFail_EmitsToSubscribers(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	var events []backend.FailureEvent
	unsubscribe := a.Subscribe(func(_ context.Context, ev backend.FailureEvent) {
		events = append(events, ev)
	})

	jobID, err := a.Put(ctx, &backend.Record{Channel: "mail", Description: "Send digest", PushedAt: epoch})
	require.NoError(t, err)
	require.NoError(t, a.Reserve(ctx, jobID))
	require.NoError(t, a.Fail(ctx, jobID, "smtp down"))

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, jobID, ev.JobID)
	assert.Equal(t, "mail", ev.Channel)
	assert.Equal(t, "Send digest", ev.Description)
	assert.Equal(t, 1, ev.Attempt)
	assert.Equal(t, "smtp down", ev.Error)
	assert.False(t, ev.ID.IsNil())

	unsubscribe()
	require.NoError(t, a.Fail(ctx, jobID, "again"))
	assert.Len(t, events, 1)

	assert.ErrorIs(t, a.Fail(ctx, "12345", "x"), vigil.ErrJobNotFound)
}
