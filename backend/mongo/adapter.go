package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/id"
)

// DefaultCollection is the collection holding queue documents.
const DefaultCollection = "queue"

var _ backend.Adapter = (*Adapter)(nil)

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger sets the logger for the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithCollection overrides DefaultCollection.
func WithCollection(name string) Option {
	return func(a *Adapter) {
		a.collection = name
	}
}

// WithClock overrides the time source used by the writer helpers.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// Adapter is a MongoDB queue backend. The caller owns the database's client
// lifecycle; Adapter never disconnects it.
type Adapter struct {
	backend.Observers

	db         *mongod.Database
	collection string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Adapter over db.
func New(db *mongod.Database, opts ...Option) *Adapter {
	a := &Adapter{
		db:         db,
		collection: DefaultCollection,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect dials uri and returns an Adapter over the named database along
// with the client so the caller can disconnect it.
func Connect(uri, database string, opts ...Option) (*Adapter, *mongod.Client, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("vigil/mongo: connect: %w", err)
	}
	return New(client.Database(database), opts...), client, nil
}

func (a *Adapter) col() *mongod.Collection {
	return a.db.Collection(a.collection)
}

// Migrate creates the collection indexes.
func (a *Adapter) Migrate(ctx context.Context) error {
	_, err := a.col().Indexes().CreateMany(ctx, []mongod.IndexModel{
		{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "time_pushed", Value: -1}}},
		{Keys: bson.D{{Key: "fail", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("vigil/mongo: migrate %s indexes: %w", a.collection, err)
	}
	return nil
}

// Ping checks database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.Client().Ping(ctx, nil)
}

// ──────────────────────────────────────────────────
// backend.Adapter
// ──────────────────────────────────────────────────

// ListJobs returns the channel's records sorted by the server.
func (a *Adapter) ListJobs(ctx context.Context, channel string, opts backend.ListOpts) ([]*backend.Record, error) {
	cursor, err := a.col().Aggregate(ctx, listPipeline(channel, opts))
	if err != nil {
		return nil, fmt.Errorf("vigil/mongo: list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []queueDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("vigil/mongo: decode jobs: %w", err)
	}

	out := make([]*backend.Record, len(docs))
	for i := range docs {
		out[i] = fromQueueDoc(&docs[i])
	}
	return out, nil
}

// GetJob returns one record of the channel.
func (a *Adapter) GetJob(ctx context.Context, channel, jobID string) (*backend.Record, error) {
	oid, ok := parseID(jobID)
	if !ok {
		return nil, vigil.ErrJobNotFound
	}
	var d queueDoc
	err := a.col().FindOne(ctx, bson.M{"_id": oid, "channel": channel}).Decode(&d)
	if err != nil {
		if isNoDocuments(err) {
			return nil, vigil.ErrJobNotFound
		}
		return nil, fmt.Errorf("vigil/mongo: get job: %w", err)
	}
	return fromQueueDoc(&d), nil
}

// CountByStatus groups the channel's documents server-side.
func (a *Adapter) CountByStatus(ctx context.Context, channel string) (backend.Stats, error) {
	cursor, err := a.col().Aggregate(ctx, statsPipeline(channel))
	if err != nil {
		return backend.Stats{}, fmt.Errorf("vigil/mongo: count by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []statsRow
	if err := cursor.All(ctx, &rows); err != nil {
		return backend.Stats{}, fmt.Errorf("vigil/mongo: decode stats: %w", err)
	}
	if len(rows) == 0 {
		return backend.Stats{}, nil
	}
	return rows[0].stats(), nil
}

// ListJobIDs returns the channel's ids, newest first.
func (a *Adapter) ListJobIDs(ctx context.Context, channel string, failedOnly bool) ([]string, error) {
	filter := bson.M{"channel": channel}
	if failedOnly {
		filter["fail"] = true
	}
	findOpts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "time_pushed", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := a.col().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("vigil/mongo: list job ids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("vigil/mongo: decode job ids: %w", err)
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID.Hex()
	}
	return ids, nil
}

// Retry clears the execution state of a job.
func (a *Adapter) Retry(ctx context.Context, jobID string) error {
	return a.update(ctx, "retry", jobID, bson.M{
		"$set": bson.M{
			"progress": 0,
			"attempt":  0,
			"fail":     false,
		},
		"$unset": bson.M{
			"date_reserved":  "",
			"time_updated":   "",
			"date_failed":    "",
			"progress_label": "",
			"error":          "",
		},
	})
}

// Release deletes a job.
func (a *Adapter) Release(ctx context.Context, jobID string) error {
	oid, ok := parseID(jobID)
	if !ok {
		return fmt.Errorf("vigil/mongo: release %s: %w", jobID, vigil.ErrJobNotFound)
	}
	res, err := a.col().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("vigil/mongo: release: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("vigil/mongo: release %s: %w", jobID, vigil.ErrJobNotFound)
	}
	return nil
}

// TotalFailed counts failed jobs across all channels.
func (a *Adapter) TotalFailed(ctx context.Context) (int64, error) {
	n, err := a.col().CountDocuments(ctx, bson.M{"fail": true})
	if err != nil {
		return 0, fmt.Errorf("vigil/mongo: total failed: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Writer helpers
// ──────────────────────────────────────────────────

// Put inserts rec under a fresh ObjectID and returns its hex form.
func (a *Adapter) Put(ctx context.Context, rec *backend.Record) (string, error) {
	d := toQueueDoc(rec)
	if d.TimePushed.IsZero() {
		d.TimePushed = a.now().UTC()
	}
	if _, err := a.col().InsertOne(ctx, d); err != nil {
		return "", fmt.Errorf("vigil/mongo: put: %w", err)
	}
	return d.ID.Hex(), nil
}

// Reserve marks a job as leased and counts the attempt.
func (a *Adapter) Reserve(ctx context.Context, jobID string) error {
	t := a.now().UTC()
	return a.update(ctx, "reserve", jobID, bson.M{
		"$set": bson.M{"date_reserved": t, "time_updated": t},
		"$inc": bson.M{"attempt": 1},
	})
}

// Fail records an execution failure. The failure event reaches subscribers
// through Listen.
func (a *Adapter) Fail(ctx context.Context, jobID, message string) error {
	t := a.now().UTC()
	return a.update(ctx, "fail", jobID, bson.M{
		"$set": bson.M{
			"fail":         true,
			"date_failed":  t,
			"time_updated": t,
			"error":        message,
		},
	})
}

func (a *Adapter) update(ctx context.Context, op, jobID string, update bson.M) error {
	oid, ok := parseID(jobID)
	if !ok {
		return fmt.Errorf("vigil/mongo: %s %s: %w", op, jobID, vigil.ErrJobNotFound)
	}
	res, err := a.col().UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("vigil/mongo: %s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("vigil/mongo: %s %s: %w", op, jobID, vigil.ErrJobNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Change stream
// ──────────────────────────────────────────────────

type changeEvent struct {
	OperationType string    `bson:"operationType"`
	FullDocument  *queueDoc `bson:"fullDocument"`
}

// Listen watches the collection and emits a failure event each time a
// document's fail flag is set. It blocks until ctx is canceled, which is
// reported as a nil error.
func (a *Adapter) Listen(ctx context.Context) error {
	cs, err := a.col().Watch(ctx, failurePipeline(),
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("vigil/mongo: watch %s: %w", a.collection, err)
	}
	defer cs.Close(context.WithoutCancel(ctx))

	for cs.Next(ctx) {
		var ch changeEvent
		if err := cs.Decode(&ch); err != nil {
			a.logger.Warn("vigil/mongo: dropping malformed change event",
				slog.String("error", err.Error()),
			)
			continue
		}
		ev, ok := eventFromChange(ch, a.now)
		if !ok {
			continue
		}
		a.Emit(ctx, ev)
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := cs.Err(); err != nil {
		return fmt.Errorf("vigil/mongo: change stream: %w", err)
	}
	return nil
}

func eventFromChange(ch changeEvent, now func() time.Time) (backend.FailureEvent, bool) {
	d := ch.FullDocument
	if d == nil || !d.Fail {
		return backend.FailureEvent{}, false
	}
	occurred := now().UTC()
	if d.DateFailed != nil {
		occurred = d.DateFailed.UTC()
	}
	return backend.FailureEvent{
		ID:          id.NewFailureID(),
		Channel:     d.Channel,
		JobID:       d.ID.Hex(),
		Description: d.Description,
		Attempt:     d.Attempt,
		Error:       d.Error,
		OccurredAt:  occurred,
	}, true
}

// ── helpers ──────────────────────────────────────────────────────

func parseID(s string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}
