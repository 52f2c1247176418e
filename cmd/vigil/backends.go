package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/xraph/vigil/backend"
	bunbackend "github.com/xraph/vigil/backend/bun"
	"github.com/xraph/vigil/backend/memory"
	"github.com/xraph/vigil/backend/mongo"
	"github.com/xraph/vigil/backend/postgres"
	redisbackend "github.com/xraph/vigil/backend/redis"
)

// Supported --backend URL schemes.
const (
	schemeMemory     = "memory"
	schemeRedis      = "redis"
	schemeRedisTLS   = "rediss"
	schemePostgres   = "postgres"
	schemePostgreSQL = "postgresql"
	schemeSQLite     = "sqlite"
	schemeMongo      = "mongodb"
	schemeMongoSRV   = "mongodb+srv"
)

// defaultMongoDatabase is used when a mongodb URL names no database.
const defaultMongoDatabase = "vigil"

// backendSpec is one parsed --backend flag.
type backendSpec struct {
	ID      string
	Scheme  string
	URL     string
	Channel string
}

// parseBackendFlag parses "id=scheme://rest[?channel=name&...]". The channel
// parameter is consumed here and removed from URL; the channel defaults to
// the id.
func parseBackendFlag(v string) (backendSpec, error) {
	id, raw, ok := strings.Cut(v, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return backendSpec{}, fmt.Errorf("invalid --backend %q: want id=url", v)
	}

	scheme, rest, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok || scheme == "" {
		return backendSpec{}, fmt.Errorf("invalid --backend %q: missing scheme", v)
	}
	scheme = strings.ToLower(scheme)
	switch scheme {
	case schemeMemory, schemeRedis, schemeRedisTLS, schemePostgres, schemePostgreSQL,
		schemeSQLite, schemeMongo, schemeMongoSRV:
	default:
		return backendSpec{}, fmt.Errorf("invalid --backend %q: unsupported scheme %q", v, scheme)
	}

	spec := backendSpec{ID: id, Scheme: scheme, Channel: id}

	base, rawQuery, _ := strings.Cut(rest, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return backendSpec{}, fmt.Errorf("invalid --backend %q: %w", v, err)
	}
	if ch := query.Get("channel"); ch != "" {
		spec.Channel = ch
	}
	query.Del("channel")

	spec.URL = scheme + "://" + base
	if enc := query.Encode(); enc != "" {
		spec.URL += "?" + enc
	}
	return spec, nil
}

type openOptions struct {
	logger  *slog.Logger
	migrate bool
}

// opened is a connected backend. listen is nil for backends whose failure
// events are emitted in-process.
type opened struct {
	spec    backendSpec
	adapter backend.Adapter
	listen  func(ctx context.Context) error
	close   func()
}

func openBackend(ctx context.Context, spec backendSpec, opts openOptions) (*opened, error) {
	o := &opened{spec: spec}

	switch spec.Scheme {
	case schemeMemory:
		o.adapter = memory.New()

	case schemeRedis, schemeRedisTLS:
		ropts, err := goredis.ParseURL(spec.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(ropts)
		a := redisbackend.New(client, redisbackend.WithLogger(opts.logger))
		if err := a.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		o.adapter, o.listen = a, a.Listen
		o.close = func() { _ = client.Close() }

	case schemePostgres, schemePostgreSQL:
		a, err := postgres.New(ctx, spec.URL, postgres.WithLogger(opts.logger))
		if err != nil {
			return nil, err
		}
		if opts.migrate {
			if err := a.Migrate(ctx); err != nil {
				a.Close()
				return nil, err
			}
		}
		o.adapter, o.listen, o.close = a, a.Listen, a.Close

	case schemeSQLite:
		dsn := strings.TrimPrefix(spec.URL, schemeSQLite+"://")
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		a := bunbackend.New(db, bunbackend.WithLogger(opts.logger))
		if opts.migrate {
			if err := a.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		o.adapter = a
		o.close = func() { _ = db.Close() }

	case schemeMongo, schemeMongoSRV:
		a, client, err := mongo.Connect(spec.URL, mongoDatabase(spec.URL), mongo.WithLogger(opts.logger))
		if err != nil {
			return nil, err
		}
		if opts.migrate {
			if err := a.Migrate(ctx); err != nil {
				_ = client.Disconnect(context.WithoutCancel(ctx))
				return nil, err
			}
		}
		o.adapter, o.listen = a, a.Listen
		o.close = func() { _ = client.Disconnect(context.Background()) }
	}
	return o, nil
}

// mongoDatabase returns the database named in the URL path.
func mongoDatabase(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultMongoDatabase
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return defaultMongoDatabase
}
