// Package db opens the configured persistence backend and wires the task,
// reference and activity stores over it.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"managehub/internal/config"
	"managehub/pkg/activity"
	"managehub/pkg/reference"
	"managehub/pkg/task"
)

// Connect opens a PostgreSQL pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenSQLite opens a SQLite database at path, creating its directory.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rc, nil
}

// References returns the reference provider for s, wrapped in a Redis cache
// when cfg.URL is set. An unreachable Redis is logged and skipped. The
// returned func releases the Redis client.
func (s *Stores) References(ctx context.Context, cfg config.RedisConfig, logger log.FieldLogger) (reference.Provider, func()) {
	if cfg.URL == "" {
		return s.Refs, func() {}
	}
	rc, err := ConnectRedis(ctx, cfg.URL)
	if err != nil {
		logger.WithError(err).Warn("reference cache disabled")
		return s.Refs, func() {}
	}
	return reference.NewCache(s.Refs, rc, cfg.TTL), func() { rc.Close() }
}

// Stores bundles the stores of one backend.
type Stores struct {
	Driver   string
	Tasks    task.Store
	Refs     reference.Store
	Activity activity.Store

	close func()
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Driver:   cfg.Driver,
			Tasks:    task.NewPgStore(pool),
			Refs:     reference.NewPgStore(pool),
			Activity: activity.NewPgStore(pool),
			close:    pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStores(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewSQLiteStores wraps an open SQLite database. Close closes db.
func NewSQLiteStores(db *sql.DB) *Stores {
	return &Stores{
		Driver:   config.DriverSQLite,
		Tasks:    task.NewSQLiteStore(db),
		Refs:     reference.NewSQLiteStore(db),
		Activity: activity.NewSQLiteStore(db),
		close:    func() { db.Close() },
	}
}

// EnsureTables creates every table. Reference tables come first because
// tasks holds foreign keys to them.
func (s *Stores) EnsureTables(ctx context.Context) error {
	if err := s.Refs.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure reference tables: %w", err)
	}
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Activity.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure activity table: %w", err)
	}
	return nil
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}
