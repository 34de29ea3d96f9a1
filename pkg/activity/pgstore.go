package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed activity Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activity (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			source    TEXT NOT NULL,
			task_id   TEXT NOT NULL DEFAULT '',
			content   JSONB NOT NULL DEFAULT '{}'
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_timestamp_id ON activity(timestamp, id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_task ON activity(task_id) WHERE task_id != ''`)
	return err
}

// Append stores a new event.
func (s *PgStore) Append(ctx context.Context, eventType, source, taskID string, content map[string]any) (*Event, error) {
	e, contentJSON, err := newEvent(eventType, source, taskID, content)
	if err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.Truncate(time.Microsecond)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO activity (id, type, timestamp, source, task_id, content)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		e.ID, e.Type, e.Timestamp, e.Source, e.TaskID, string(contentJSON))
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return e, nil
}

// Recent returns the most recent events in reverse chronological order.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT id, type, timestamp, source, task_id, content
		FROM activity ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

// ByTask returns a task's events, newest first.
func (s *PgStore) ByTask(ctx context.Context, taskID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT id, type, timestamp, source, task_id, content
		FROM activity WHERE task_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, taskID, limit)
}

// Count returns the total number of events.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return n, nil
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Timestamp, &e.Source, &e.TaskID, &contentJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

func newEvent(eventType, source, taskID string, content map[string]any) (*Event, []byte, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}
	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		TaskID:    taskID,
		Content:   content,
	}
	return e, contentJSON, nil
}
