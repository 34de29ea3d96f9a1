package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is an activity Store over a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the activity table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			source    TEXT NOT NULL,
			task_id   TEXT NOT NULL DEFAULT '',
			content   TEXT NOT NULL DEFAULT '{}'
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_task ON activity(task_id)`)
	return err
}

// Append stores a new event.
func (s *SQLiteStore) Append(ctx context.Context, eventType, source, taskID string, content map[string]any) (*Event, error) {
	e, contentJSON, err := newEvent(eventType, source, taskID, content)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity (id, type, timestamp, source, task_id, content)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Timestamp.Format(timeLayout), e.Source, e.TaskID, string(contentJSON))
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return e, nil
}

// Recent returns the most recent events in reverse chronological order.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT id, type, timestamp, source, task_id, content
		FROM activity ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// ByTask returns a task's events, newest first.
func (s *SQLiteStore) ByTask(ctx context.Context, taskID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `
		SELECT id, type, timestamp, source, task_id, content
		FROM activity WHERE task_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, taskID, limit)
}

// Count returns the total number of events.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var ts, contentJSON string
		if err := rows.Scan(&e.ID, &e.Type, &ts, &e.Source, &e.TaskID, &contentJSON); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(contentJSON), &e.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}
