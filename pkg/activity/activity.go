// Package activity records what happened on the board: task creation and
// confirmed status transitions. Records are append-only.
package activity

import (
	"context"
	"time"
)

// Event types.
const (
	TaskCreated = "task.created"
	TaskMoved   = "task.moved"
)

// Event is a single entry in the activity log.
type Event struct {
	ID        string         `json:"id"`        // UUID v7 (time-ordered)
	Type      string         `json:"type"`      // e.g. "task.moved"
	Timestamp time.Time      `json:"timestamp"` // when the event occurred
	Source    string         `json:"source"`    // "api", "cli", "mcp", "ui"
	TaskID    string         `json:"task_id"`
	Content   map[string]any `json:"content"` // e.g. {"from": "To Do", "to": "Done"}
}

// Store is the contract for activity persistence.
type Store interface {
	Append(ctx context.Context, eventType, source, taskID string, content map[string]any) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	ByTask(ctx context.Context, taskID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
