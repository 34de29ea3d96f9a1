package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist. The employees and
// work_orders tables must exist first.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			due_date      DATE,
			priority      INTEGER NOT NULL DEFAULT 2,
			status        TEXT NOT NULL DEFAULT 'To Do'
			              CHECK (status IN ('To Do', 'In Progress', 'Done', 'Blocked')),
			assigned_to   TEXT REFERENCES employees(id) ON DELETE SET NULL,
			work_order_id TEXT REFERENCES work_orders(id) ON DELETE SET NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority DESC, created_at)`)
	return err
}

const pgSelectTasks = `
	SELECT t.id, t.title, t.description, t.due_date, t.priority, t.status,
	       COALESCE(t.assigned_to, ''), COALESCE(e.name, ''),
	       COALESCE(t.work_order_id, ''), COALESCE(w.title, ''),
	       t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN employees e ON e.id = t.assigned_to
	LEFT JOIN work_orders w ON w.id = t.work_order_id`

// Create inserts a new task with status To Do.
func (s *PgStore) Create(ctx context.Context, n NewTask) (*Task, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, title, description, due_date, priority, status, assigned_to, work_order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		id, n.Title, n.Description, n.DueDate, int(n.Priority), string(StatusToDo),
		nilIfEmpty(n.AssignedTo), nilIfEmpty(n.WorkOrderID), now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, pgSelectTasks+` WHERE t.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// List returns all tasks ordered by priority desc then created_at asc.
func (s *PgStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, pgSelectTasks+` ORDER BY t.priority DESC, t.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// UpdateStatus sets the status of a single task.
func (s *PgStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().Truncate(time.Microsecond), id)
	if err != nil {
		return fmt.Errorf("update task %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s status: %w", id, ErrNotFound)
	}
	return nil
}

// CountByStatus returns the number of tasks in each status.
func (s *PgStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var priority int
	var status string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &priority, &status,
		&t.AssignedTo, &t.AssigneeName, &t.WorkOrderID, &t.WorkOrderTitle,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	return &t, nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

func scanCounts(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) (map[Status]int, error) {
	counts := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
