package task

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the fixed-width UTC layout SQLite stores use for timestamps,
// so lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is a task store over a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			due_date      TEXT,
			priority      INTEGER NOT NULL DEFAULT 2,
			status        TEXT NOT NULL DEFAULT 'To Do'
			              CHECK (status IN ('To Do', 'In Progress', 'Done', 'Blocked')),
			assigned_to   TEXT REFERENCES employees(id) ON DELETE SET NULL,
			work_order_id TEXT REFERENCES work_orders(id) ON DELETE SET NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority DESC, created_at)`)
	return err
}

const sqliteSelectTasks = `
	SELECT t.id, t.title, t.description, t.due_date, t.priority, t.status,
	       COALESCE(t.assigned_to, ''), COALESCE(e.name, ''),
	       COALESCE(t.work_order_id, ''), COALESCE(w.title, ''),
	       t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN employees e ON e.id = t.assigned_to
	LEFT JOIN work_orders w ON w.id = t.work_order_id`

// Create inserts a new task with status To Do.
func (s *SQLiteStore) Create(ctx context.Context, n NewTask) (*Task, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC().Format(TimeLayout)

	var due any
	if n.DueDate != nil {
		due = n.DueDate.Format(DateLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, due_date, priority, status, assigned_to, work_order_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, n.Title, n.Description, due, int(n.Priority), string(StatusToDo),
		nilIfEmpty(n.AssignedTo), nilIfEmpty(n.WorkOrderID), now, now)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a single task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanSQLiteTask(s.db.QueryRowContext(ctx, sqliteSelectTasks+` WHERE t.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// List returns all tasks ordered by priority desc then created_at asc.
func (s *SQLiteStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectTasks+` ORDER BY t.priority DESC, t.created_at ASC, t.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
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

// UpdateStatus sets the status of a single task.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(TimeLayout), id)
	if err != nil {
		return fmt.Errorf("update task %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %s status: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update task %s status: %w", id, ErrNotFound)
	}
	return nil
}

// CountByStatus returns the number of tasks in each status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

func scanSQLiteTask(row rowScanner) (*Task, error) {
	var t Task
	var due sql.NullString
	var priority int
	var status, created, updated string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &priority, &status,
		&t.AssignedTo, &t.AssigneeName, &t.WorkOrderID, &t.WorkOrderTitle,
		&created, &updated); err != nil {
		return nil, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	if due.Valid {
		d, err := ParseDate(due.String)
		if err != nil {
			return nil, err
		}
		t.DueDate = d
	}
	var err error
	if t.CreatedAt, err = time.Parse(TimeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(TimeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}
