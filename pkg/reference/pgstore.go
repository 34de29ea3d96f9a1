package reference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed reference store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the employees and work_orders tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS employees (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS work_orders (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'Open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS employees_active_idx ON employees(active, name)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS work_orders_status_idx ON work_orders(status)`)
	return err
}

// ActiveEmployees returns active employees ordered by name.
func (s *PgStore) ActiveEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM employees WHERE active ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// OpenWorkOrders returns open work orders ordered by title.
func (s *PgStore) OpenWorkOrders(ctx context.Context) ([]WorkOrder, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title FROM work_orders WHERE status = $1 ORDER BY title ASC`, WorkOrderOpen)
	if err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	defer rows.Close()

	orders := []WorkOrder{}
	for rows.Next() {
		var w WorkOrder
		if err := rows.Scan(&w.ID, &w.Title); err != nil {
			return nil, err
		}
		orders = append(orders, w)
	}
	return orders, rows.Err()
}

// AddEmployee inserts an active employee.
func (s *PgStore) AddEmployee(ctx context.Context, name string) (*Employee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	e := &Employee{ID: uuid.Must(uuid.NewV7()).String(), Name: name}
	_, err := s.pool.Exec(ctx, `INSERT INTO employees (id, name, active, created_at) VALUES ($1, $2, TRUE, $3)`,
		e.ID, e.Name, time.Now().Truncate(time.Microsecond))
	if err != nil {
		return nil, fmt.Errorf("add employee %s: %w", name, err)
	}
	return e, nil
}

// AddWorkOrder inserts an open work order.
func (s *PgStore) AddWorkOrder(ctx context.Context, title string) (*WorkOrder, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyName
	}
	w := &WorkOrder{ID: uuid.Must(uuid.NewV7()).String(), Title: title}
	_, err := s.pool.Exec(ctx, `INSERT INTO work_orders (id, title, status, created_at) VALUES ($1, $2, $3, $4)`,
		w.ID, w.Title, WorkOrderOpen, time.Now().Truncate(time.Microsecond))
	if err != nil {
		return nil, fmt.Errorf("add work order %s: %w", title, err)
	}
	return w, nil
}
