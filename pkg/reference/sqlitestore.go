package reference

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore is a reference store over a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the employees and work_orders tables if they don't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS employees (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS work_orders (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'Open',
			created_at TEXT NOT NULL DEFAULT ''
		)`)
	return err
}

// ActiveEmployees returns active employees ordered by name.
func (s *SQLiteStore) ActiveEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM employees WHERE active = 1 ORDER BY name ASC`)
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
func (s *SQLiteStore) OpenWorkOrders(ctx context.Context) ([]WorkOrder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM work_orders WHERE status = ? ORDER BY title ASC`, WorkOrderOpen)
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
func (s *SQLiteStore) AddEmployee(ctx context.Context, name string) (*Employee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	e := &Employee{ID: uuid.Must(uuid.NewV7()).String(), Name: name}
	_, err := s.db.ExecContext(ctx, `INSERT INTO employees (id, name, active, created_at) VALUES (?, ?, 1, ?)`,
		e.ID, e.Name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("add employee %s: %w", name, err)
	}
	return e, nil
}

// AddWorkOrder inserts an open work order.
func (s *SQLiteStore) AddWorkOrder(ctx context.Context, title string) (*WorkOrder, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyName
	}
	w := &WorkOrder{ID: uuid.Must(uuid.NewV7()).String(), Title: title}
	_, err := s.db.ExecContext(ctx, `INSERT INTO work_orders (id, title, status, created_at) VALUES (?, ?, ?, ?)`,
		w.ID, w.Title, WorkOrderOpen, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("add work order %s: %w", title, err)
	}
	return w, nil
}
