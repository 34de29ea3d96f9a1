package reference

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewSQLiteStore(db)
	if err := s.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return s, db
}

func TestActiveEmployeesSkipsInactive(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Grace", "Ada"} {
		if _, err := s.AddEmployee(ctx, name); err != nil {
			t.Fatalf("AddEmployee %s: %v", name, err)
		}
	}
	gone, err := s.AddEmployee(ctx, "Bob")
	if err != nil {
		t.Fatalf("AddEmployee: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE employees SET active = 0 WHERE id = ?`, gone.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	employees, err := s.ActiveEmployees(ctx)
	if err != nil {
		t.Fatalf("ActiveEmployees: %v", err)
	}
	if len(employees) != 2 {
		t.Fatalf("expected 2 active employees, got %d", len(employees))
	}
	if employees[0].Name != "Ada" || employees[1].Name != "Grace" {
		t.Fatalf("expected name order, got %+v", employees)
	}
}

func TestOpenWorkOrdersSkipsClosed(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	open, err := s.AddWorkOrder(ctx, "Replace boiler")
	if err != nil {
		t.Fatalf("AddWorkOrder: %v", err)
	}
	closed, err := s.AddWorkOrder(ctx, "Paint lobby")
	if err != nil {
		t.Fatalf("AddWorkOrder: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE work_orders SET status = 'Closed' WHERE id = ?`, closed.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	orders, err := s.OpenWorkOrders(ctx)
	if err != nil {
		t.Fatalf("OpenWorkOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != open.ID {
		t.Fatalf("expected only the open order, got %+v", orders)
	}
}

func TestAddRejectsBlankNames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AddEmployee(ctx, "  "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.AddWorkOrder(ctx, ""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}
