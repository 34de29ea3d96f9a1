// Package reference provides the read-only lists that populate the board's
// association dropdowns: active employees and open work orders.
package reference

import (
	"context"
	"errors"
)

// ErrEmptyName is returned when an employee name or work-order title is blank.
var ErrEmptyName = errors.New("name is required")

// Employee is a person a task can be assigned to.
type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkOrder is a job a task can be linked to.
type WorkOrder struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// WorkOrderOpen is the status of work orders offered for linking.
const WorkOrderOpen = "Open"

// Provider is the contract for reference data lookups.
type Provider interface {
	// ActiveEmployees returns employees with active = true, ordered by name.
	ActiveEmployees(ctx context.Context) ([]Employee, error)

	// OpenWorkOrders returns work orders whose status is Open, ordered by title.
	OpenWorkOrders(ctx context.Context) ([]WorkOrder, error)
}

// Store is a Provider that also owns its schema and accepts new rows.
type Store interface {
	Provider
	AddEmployee(ctx context.Context, name string) (*Employee, error)
	AddWorkOrder(ctx context.Context, title string) (*WorkOrder, error)
	EnsureTable(ctx context.Context) error
}
