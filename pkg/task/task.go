package task

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("task not found")
	ErrEmptyTitle      = errors.New("title is required")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidStatus   = errors.New("invalid status")
)

// Status is the lifecycle state of a task and the key of its board column.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusBlocked    Status = "Blocked"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusDone, StatusBlocked}

// Valid reports whether s is one of the four board statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Key is the status with whitespace removed ("InProgress").
func (s Status) Key() string {
	return strings.Join(strings.Fields(string(s)), "")
}

// ParseStatus accepts a label ("In Progress") or key ("InProgress",
// "in_progress"), case-insensitively.
func ParseStatus(v string) (Status, error) {
	norm := normalizeStatus(v)
	for _, s := range Statuses {
		if normalizeStatus(string(s)) == norm {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}

func normalizeStatus(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(v)
}

// Priority is an ordinal category; higher is more urgent.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return strconv.Itoa(int(p))
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority accepts "low", "medium", "high" or their ordinal digits.
// An empty value means medium.
func ParsePriority(v string) (Priority, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return PriorityMedium, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if p := Priority(n); p.Valid() {
			return p, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, v)
	}
	for p, name := range priorityNames {
		if name == v {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, v)
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a name ("high") or an ordinal (3).
func (p *Priority) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "null" {
		return nil
	}
	v, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

// Task is a work item on the kanban board.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	AssignedTo     string     `json:"assigned_to,omitempty"`      // employee id
	AssigneeName   string     `json:"assignee_name,omitempty"`    // joined
	WorkOrderID    string     `json:"work_order_id,omitempty"`
	WorkOrderTitle string     `json:"work_order_title,omitempty"` // joined
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DueString returns the due date as YYYY-MM-DD, or "" when unset.
func (t Task) DueString() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format(DateLayout)
}

// NewTask holds the fields a creation form submits.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	WorkOrderID string     `json:"work_order_id,omitempty"`
}

// Normalize trims text fields and defaults the priority to medium.
func (n *NewTask) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	n.AssignedTo = strings.TrimSpace(n.AssignedTo)
	n.WorkOrderID = strings.TrimSpace(n.WorkOrderID)
	if n.Priority == 0 {
		n.Priority = PriorityMedium
	}
}

// Validate normalizes n and rejects input that must never reach the store.
func (n *NewTask) Validate() error {
	n.Normalize()
	if n.Title == "" {
		return ErrEmptyTitle
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, n.Priority)
	}
	return nil
}

// ParseDate parses an optional YYYY-MM-DD value.
func ParseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("parse due date %q: %w", v, err)
	}
	return &d, nil
}

// Store is the contract for task persistence.
type Store interface {
	// List returns every task joined with assignee name and work-order
	// title, ordered by priority descending.
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	// Create inserts a task with status To Do and a store-assigned id.
	Create(ctx context.Context, n NewTask) (*Task, error)
	// UpdateStatus sets the status of one task. Returns ErrNotFound when
	// no row matched.
	UpdateStatus(ctx context.Context, id string, status Status) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
	EnsureTable(ctx context.Context) error
}
