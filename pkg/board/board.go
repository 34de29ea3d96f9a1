// Package board implements the kanban board synchronization engine.
//
// A Board owns the in-memory task collection for one board view. It loads
// tasks from a Store, renders them into the four status columns, and moves
// tasks between columns when a drag gesture is dropped. Moves are
// write-confirm-then-reflect: the store is updated first, and the local
// collection only changes once the store has accepted the new status.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"managehub/pkg/activity"
	"managehub/pkg/reference"
	"managehub/pkg/task"
)

// DefaultTimeout bounds every store call made by the engine.
const DefaultTimeout = 10 * time.Second

var (
	ErrMissingTaskID    = errors.New("missing task id")
	ErrUnknownTask      = errors.New("unknown task")
	ErrInvalidStatus    = task.ErrInvalidStatus
	ErrTransitionFailed = errors.New("failed to update status")
	ErrCreateFailed     = errors.New("failed to create task")
	ErrLoadFailed       = errors.New("failed to load tasks")
)

// IsInvalidInput reports whether err was caused by user input that was
// rejected before any store call.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrMissingTaskID) ||
		errors.Is(err, ErrUnknownTask) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, task.ErrEmptyTitle) ||
		errors.Is(err, task.ErrInvalidPriority)
}

// Store is the subset of task.Store the engine needs.
type Store interface {
	List(ctx context.Context) ([]task.Task, error)
	Create(ctx context.Context, n task.NewTask) (*task.Task, error)
	UpdateStatus(ctx context.Context, id string, status task.Status) error
}

// Recorder receives activity for created and moved tasks.
type Recorder interface {
	Append(ctx context.Context, eventType, source, taskID string, content map[string]any) (*activity.Event, error)
}

// Board is the synchronization engine for one board view.
type Board struct {
	store    Store
	refs     reference.Provider
	recorder Recorder
	log      log.FieldLogger
	timeout  time.Duration
	source   string

	mu         sync.RWMutex
	tasks      []task.Task
	dragging   string // id of the card in transit, "" when none
	employees  []reference.Employee
	workOrders []reference.WorkOrder

	// gen counts confirmed drops. While any Load is reading the store,
	// confirmed drops are also kept so the Load can re-apply them.
	gen       uint64
	loading   int
	confirmed []transition

	subMu sync.RWMutex
	subs  map[chan View]struct{}
}

// transition is a status change the store has accepted.
type transition struct {
	gen    uint64
	taskID string
	status task.Status
}

// Option configures a Board.
type Option func(*Board)

// WithReferences sets the provider used for assignee and work-order dropdowns.
func WithReferences(p reference.Provider) Option {
	return func(b *Board) { b.refs = p }
}

// WithRecorder sets where task.created and task.moved activity is written.
func WithRecorder(r Recorder) Option {
	return func(b *Board) { b.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(b *Board) { b.log = l }
}

// WithTimeout bounds each store call. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Board) { b.timeout = d }
}

// WithSource tags recorded activity ("api", "cli", "mcp").
func WithSource(source string) Option {
	return func(b *Board) { b.source = source }
}

// New creates a Board over store. Call Init or Load before use.
func New(store Store, opts ...Option) *Board {
	b := &Board{
		store:   store,
		log:     log.StandardLogger(),
		timeout: DefaultTimeout,
		source:  "board",
		tasks:   []task.Task{},
		subs:    make(map[chan View]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Init loads the reference lists once, then the tasks. Reference failures
// are logged and leave the dropdowns empty.
func (b *Board) Init(ctx context.Context) error {
	b.loadReferences(ctx)
	return b.Load(ctx)
}

func (b *Board) loadReferences(ctx context.Context) {
	if b.refs == nil {
		return
	}
	cctx, cancel := b.withTimeout(ctx)
	defer cancel()

	employees, err := b.refs.ActiveEmployees(cctx)
	if err != nil {
		b.log.WithError(err).Warn("board: load employees")
		employees = nil
	}
	workOrders, err := b.refs.OpenWorkOrders(cctx)
	if err != nil {
		b.log.WithError(err).Warn("board: load work orders")
		workOrders = nil
	}

	b.mu.Lock()
	b.employees = employees
	b.workOrders = workOrders
	b.mu.Unlock()
}

// Load replaces the task collection with the store's contents and publishes
// a full render. On failure the previous collection and view are kept.
//
// Drops confirmed while the store is being read are re-applied on top of
// the loaded tasks, since the read may predate them.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	since := b.gen
	b.loading++
	b.mu.Unlock()

	cctx, cancel := b.withTimeout(ctx)
	defer cancel()

	tasks, err := b.store.List(cctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading--
	if b.loading == 0 {
		defer func() { b.confirmed = b.confirmed[:0] }()
	}

	if err != nil {
		b.log.WithError(err).Error("board: load tasks")
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	for _, tr := range b.pending(since) {
		if i := indexIn(tasks, tr.taskID); i >= 0 {
			tasks[i].Status = tr.status
		}
	}

	b.tasks = tasks
	if b.indexOf(b.dragging) < 0 {
		b.dragging = ""
	}
	b.publish(Render(b.tasks, b.dragging))
	return nil
}

// pending returns the drops confirmed after generation since, oldest first.
// Must be called with mu held.
func (b *Board) pending(since uint64) []transition {
	for i, tr := range b.confirmed {
		if tr.gen > since {
			return b.confirmed[i:]
		}
	}
	return nil
}

// Render partitions tasks into the four columns, marking the card in transit.
func (b *Board) Render(tasks []task.Task) View {
	b.mu.RLock()
	dragging := b.dragging
	b.mu.RUnlock()
	return Render(tasks, dragging)
}

// View renders the full task collection.
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Render(b.tasks, b.dragging)
}

// Tasks returns a copy of the task collection in load order.
func (b *Board) Tasks() []task.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]task.Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Task returns the task with the given id.
func (b *Board) Task(id string) (task.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.indexOf(id); i >= 0 {
		return b.tasks[i], true
	}
	return task.Task{}, false
}

// Employees returns the active employees loaded by Init.
func (b *Board) Employees() []reference.Employee {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]reference.Employee{}, b.employees...)
}

// WorkOrders returns the open work orders loaded by Init.
func (b *Board) WorkOrders() []reference.WorkOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]reference.WorkOrder{}, b.workOrders...)
}

// BeginDrag marks a card as in transit. No store call is made.
func (b *Board) BeginDrag(taskID string) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return ErrMissingTaskID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(taskID) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	b.dragging = taskID
	return nil
}

// EndDrag clears the in-transit marker for taskID, or any marker when
// taskID is empty.
func (b *Board) EndDrag(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if taskID == "" || b.dragging == taskID {
		b.dragging = ""
	}
}

// Dragging returns the id of the card in transit, or "".
func (b *Board) Dragging() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dragging
}

// CompleteDrop moves a task to the column it was dropped on.
//
// Invalid input (empty or unknown id, invalid status) is rejected without a
// store call. Otherwise exactly one status update is sent; only when it
// succeeds is the local task mutated and the board re-rendered. A rejected
// update leaves the collection and the published view untouched.
func (b *Board) CompleteDrop(ctx context.Context, taskID string, target task.Status) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return ErrMissingTaskID
	}
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	b.mu.RLock()
	i := b.indexOf(taskID)
	var from task.Status
	if i >= 0 {
		from = b.tasks[i].Status
	}
	b.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	cctx, cancel := b.withTimeout(ctx)
	defer cancel()

	if err := b.store.UpdateStatus(cctx, taskID, target); err != nil {
		b.log.WithError(err).WithFields(log.Fields{
			"task_id": taskID,
			"status":  target,
		}).Warn("board: status update rejected")
		b.EndDrag(taskID)
		return fmt.Errorf("%w: %w", ErrTransitionFailed, err)
	}

	b.mu.Lock()
	// A concurrent Load may have replaced the collection; look the task up again.
	if j := b.indexOf(taskID); j >= 0 {
		b.tasks[j].Status = target
	}
	b.gen++
	if b.loading > 0 {
		b.confirmed = append(b.confirmed, transition{gen: b.gen, taskID: taskID, status: target})
	}
	if b.dragging == taskID {
		b.dragging = ""
	}
	// Published under mu so subscribers see views in state order.
	b.publish(Render(b.tasks, b.dragging))
	b.mu.Unlock()

	b.record(ctx, activity.TaskMoved, taskID, map[string]any{
		"from": string(from),
		"to":   string(target),
	})
	return nil
}

// CreateTask inserts a task with status To Do, then reloads the whole board
// so the store-assigned id and joined names are present.
func (b *Board) CreateTask(ctx context.Context, n task.NewTask) (*task.Task, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	cctx, cancel := b.withTimeout(ctx)
	created, err := b.store.Create(cctx, n)
	cancel()
	if err != nil {
		b.log.WithError(err).WithField("title", n.Title).Warn("board: create task rejected")
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	b.record(ctx, activity.TaskCreated, created.ID, map[string]any{
		"title":  created.Title,
		"status": string(created.Status),
	})

	// A failed reload keeps the stale view; the insert itself succeeded.
	_ = b.Load(ctx)
	return created, nil
}

func (b *Board) record(ctx context.Context, eventType, taskID string, content map[string]any) {
	if b.recorder == nil {
		return
	}
	cctx, cancel := b.withTimeout(ctx)
	defer cancel()
	if _, err := b.recorder.Append(cctx, eventType, b.source, taskID, content); err != nil {
		b.log.WithError(err).WithFields(log.Fields{
			"task_id": taskID,
			"type":    eventType,
		}).Warn("board: record activity")
	}
}

func (b *Board) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// indexOf must be called with mu held.
func (b *Board) indexOf(id string) int {
	return indexIn(b.tasks, id)
}

func indexIn(tasks []task.Task, id string) int {
	if id == "" {
		return -1
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
