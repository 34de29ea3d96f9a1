package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"managehub/internal/db"
	"managehub/pkg/activity"
	"managehub/pkg/board"
	"managehub/pkg/task"
)

type testEnv struct {
	srv    *Server
	board  *board.Board
	stores *db.Stores
}

// rejectingStore fails every status update.
type rejectingStore struct {
	task.Store
}

func (rejectingStore) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	return errors.New("row locked")
}

func newTestEnv(t *testing.T, wrap func(task.Store) task.Store) *testEnv {
	t.Helper()
	sqlDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stores := db.NewSQLiteStores(sqlDB)
	t.Cleanup(stores.Close)

	ctx := context.Background()
	if err := stores.EnsureTables(ctx); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	if _, err := stores.Refs.AddEmployee(ctx, "Ada Lovelace"); err != nil {
		t.Fatalf("AddEmployee: %v", err)
	}

	logger := log.New()
	logger.SetOutput(io.Discard)

	tasks := stores.Tasks
	if wrap != nil {
		tasks = wrap(tasks)
	}
	b := board.New(tasks,
		board.WithReferences(stores.Refs),
		board.WithRecorder(stores.Activity),
		board.WithLogger(logger),
		board.WithSource("api"),
	)
	if err := b.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	srv := New(b, tasks, stores.Activity, Options{Logger: logger, WebDir: t.TempDir()})
	return &testEnv{srv: srv, board: b, stores: stores}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) create(t *testing.T, title string) task.Task {
	t.Helper()
	rec := e.do(t, "POST", "/api/tasks", `{"title":"`+title+`","priority":"high","due_date":"2026-05-01"}`)
	if rec.Code != 201 {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created task.Task
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	return created
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) board.View {
	t.Helper()
	var v board.View
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/health", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestEmptyBoardHasFourColumns(t *testing.T) {
	env := newTestEnv(t, nil)
	v := decodeView(t, env.do(t, "GET", "/api/board", ""))
	if len(v.Columns) != 4 || v.Total != 0 {
		t.Fatalf("expected four empty columns, got %+v", v)
	}
}

func TestCreateTaskAppearsInToDo(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create(t, "Fix pump")
	if created.Status != task.StatusToDo || created.Priority != task.PriorityHigh {
		t.Fatalf("unexpected task %+v", created)
	}
	if created.DueString() != "2026-05-01" {
		t.Fatalf("expected due date, got %q", created.DueString())
	}

	v := decodeView(t, env.do(t, "GET", "/api/board", ""))
	if s, ok := v.Find(created.ID); !ok || s != task.StatusToDo {
		t.Fatalf("expected card in To Do, got %q", s)
	}
	if v.Columns[0].Label != "To Do (1)" {
		t.Fatalf("unexpected label %q", v.Columns[0].Label)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := []struct {
		body string
		code int
	}{
		{`{"title":"   "}`, 400},
		{`{"title":"x","priority":"urgent"}`, 400},
		{`{"title":"x","due_date":"tomorrow"}`, 400},
		{`not json`, 400},
	}
	for _, tc := range cases {
		rec := env.do(t, "POST", "/api/tasks", tc.body)
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.code, rec.Code)
		}
	}
	if n := len(env.board.Tasks()); n != 0 {
		t.Fatalf("expected no tasks, got %d", n)
	}
}

func TestDropMovesTask(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create(t, "Fix pump")

	if rec := env.do(t, "POST", "/api/tasks/"+created.ID+"/drag", ""); rec.Code != 204 {
		t.Fatalf("drag: expected 204, got %d", rec.Code)
	}
	rec := env.do(t, "POST", "/api/tasks/"+created.ID+"/drop", `{"status":"InProgress"}`)
	if rec.Code != 200 {
		t.Fatalf("drop: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	v := decodeView(t, rec)
	if s, _ := v.Find(created.ID); s != task.StatusInProgress {
		t.Fatalf("expected In Progress, got %q", s)
	}

	stored, err := env.stores.Tasks.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != task.StatusInProgress {
		t.Fatalf("store not updated: %s", stored.Status)
	}

	events, err := env.stores.Activity.ByTask(context.Background(), created.ID, 10)
	if err != nil {
		t.Fatalf("ByTask: %v", err)
	}
	if len(events) != 2 || events[0].Type != activity.TaskMoved {
		t.Fatalf("expected created and moved events, got %+v", events)
	}
}

func TestDropErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create(t, "Fix pump")

	cases := []struct {
		path string
		body string
		code int
	}{
		{"/api/tasks/nope/drop", `{"status":"Done"}`, 404},
		{"/api/tasks/" + created.ID + "/drop", `{"status":"Archived"}`, 400},
		{"/api/tasks/" + created.ID + "/drop", `{}`, 400},
		{"/api/tasks/" + created.ID + "/drop", `{`, 400},
	}
	for _, tc := range cases {
		rec := env.do(t, "POST", tc.path, tc.body)
		if rec.Code != tc.code {
			t.Fatalf("%s %s: expected %d, got %d", tc.path, tc.body, tc.code, rec.Code)
		}
	}
	if tk, _ := env.board.Task(created.ID); tk.Status != task.StatusToDo {
		t.Fatalf("status changed to %s", tk.Status)
	}
}

func TestRejectedDropReturns502AndKeepsBoard(t *testing.T) {
	env := newTestEnv(t, func(s task.Store) task.Store { return rejectingStore{s} })
	created := env.create(t, "Fix pump")

	rec := env.do(t, "POST", "/api/tasks/"+created.ID+"/drop", `{"status":"Done"}`)
	if rec.Code != 502 {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failed to update status") {
		t.Fatalf("expected user notice, got %s", rec.Body.String())
	}
	v := decodeView(t, env.do(t, "GET", "/api/board", ""))
	if s, _ := v.Find(created.ID); s != task.StatusToDo {
		t.Fatalf("card moved despite rejection: %q", s)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.create(t, "Fix pump")
	env.create(t, "Paint lobby")

	v := decodeView(t, env.do(t, "GET", "/api/board/search?q=PUMP", ""))
	if v.Total != 1 {
		t.Fatalf("expected 1 match, got %d", v.Total)
	}
	v = decodeView(t, env.do(t, "GET", "/api/board", ""))
	if v.Total != 2 {
		t.Fatalf("search changed the board: %d", v.Total)
	}
}

func TestTaskGetAndList(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create(t, "Fix pump")

	if rec := env.do(t, "GET", "/api/tasks/"+created.ID, ""); rec.Code != 200 {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/tasks/missing", ""); rec.Code != 404 {
		t.Fatalf("get missing: expected 404, got %d", rec.Code)
	}

	var tasks []task.Task
	rec := env.do(t, "GET", "/api/tasks?status=todo", "")
	if err := json.NewDecoder(rec.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 To Do task, got %d", len(tasks))
	}
	if rec := env.do(t, "GET", "/api/tasks?status=someday", ""); rec.Code != 400 {
		t.Fatalf("expected 400 for bad status filter, got %d", rec.Code)
	}
}

func TestReferenceAndStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create(t, "Fix pump")

	rec := env.do(t, "GET", "/api/employees", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "Ada Lovelace") {
		t.Fatalf("unexpected employees: %s", rec.Body.String())
	}
	if rec := env.do(t, "GET", "/api/work-orders", ""); rec.Code != 200 {
		t.Fatalf("work orders: expected 200, got %d", rec.Code)
	}

	if rec := env.do(t, "POST", "/api/tasks/"+created.ID+"/drag", ""); rec.Code != 204 {
		t.Fatalf("drag: expected 204, got %d", rec.Code)
	}

	var status struct {
		Tasks    map[string]int `json:"tasks"`
		Total    int            `json:"total"`
		Activity int            `json:"activity"`
		Dragging string         `json:"dragging"`
	}
	rec = env.do(t, "GET", "/api/status", "")
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Total != 1 || status.Tasks["To Do"] != 1 || status.Activity != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Dragging != created.ID {
		t.Fatalf("expected %s in transit, got %q", created.ID, status.Dragging)
	}
}

func TestBoardStream(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.create(t, "Fix pump")

	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/board/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 64*1024), 1<<20)
	next := func() board.View {
		for lines.Scan() {
			line := lines.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var v board.View
				if err := json.Unmarshal([]byte(data), &v); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				return v
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return board.View{}
	}

	if v := next(); v.Total != 1 {
		t.Fatalf("expected initial view with 1 task, got %d", v.Total)
	}

	if err := env.board.CompleteDrop(context.Background(), created.ID, task.StatusDone); err != nil {
		t.Fatalf("CompleteDrop: %v", err)
	}
	if s, _ := next().Find(created.ID); s != task.StatusDone {
		t.Fatalf("expected streamed move to Done, got %q", s)
	}
}
