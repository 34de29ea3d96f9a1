package mcp

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"managehub/internal/db"
	"managehub/pkg/board"
	"managehub/pkg/task"
)

func newTestServer(t *testing.T) (*server.MCPServer, *board.Board, *db.Stores) {
	t.Helper()
	sqlDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	stores := db.NewSQLiteStores(sqlDB)
	t.Cleanup(stores.Close)

	ctx := context.Background()
	if err := stores.EnsureTables(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	if _, err := stores.Refs.AddEmployee(ctx, "Grace Hopper"); err != nil {
		t.Fatalf("AddEmployee: %v", err)
	}

	logger := log.New()
	logger.SetOutput(io.Discard)
	b := board.New(stores.Tasks,
		board.WithReferences(stores.Refs),
		board.WithRecorder(stores.Activity),
		board.WithLogger(logger),
		board.WithSource("mcp"),
	)
	if err := b.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return NewServer(b, stores.Activity, "test"), b, stores
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return result
}

func text(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

func TestToolHandlers(t *testing.T) {
	s, b, stores := newTestServer(t)
	var taskID string

	t.Run("create_task", func(t *testing.T) {
		result := call(t, s, "create_task", map[string]any{
			"title":    "Service chiller",
			"priority": "high",
			"due_date": "2026-07-01",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		var created task.Task
		if err := json.Unmarshal([]byte(text(result)), &created); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if created.Status != task.StatusToDo || created.Priority != task.PriorityHigh {
			t.Fatalf("unexpected task %+v", created)
		}
		taskID = created.ID
	})

	t.Run("create_task rejects empty title", func(t *testing.T) {
		result := call(t, s, "create_task", map[string]any{"title": " "})
		if !result.IsError {
			t.Fatal("expected error result")
		}
	})

	t.Run("get_board", func(t *testing.T) {
		result := call(t, s, "get_board", map[string]any{})
		var v board.View
		if err := json.Unmarshal([]byte(text(result)), &v); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(v.Columns) != 4 || v.Total != 1 {
			t.Fatalf("unexpected board %+v", v)
		}
	})

	t.Run("move_task", func(t *testing.T) {
		result := call(t, s, "move_task", map[string]any{"task_id": taskID, "status": "blocked"})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		stored, err := stores.Tasks.Get(context.Background(), taskID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if stored.Status != task.StatusBlocked {
			t.Fatalf("expected Blocked, got %s", stored.Status)
		}
		if tk, _ := b.Task(taskID); tk.Status != task.StatusBlocked {
			t.Fatalf("board not updated: %s", tk.Status)
		}
	})

	t.Run("move_task invalid", func(t *testing.T) {
		for _, args := range []map[string]any{
			{"task_id": taskID, "status": "Archived"},
			{"task_id": "missing", "status": "Done"},
			{"task_id": "", "status": "Done"},
		} {
			if result := call(t, s, "move_task", args); !result.IsError {
				t.Fatalf("expected error for %v", args)
			}
		}
	})

	t.Run("search_tasks", func(t *testing.T) {
		result := call(t, s, "search_tasks", map[string]any{"query": "CHILLER"})
		var v board.View
		if err := json.Unmarshal([]byte(text(result)), &v); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if v.Total != 1 {
			t.Fatalf("expected 1 match, got %d", v.Total)
		}
	})

	t.Run("list_employees", func(t *testing.T) {
		result := call(t, s, "list_employees", map[string]any{})
		if !strings.Contains(text(result), "Grace Hopper") {
			t.Fatalf("unexpected employees %s", text(result))
		}
	})

	t.Run("list_work_orders", func(t *testing.T) {
		if result := call(t, s, "list_work_orders", map[string]any{}); result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
	})

	t.Run("recent_activity", func(t *testing.T) {
		result := call(t, s, "recent_activity", map[string]any{"task_id": taskID})
		var resp struct {
			Events []struct {
				Type string `json:"type"`
			} `json:"events"`
		}
		if err := json.Unmarshal([]byte(text(result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.Events) != 2 || resp.Events[0].Type != "task.moved" {
			t.Fatalf("unexpected events %+v", resp.Events)
		}
	})
}
