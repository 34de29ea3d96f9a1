package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"managehub/pkg/activity"
	"managehub/pkg/board"
	"managehub/pkg/task"
)

// NewServer creates a new MCP server exposing the board.
func NewServer(b *board.Board, events activity.Store, version string) *server.MCPServer {
	s := server.NewMCPServer("managehub", version)

	// Board
	s.AddTool(mcp.NewTool("get_board",
		mcp.WithDescription("Get the kanban board: four status columns (To Do, In Progress, Done, Blocked) with their task cards."),
	), getBoardHandler(b))

	s.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Filter the board by a case-insensitive match on title, description or assignee name."),
		mcp.WithString("query", mcp.Description("Text to search for"), mcp.Required()),
	), searchTasksHandler(b))

	// Tasks
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task in the To Do column."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high, defaults to medium)")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)")),
		mcp.WithString("assigned_to", mcp.Description("Employee id from list_employees")),
		mcp.WithString("work_order_id", mcp.Description("Work order id from list_work_orders")),
	), createTaskHandler(b))

	s.AddTool(mcp.NewTool("move_task",
		mcp.WithDescription("Move a task to another column. The board only changes if the store accepts the new status."),
		mcp.WithString("task_id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("status", mcp.Description("Target status (To Do|In Progress|Done|Blocked)"), mcp.Required()),
	), moveTaskHandler(b))

	// Reference data
	s.AddTool(mcp.NewTool("list_employees",
		mcp.WithDescription("List active employees that tasks can be assigned to."),
	), listEmployeesHandler(b))

	s.AddTool(mcp.NewTool("list_work_orders",
		mcp.WithDescription("List open work orders that tasks can be linked to."),
	), listWorkOrdersHandler(b))

	// Activity
	s.AddTool(mcp.NewTool("recent_activity",
		mcp.WithDescription("List recent task.created and task.moved events, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum events (default 20)")),
		mcp.WithString("task_id", mcp.Description("Only events for this task")),
	), recentActivityHandler(events))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func getBoardHandler(b *board.Board) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := b.Load(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(b.View())
	}
}

func searchTasksHandler(b *board.Board) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := mcp.ParseString(request, "query", "")
		if err := b.Load(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(b.Search(query))
	}
}

func createTaskHandler(b *board.Board) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		priority, err := task.ParsePriority(mcp.ParseString(request, "priority", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		due, err := task.ParseDate(mcp.ParseString(request, "due_date", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		created, err := b.CreateTask(ctx, task.NewTask{
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			Priority:    priority,
			DueDate:     due,
			AssignedTo:  mcp.ParseString(request, "assigned_to", ""),
			WorkOrderID: mcp.ParseString(request, "work_order_id", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(created)
	}
}

func moveTaskHandler(b *board.Board) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "task_id", "")
		status, err := task.ParseStatus(mcp.ParseString(request, "status", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		// Pick up tasks created elsewhere since the last load.
		if _, ok := b.Task(id); !ok {
			if err := b.Load(ctx); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		if err := b.CompleteDrop(ctx, id, status); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' moved to %s.", id, status)), nil
	}
}

func listEmployeesHandler(b *board.Board) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{"employees": b.Employees()})
	}
}

func listWorkOrdersHandler(b *board.Board) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{"work_orders": b.WorkOrders()})
	}
}

func recentActivityHandler(events activity.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := mcp.ParseInt(request, "limit", 20)
		var (
			list []activity.Event
			err  error
		)
		if id := mcp.ParseString(request, "task_id", ""); id != "" {
			list, err = events.ByTask(ctx, id, limit)
		} else {
			list, err = events.Recent(ctx, limit)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"events": list})
	}
}
