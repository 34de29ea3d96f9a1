package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"managehub/pkg/task"
)

type createTaskRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
	DueDate     string        `json:"due_date"`
	AssignedTo  string        `json:"assigned_to"`
	WorkOrderID string        `json:"work_order_id"`
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks := s.board.Tasks()
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := task.ParseStatus(v)
		if err != nil {
			writeError(w, 400, err.Error())
			return
		}
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == st {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, 404, err.Error())
			return
		}
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	due, err := task.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	created, err := s.board.CreateTask(r.Context(), task.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     due,
		AssignedTo:  req.AssignedTo,
		WorkOrderID: req.WorkOrderID,
	})
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, 201, created)
}

func (s *Server) handleTaskDragStart(w http.ResponseWriter, r *http.Request) {
	if err := s.board.BeginDrag(r.PathValue("id")); err != nil {
		writeBoardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskDragEnd(w http.ResponseWriter, r *http.Request) {
	s.board.EndDrag(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskDrop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	target, err := task.ParseStatus(req.Status)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	if err := s.board.CompleteDrop(r.Context(), r.PathValue("id"), target); err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, 200, s.board.View())
}
