package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"managehub/pkg/board"
)

func (s *Server) handleBoardView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.board.View())
}

func (s *Server) handleBoardSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.board.Search(r.URL.Query().Get("q")))
}

func (s *Server) handleBoardReload(w http.ResponseWriter, r *http.Request) {
	if err := s.board.Load(r.Context()); err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, 200, s.board.View())
}

func (s *Server) handleEmployees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.board.Employees())
}

func (s *Server) handleWorkOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.board.WorkOrders())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryInt(r, "limit", 50)
	if id := r.URL.Query().Get("task"); id != "" {
		events, err := s.activity.ByTask(ctx, id, limit)
		if err != nil {
			writeError(w, 502, err.Error())
			return
		}
		writeJSON(w, 200, events)
		return
	}
	events, err := s.activity.Recent(ctx, limit)
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, events)
}

// handleBoardStream sends the current view, then every view the board
// publishes after a load or a confirmed drop.
func (s *Server) handleBoardStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.board.Subscribe()
	defer s.board.Unsubscribe(ch)

	if err := writeEvent(w, s.board.View()); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, v); err != nil {
				s.log.WithError(err).Debug("api: board stream closed")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, v board.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: board\ndata: %s\n\n", data)
	return err
}
