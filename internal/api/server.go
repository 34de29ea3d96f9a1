package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"managehub/pkg/activity"
	"managehub/pkg/board"
	"managehub/pkg/task"
)

// Server is the HTTP API server.
type Server struct {
	board    *board.Board
	tasks    task.Store
	activity activity.Store
	log      log.FieldLogger
	webDir   string
	mux      *http.ServeMux
	handler  http.Handler
}

// Options configures optional parts of the Server.
type Options struct {
	Logger log.FieldLogger
	// WebDir holds the static board UI; defaults to ./web.
	WebDir string
}

// New creates a new Server.
func New(b *board.Board, tasks task.Store, events activity.Store, opts Options) *Server {
	s := &Server{
		board:    b,
		tasks:    tasks,
		activity: events,
		log:      opts.Logger,
		webDir:   opts.WebDir,
		mux:      http.NewServeMux(),
	}
	if s.log == nil {
		s.log = log.StandardLogger()
	}
	if s.webDir == "" {
		s.webDir = filepath.Join(".", "web")
	}
	s.routes()
	s.handler = s.logRequests(s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Board
	s.mux.HandleFunc("GET /api/board", s.handleBoardView)
	s.mux.HandleFunc("GET /api/board/search", s.handleBoardSearch)
	s.mux.HandleFunc("POST /api/board/reload", s.handleBoardReload)
	s.mux.HandleFunc("GET /api/board/stream", s.handleBoardStream)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("POST /api/tasks/{id}/drag", s.handleTaskDragStart)
	s.mux.HandleFunc("DELETE /api/tasks/{id}/drag", s.handleTaskDragEnd)
	s.mux.HandleFunc("POST /api/tasks/{id}/drop", s.handleTaskDrop)

	// Reference data
	s.mux.HandleFunc("GET /api/employees", s.handleEmployees)
	s.mux.HandleFunc("GET /api/work-orders", s.handleWorkOrders)

	// Activity
	s.mux.HandleFunc("GET /api/activity", s.handleActivity)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// Static files (Gio WASM UI)
	s.mux.Handle("GET /", http.FileServer(http.Dir(s.webDir)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		s.log.WithError(err).Error("api: count tasks")
		writeError(w, 502, err.Error())
		return
	}
	total := 0
	byStatus := make(map[string]int, len(counts))
	for st, n := range counts {
		byStatus[string(st)] = n
		total += n
	}
	events, err := s.activity.Count(ctx)
	if err != nil {
		s.log.WithError(err).Error("api: count activity")
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{
		"tasks":    byStatus,
		"total":    total,
		"activity": events,
		"loaded":   len(s.board.Tasks()),
		"dragging": s.board.Dragging(),
	})
}

// writeBoardError maps engine errors onto HTTP statuses.
func writeBoardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrUnknownTask):
		writeError(w, 404, err.Error())
	case board.IsInvalidInput(err):
		writeError(w, 400, err.Error())
	case errors.Is(err, board.ErrLoadFailed):
		writeError(w, 503, err.Error())
	default:
		writeError(w, 502, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps the board stream working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}
