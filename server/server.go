// Package server implements the Taskforge HTTP server: REST API, auth,
// and SSE real-time events.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskforge-io/taskforge/activity"
	"github.com/taskforge-io/taskforge/auth"
	"github.com/taskforge-io/taskforge/config"
	"github.com/taskforge-io/taskforge/server/api"
	"github.com/taskforge-io/taskforge/server/sse"
	"github.com/taskforge-io/taskforge/task"
)

// Server is the Taskforge HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	sessions *auth.Store
	tasks    *task.Store
	feed     activity.Feed
	hub      *sse.Hub

	unsubscribe func()

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		hub:       sse.NewHub(logger),
		startTime: time.Now(),
		version:   ver,
	}
}

// SetSessionStore attaches the auth store to the server.
func (s *Server) SetSessionStore(store *auth.Store) {
	s.sessions = store
}

// SetTaskStore attaches the task store to the server.
func (s *Server) SetTaskStore(store *task.Store) {
	s.tasks = store
}

// SetFeed attaches the activity feed. Published events are relayed to SSE
// clients.
func (s *Server) SetFeed(feed activity.Feed) {
	s.feed = feed
}

// Start registers routes, wires the change feed to the SSE hub, and begins
// listening.
func (s *Server) Start() error {
	s.registerRoutes()

	if s.feed != nil {
		s.unsubscribe = s.feed.Subscribe(s.hub.Broadcast)
	}

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":7171"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Tasks:   s.tasks,
		Feed:    s.feed,
		Logger:  s.logger,
		Version: s.version,
		StartAt: s.startTime.Unix(),
	}

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", h.Status)

	// SSE — auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API — wrapped in auth middleware
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	apiMux.Handle("GET /api/reports/time", s.managerOnly(http.HandlerFunc(h.TimeReport)))

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// handleSSE verifies the query-param token and hands the connection to the
// hub. The token travels as a query parameter because EventSource cannot
// set headers; a missing token is rejected like any invalid one.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, err := s.sessions.VerifyToken(token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.hub.ServeSSE(w, r)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
