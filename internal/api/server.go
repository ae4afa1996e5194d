package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tvmdeploy/internal/storage"
)

// Server represents the status server
// Provides endpoints for Prometheus metrics, health checks and the deployment journal
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	repository storage.Repository
	port       int
}

// NewServer creates a new status server instance
// The journal repository is made available to all handlers
func NewServer(port int, repository storage.Repository) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:        mux,
		repository: repository,
		port:       port,
	}

	s.registerRoutes()

	return s
}

// Handler exposes the routes without a listener
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Journal endpoints
	s.mux.HandleFunc("/deployments", s.handleDeployments)
	s.mux.HandleFunc("/deployments/", s.handleDeploymentRoutes)
}

// handleDeployments routes to list deployments (without trailing slash)
func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleListDeployments(w, r)
}

// handleDeploymentRoutes routes deployment sub-endpoints (with trailing slash)
func (s *Server) handleDeploymentRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/deployments/"), "/")

	// GET /deployments/{id}
	if len(parts) == 1 {
		s.handleGetDeployment(w, r, parts[0])
		return
	}

	s.sendError(w, "Endpoint not found", http.StatusNotFound)
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("Status server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/deployments"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Status server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Status server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
