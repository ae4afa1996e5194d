package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	info := map[string]interface{}{
		"service":     "TVM Contract Deployer",
		"version":     "1.0.0",
		"description": "Deploys and calls contracts on a TVM network",
		"endpoints": map[string]string{
			"GET /":                 "This page - Service information",
			"GET /health":           "Health check endpoint",
			"GET /metrics":          "Prometheus metrics for monitoring",
			"GET /deployments":      "List journaled deployments (supports ?limit=, ?offset=)",
			"GET /deployments/{id}": "Get a deployment with the calls made to its contract",
		},
	}

	s.sendJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Reports unhealthy when the journal cannot be reached
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.repository.Ping(r.Context()); err != nil {
		slog.Warn("Journal ping failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.sendJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "tvm-deployer",
	})
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// handleListDeployments lists journaled deployments, newest first
// GET /deployments?limit=50&offset=0
func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parsePagination(r.URL.Query())

	total, err := s.repository.CountDeployments(ctx)
	if err != nil {
		slog.Error("Failed to count deployments", "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	deployments, err := s.repository.ListDeployments(ctx, limit, offset)
	if err != nil {
		slog.Error("Failed to list deployments", "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if deployments == nil {
		deployments = []*models.Deployment{}
	}

	s.sendJSON(w, http.StatusOK, models.DeploymentListResponse{
		Deployments: deployments,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}

// handleGetDeployment returns one deployment and the calls made to its contract
// GET /deployments/{id}
func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		s.sendError(w, "Deployment ID required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	deployment, err := s.repository.GetDeployment(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		s.sendError(w, "Deployment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to get deployment", "deployment", id, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	calls, err := s.repository.ListContractCalls(ctx, deployment.Address, maxLimit, 0)
	if err != nil {
		slog.Error("Failed to list calls", "deployment", id, "error", err)
		calls = []*models.ContractCall{} // Continue without calls
	}
	if calls == nil {
		calls = []*models.ContractCall{}
	}

	s.sendJSON(w, http.StatusOK, models.DeploymentResponse{
		Deployment:    deployment,
		BalanceTokens: NanotokensToTokens(deployment.Balance),
		Calls:         calls,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
