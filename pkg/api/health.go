// Package api exposes a small plain HTTP surface alongside the gRPC sync
// service: health, readiness, and Prometheus metrics, the way a demobit
// server process is expected to be probed by an orchestrator or scraped
// by Prometheus without going through the sync protocol itself.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mezeipetister/demobit/pkg/metrics"
	"github.com/mezeipetister/demobit/pkg/repository"
)

// HealthServer provides HTTP health, readiness, and metrics endpoints for
// one Repository.
type HealthServer struct {
	repo *repository.Repository
	mux  *http.ServeMux
}

// NewHealthServer creates a health check HTTP server over repo. repo may
// be nil, in which case readiness always reports not ready.
func NewHealthServer(repo *repository.Repository) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{repo: repo, mux: mux}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server on addr, blocking until it
// errors or is shut down.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// HealthResponse is the /health endpoint's body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse is the /ready endpoint's body.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler is a simple liveness check: 200 if the process is alive.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "0.1.0",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler checks whether the repository's local and remote commit
// logs can be read, via repo.Status(). Storage hooks are not checked.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.repo != nil {
		if _, err := hs.repo.Status(); err != nil {
			checks["repository"] = "error: " + err.Error()
			ready = false
			message = "commit log not accessible"
		} else {
			checks["repository"] = "ok"
		}
	} else {
		checks["repository"] = "not initialized"
		ready = false
		message = "repository not initialized"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
