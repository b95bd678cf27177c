package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

// Runner checks a monitor on demand.
type Runner interface {
	RunByID(ctx context.Context, id string) (*domain.CheckResult, error)
}

// Server provides HTTP endpoints for health monitoring and on-demand checks.
type Server struct {
	monitor *Monitor
	runner  Runner
	checks  storage.CheckRepository
	server  *http.Server
}

// NewServer creates a new health server. runner and checks may be nil, in
// which case the monitor routes are not registered.
func NewServer(monitor *Monitor, runner Runner, checks storage.CheckRepository, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		runner:  runner,
		checks:  checks,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	if runner != nil {
		mux.HandleFunc("POST /monitors/{id}/run", s.handleRun)
	}
	if checks != nil {
		mux.HandleFunc("GET /monitors/{id}/checks", s.handleChecks)
	}

	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, err := s.runner.RunByID(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "monitor not found"})
		return
	case res == nil && err != nil:
		slog.Error("On-demand check failed", "monitor", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	case err != nil:
		// The check ran; persisting or notifying failed.
		slog.Warn("On-demand check completed with errors", "monitor", id, "error", err)
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, 500)
	}

	results, err := s.checks.ListRecent(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
