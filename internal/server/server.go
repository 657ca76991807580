// Package server exposes the live scheduling statistics of a running
// simulation over HTTP, alongside the Prometheus metrics endpoint.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/schedpol/internal/metrics"
	"github.com/me/schedpol/internal/stats"
	"github.com/me/schedpol/pkg/model"
)

// Server serves read-only views of the engine's live counters. It never
// touches the scheduling hot path; everything it reads is a snapshot.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	policy    string
	runID     string
	agg       *stats.Aggregator
	collector *metrics.Collector
	startTime time.Time
}

// New creates a Server with all routes registered.
func New(policy, runID string, agg *stats.Aggregator, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		policy:    policy,
		runID:     runID,
		agg:       agg,
		collector: collector,
		startTime: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the http.Handler for this server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Handle("/metrics", s.collector.Handler())
}

type healthResponse struct {
	Status    string `json:"status"`
	Policy    string `json:"policy"`
	Run       string `json:"run"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Policy:    s.policy,
		Run:       s.runID,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

type statsResponse struct {
	Policy    string             `json:"policy"`
	Run       string             `json:"run"`
	Processes []model.ProcessRow `json:"processes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statsResponse{
		Policy:    s.policy,
		Run:       s.runID,
		Processes: s.agg.Snapshot(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
