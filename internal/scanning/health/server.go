package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// Server exposes the scan health surface over HTTP.
type Server struct {
	monitor *Monitor
	db      Pinger // nil when running without a database
	server  *http.Server
}

// NewServer creates a health server.
func NewServer(monitor *Monitor, db Pinger, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		db:      db,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// summary is the /health payload: per-status source counts plus the
// database probe, rolled up into a single worst-case status.
type summary struct {
	Status   SystemStatus         `json:"status"`
	Database string               `json:"database,omitempty"`
	Sources  map[SystemStatus]int `json:"sources"`
}

func (s *Server) summarize(ctx context.Context) summary {
	report := s.monitor.CheckHealth(ctx)

	sum := summary{Status: StatusHealthy, Sources: make(map[SystemStatus]int)}
	for _, src := range report {
		sum.Sources[src.Status]++
		switch src.Status {
		case StatusCritical:
			sum.Status = StatusCritical
		case StatusDegraded:
			if sum.Status != StatusCritical {
				sum.Status = StatusDegraded
			}
		}
	}

	if s.db != nil {
		if err := s.db.Health(ctx); err != nil {
			sum.Database = "unreachable"
			sum.Status = StatusCritical
		} else {
			sum.Database = "ok"
		}
	}

	return sum
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sum := s.summarize(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if sum.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(sum)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Summary summary                 `json:"summary"`
		Sources map[string]SourceHealth `json:"sources"`
	}{
		Summary: s.summarize(r.Context()),
		Sources: s.monitor.CheckHealth(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
