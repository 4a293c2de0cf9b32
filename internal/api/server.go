// Package api serves the probe's diagnostics surface: liveness, the latest
// fast-cycle stats, the latest slow-cycle report and Prometheus metrics.
// Read-only; operational control stays with signals and configuration.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MirrorScope/internal/coordinator"
	"MirrorScope/internal/metrics"
)

// Server exposes the probe state over HTTP.
type Server struct {
	coord *coordinator.Coordinator
	http  *http.Server
}

// NewServer builds the router and the underlying http.Server. metrics may
// be nil, in which case /metrics is not registered.
func NewServer(addr string, coord *coordinator.Coordinator, m *metrics.Metrics) *Server {
	s := &Server{coord: coord}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	r.HandleFunc("/stats", s.statsHandler).Methods("GET")
	r.HandleFunc("/report", s.reportHandler).Methods("GET")
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	}

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the server on its own goroutine. Bind failures are fatal for
// the same reason worker socket failures are: a probe that cannot be
// observed should exit loudly.
func (s *Server) Start() {
	go func() {
		log.Printf("API server starting on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", s.http.Addr, err)
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.coord.Snapshot())
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	rep := s.coord.LastReport()
	if rep == nil {
		http.Error(w, "no report produced yet", http.StatusNotFound)
		return
	}
	writeJSON(w, rep)
}

func writeJSON(w http.ResponseWriter, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
