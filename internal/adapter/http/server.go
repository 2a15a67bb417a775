// Package http exposes the service's operational endpoints: health and
// readiness probes, Prometheus metrics, the viewer WebSocket, the active
// alert listing, and the drill injection endpoint.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quakewatch/eew-alert-service/internal/domain"
	"github.com/quakewatch/eew-alert-service/internal/reconcile"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AlertLister provides the current active alerts for the listing endpoint.
type AlertLister interface {
	ActiveAlerts() []reconcile.AlertView
}

// Injector applies a manually triggered snapshot, used for drills.
type Injector interface {
	Apply(ctx context.Context, snap domain.Snapshot)
}

// Server exposes the HTTP surface.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with probe, metrics, websocket, alert
// listing, and inject routes. ws may be nil to disable the viewer endpoint.
func NewServer(addr string, ready ReadinessChecker, alerts AlertLister, injector Injector,
	ws http.HandlerFunc, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /alerts", handleAlerts(alerts))
	mux.HandleFunc("POST /inject", s.handleInject(injector))
	if ws != nil {
		mux.HandleFunc("GET /ws", ws)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleAlerts(alerts AlertLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts.ActiveAlerts()})
	}
}

// handleInject accepts a drill report and runs it through the reconciler as
// a synthetic-test snapshot. Drills follow the normal alert lifecycle but
// are exempt from cycle-miss eviction.
func (s *Server) handleInject(injector Injector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report domain.TestReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid drill report: " + err.Error()})
			return
		}

		snap := report.Normalize()
		injector.Apply(r.Context(), snap)
		s.logger.Info("drill injected", "event_id", snap.EventID, "magnitude", snap.Magnitude)
		writeJSON(w, http.StatusAccepted, map[string]string{"event_id": snap.EventID})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
