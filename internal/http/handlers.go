package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"wallet/internal/core"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady fails while the expense API cannot be reached. The snapshot
// store is optional and only reported.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if br, ok := s.api.(breakerReporter); ok && br.BreakerState() == gobreaker.StateOpen {
		checks["expense_api"] = "failed: circuit open"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if _, err := s.api.Statistics(ctx); err != nil && errors.Is(err, core.ErrUnavailable) {
		checks["expense_api"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["expense_api"] = "ok"
	}

	if s.snapshots == nil {
		checks["snapshot"] = "disabled"
	} else if err := s.snapshots.Ping(ctx); err != nil {
		checks["snapshot"] = "degraded: " + err.Error()
	} else {
		checks["snapshot"] = "ok"
	}

	checks["events"] = "disabled"
	if s.publisher != nil {
		checks["events"] = "ok"
	}
	checks["sessions"] = map[string]any{"active": s.sessions.Len()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}
	checks["security"] = map[string]any{"suspicious_requests": s.detector.SuspiciousCount()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
