package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"casebook/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.backend.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		checks["case_store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["case_store"] = "ok"
	}

	checks["cache"] = map[string]any{
		"owner_views": s.views.Size(),
		"status":      "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("cases_created_total", "Cases created through the API", atomic.LoadInt64(&s.appMetrics.casesCreated))
	counter("cases_updated_total", "Cases updated through the API", atomic.LoadInt64(&s.appMetrics.casesUpdated))
	counter("cases_deleted_total", "Cases deleted through the API", atomic.LoadInt64(&s.appMetrics.casesDeleted))
	counter("case_refresh_failures_total", "Case list refreshes that failed", atomic.LoadInt64(&s.appMetrics.refreshFailures))
	counter("rate_limit_hits_total", "Writes rejected by the rate limiter", atomic.LoadInt64(&s.security.rateLimitHits))
	counter("missing_owner_total", "Requests rejected for lacking an owner id", atomic.LoadInt64(&s.security.missingOwner))
	counter("suspicious_requests_total", "Suspicious requests detected", atomic.LoadInt64(&s.security.suspiciousRequests))
	gauge("owner_views", "Cached per-owner case views", int64(s.views.Size()))
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", int64(s.rateLimiter.ActiveClients()))
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

// handleHospitals lists the recommended hospital names. It needs no owner.
func (s *Server) handleHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := s.backend.Hospitals(r.Context())
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	if hospitals == nil {
		hospitals = []string{}
	}
	NewJSONResponse().Body(map[string]any{"hospitals": hospitals}).Write(w)
}
