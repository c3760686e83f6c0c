package http

import (
	"fmt"
	"net/http"
	"time"

	"cfocopilot/internal/core"
	"cfocopilot/internal/log"
)

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady reports ready once templates are parsed and a snapshot is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if snap := s.service.Snapshot(); snap == nil {
		checks["ledger"] = "failed: " + core.ErrNoSnapshot.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = map[string]any{
			"status":  "ok",
			"version": snap.Version,
			"backend": snap.Backend,
			"rows":    snap.Ledger.Rows(),
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	var version uint64
	if snap := s.service.Snapshot(); snap != nil {
		version = snap.Version
	}

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_client_errors_total", "counter", "HTTP requests answered with a 4xx status", traceMetrics.ClientErrors)
	metric("http_requests_failed_total", "counter", "HTTP requests answered with a 5xx status", traceMetrics.FailedRequests)
	metric("http_request_duration_mean_seconds", "gauge", "Mean request latency", traceMetrics.MeanLatency.Seconds())
	metric("copilot_questions_total", "counter", "Questions received", s.appMetrics.questions.Load())
	metric("copilot_answers_total", "counter", "Questions answered with a result", s.appMetrics.answered.Load())
	metric("copilot_unknown_total", "counter", "Questions no rule matched", s.appMetrics.unknown.Load())
	metric("ledger_reloads_total", "counter", "Successful reloads through the API", s.appMetrics.reloads.Load())
	metric("ledger_snapshot_version", "gauge", "Active ledger snapshot version", version)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateMetrics.ClientCount)
	metric("blocked_requests_total", "counter", "Requests blocked as scanner probes", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

// handleSnapshot describes the active ledger.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot()
	if snap == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, core.KindNoSnapshot, core.ErrNoSnapshot.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, newSnapshotResponse(snap))
}

// handleReload rebuilds the ledger in-process. A rejected workbook leaves
// the previous snapshot active and is reported as 422.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		writeJSONError(w, r, http.StatusNotImplemented, core.KindInternal, "reload is not configured")
		return
	}
	logger := log.FromContext(r.Context())

	snap, err := s.reload(r.Context())
	if err != nil {
		logger.WarnContext(r.Context(), "Reload request rejected",
			log.NewFields().WithOperation(log.OpReload).WithError(err).ToSlice()...)
		writeJSONError(w, r, http.StatusUnprocessableEntity, core.KindOf(err), err.Error())
		return
	}
	s.appMetrics.reloads.Add(1)
	Events{}.
		SnapshotReloaded(snap.Version).
		Notify(NotificationSuccess, fmt.Sprintf("Ledger reloaded (version %d)", snap.Version)).
		Apply(w.Header())
	writeJSON(w, r, http.StatusOK, newSnapshotResponse(snap))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusTooManyRequests, core.KindBadRequest, "rate limit exceeded, please try again later")
}
