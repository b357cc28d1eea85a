package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"apbn/internal/log"
	"apbn/internal/view"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether a usable dataset is installed. A fatal load
// keeps the process alive but not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	ds := s.dataset.Current()
	switch {
	case ds == nil:
		checks["dataset"] = "loading"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	case !ds.OK():
		checks["dataset"] = "failed: " + view.FatalMessage(ds.Err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	default:
		checks["dataset"] = map[string]interface{}{
			"status":       "ok",
			"run_id":       ds.RunID,
			"rows":         ds.TotalRows(),
			"files_ok":     ds.FilesOK(),
			"files_failed": len(ds.Failures()),
		}
	}

	checks["cache"] = map[string]interface{}{
		"entries": s.dashCache.Size(),
		"status":  "ok",
	}

	writeJSON(w, r, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.dashCache.Stats()

	rows, ready := 0, 0
	if ds := s.dataset.Current(); ds.OK() {
		rows, ready = ds.TotalRows(), 1
	}

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "HTTP responses with a 4xx status", "counter", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "HTTP responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("dataset_loads_total", "Completed dataset load runs", "counter", s.dataset.Loads())
	metric("dataset_rows", "Rows in the installed unified table", "gauge", rows)
	metric("dataset_ready", "Whether a usable dataset is installed", "gauge", ready)
	metric("cache_hits_total", "Total dashboard cache hits", "counter", cacheStats.Hits)
	metric("cache_misses_total", "Total dashboard cache misses", "counter", cacheStats.Misses)
	metric("cache_evictions_total", "Dashboard cache evictions", "counter", cacheStats.Evictions)
	metric("cache_entries", "Current dashboard cache entries", "gauge", cacheStats.Size)
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("invalid_ip_attempts_total", "Client addresses that failed to parse", "counter", securityMetrics.InvalidIPAttempts)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode JSON response", log.FieldError, err)
	}
}
