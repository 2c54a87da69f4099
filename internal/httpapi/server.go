// Package httpapi is the coordinator's thin HTTP surface (spec.md §6): it
// decodes/validates requests and dispatches to internal/coordinator,
// matching the plain net/http + ServeMux style the teacher's serve.go
// uses for its own local query/index API.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/atropos-server/internal/coordinator"
)

// Server wires a Coordinator to an http.Handler. It carries no state of
// its own beyond the Coordinator and a logger, matching SPEC_FULL.md's
// "Singleton process state" rule: one factory returns both a state handle
// (Coordinator) and the router built over it.
type Server struct {
	coord  *coordinator.Coordinator
	logger *slog.Logger
}

// New builds the coordinator's HTTP router. CORS is wide open (spec §6).
// reg must be the same *prometheus.Registry passed to coordinator.New, so
// /metrics gathers the instruments the coordinator actually updates rather
// than the global default registry's bare Go/process collectors.
func New(coord *coordinator.Coordinator, logger *slog.Logger, reg *prometheus.Registry) http.Handler {
	s := &Server{coord: coord, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleBanner)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/register-env", s.handleRegisterEnv)
	mux.HandleFunc("/disconnect-env", s.handleDisconnectEnv)
	mux.HandleFunc("/run_info", s.handleRunInfo)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/batch", s.handleBatch)
	mux.HandleFunc("/latest_example", s.handleLatestExample)
	mux.HandleFunc("/scored_data", s.handleScoredData)
	mux.HandleFunc("/scored_data_list", s.handleScoredDataList)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/status-env", s.handleStatusEnv)
	mux.HandleFunc("/reset_data", s.handleResetData)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return s.withMiddleware(mux)
}

// withMiddleware adds CORS headers and structured per-request logging,
// the two ambient concerns every handler needs (SPEC_FULL.md, "Logging").
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		s.coord.RecordRequest(r.URL.Path, statusClass(sw.status))
	})
}

// statusClass buckets an HTTP status code into its "Nxx" class for the
// atropos_http_requests_total label, keeping cardinality bounded regardless
// of how many distinct codes handlers return.
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// statusWriter captures the status code written so the logging middleware
// can report it after the handler runs.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("atropos-server: rollout coordination server\n"))
}
