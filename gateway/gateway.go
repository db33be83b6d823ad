// Package gateway exposes the engine over HTTP: run a routine query against
// its federated endpoints, list the query catalog, and report endpoint health.
// Responses carry per-endpoint outcomes verbatim; the gateway only aggregates
// when the caller asks for a merge.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/engine"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
	"github.com/VODAN-Development/2025-fieldlab7/health"
	"github.com/VODAN-Development/2025-fieldlab7/merge"
	"github.com/VODAN-Development/2025-fieldlab7/metric"
	"github.com/VODAN-Development/2025-fieldlab7/registry"
)

const (
	defaultMaxRequestSize = 1 << 20 // 1MB
	shutdownTimeout       = 10 * time.Second
)

// Server is the HTTP API server
type Server struct {
	cfg     config.ServerConfig
	engine  *engine.Engine
	store   *registry.Store
	monitor *health.Monitor
	metrics *metric.Registry
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewServer wires the API routes. monitor and metrics may be nil; the
// corresponding routes then degrade gracefully.
func NewServer(
	cfg config.ServerConfig,
	eng *engine.Engine,
	store *registry.Store,
	monitor *health.Monitor,
	metrics *metric.Registry,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = defaultMaxRequestSize
	}

	s := &Server{
		cfg:     cfg,
		engine:  eng,
		store:   store,
		monitor: monitor,
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/run_query", s.instrument("/run_query", s.handleRunQuery))
	s.mux.HandleFunc("/queries", s.instrument("/queries", s.handleListQueries))
	s.mux.HandleFunc("/health/endpoints", s.instrument("/health/endpoints", s.handleEndpointHealth))
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	if metrics != nil {
		s.mux.Handle("/metrics", metrics.Handler())
	}

	return s
}

// Handler returns the routed handler, exposed for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.WrapTransient(err, "Server", "Run", "shutdown")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.WrapFatal(err, "Server", "Run", "listen on "+s.cfg.Addr)
		}
		return nil
	}
}

// runQueryRequest is the POST /run_query body
type runQueryRequest struct {
	QueryID   string   `json:"query_id"`
	Endpoints []string `json:"endpoints,omitempty"`
	GroupVar  string   `json:"group_var,omitempty"`
}

// mergedResponse is returned when the caller requests a merge
type mergedResponse struct {
	Results engine.FanoutResult `json:"results"`
	Merged  merge.Table         `json:"merged"`
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxRequestSize+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > s.cfg.MaxRequestSize {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", s.cfg.MaxRequestSize))
		return
	}

	var req runQueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.QueryID == "" {
		s.writeError(w, http.StatusBadRequest, "query_id is required")
		return
	}

	result, err := s.engine.RunRoutineQuery(r.Context(), req.QueryID, req.Endpoints)
	if err != nil {
		s.logger.Warn("run_query failed", "query", req.QueryID, "error", err)
		s.writeError(w, mapErrorToHTTPStatus(err), sanitizeError(err, req.QueryID))
		return
	}

	if req.GroupVar != "" {
		s.writeJSON(w, http.StatusOK, mergedResponse{
			Results: result,
			Merged:  merge.CountsByGroup(result, req.GroupVar),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// querySummary is catalog metadata without the SPARQL text or file path
type querySummary struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Topic            string   `json:"topic"`
	Description      string   `json:"description"`
	Visualization    string   `json:"visualization"`
	AllowedEndpoints []string `json:"allowed_endpoints"`
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	catalog := s.store.Queries()
	summaries := make([]querySummary, 0, catalog.Len())
	for _, id := range catalog.IDs() {
		q, _ := catalog.Get(id)
		allowed := q.AllowedEndpoints
		if allowed == nil {
			allowed = []string{}
		}
		summaries = append(summaries, querySummary{
			ID:               q.ID,
			Title:            q.Title,
			Topic:            q.Topic,
			Description:      q.Description,
			Visualization:    q.Visualization,
			AllowedEndpoints: allowed,
		})
	}

	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleEndpointHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	var reports map[string]health.Report
	if s.monitor != nil {
		reports = s.monitor.Snapshot()
	}

	overlay := health.Overlay(s.store.Endpoints(), reports)

	// Deterministic order for consumers
	ids := make([]string, 0, len(overlay))
	for id := range overlay {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	statuses := make([]health.EndpointStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, overlay[id])
	}

	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument wraps a handler with request IDs, CORS, and request counting
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		if s.cfg.EnableCORS {
			s.applyCORS(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if s.metrics != nil {
			s.metrics.Metrics.HTTPRequestsTotal.
				WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
	}
}

// statusRecorder captures the response status for instrumentation
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	allowed := false
	for _, allowedOrigin := range s.cfg.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}

	if allowed {
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")
	}
}

// mapErrorToHTTPStatus maps error classes to HTTP status codes
func mapErrorToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	if errors.IsInvalid(err) {
		return http.StatusBadRequest
	}
	if errors.IsTransient(err) {
		if strings.Contains(err.Error(), "timeout") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sanitizeError returns a safe error message for external clients. Registry
// paths and internals stay in the logs.
func sanitizeError(err error, queryID string) string {
	if errors.Is(err, errors.ErrUnknownQuery) {
		return fmt.Sprintf("Unknown query_id: %s", queryID)
	}
	if errors.IsInvalid(err) {
		return "invalid request"
	}
	if errors.IsTransient(err) {
		if strings.Contains(err.Error(), "timeout") {
			return "request timeout"
		}
		return "service temporarily unavailable"
	}
	return "internal server error"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error":  message,
		"status": status,
	})
}
