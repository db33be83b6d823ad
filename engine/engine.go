// Package engine implements the fan-out orchestrator: resolve a routine query
// to its SPARQL text and target endpoints, execute it against every target
// concurrently, and collect one outcome per target. Per-endpoint independence
// is the core invariant here: an endpoint that fails auth, times out, or
// returns garbage produces an error entry under its own key and nothing else.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/VODAN-Development/2025-fieldlab7/catalog"
	"github.com/VODAN-Development/2025-fieldlab7/endpoint"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
	"github.com/VODAN-Development/2025-fieldlab7/events"
	"github.com/VODAN-Development/2025-fieldlab7/metric"
	"github.com/VODAN-Development/2025-fieldlab7/registry"
	"github.com/VODAN-Development/2025-fieldlab7/sparql"
)

// DefaultTimeout bounds one fan-out when the config does not say otherwise.
const DefaultTimeout = 30 * time.Second

// FanoutResult maps each resolved target endpoint to its outcome. The key set
// equals the resolved target set exactly: no omissions, no extras.
type FanoutResult map[string]sparql.Outcome

// Engine executes routine queries against federated endpoints
type Engine struct {
	store     *registry.Store
	client    *sparql.Client
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metric.Metrics
	publisher *events.Publisher
}

// Option configures an Engine
type Option func(*Engine)

// WithTimeout bounds each complete fan-out
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics attaches prometheus instrumentation
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher attaches the optional event publisher
func WithPublisher(p *events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// New creates an engine over the registry store
func New(store *registry.Store, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		store:   store,
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.client = sparql.NewClient(e.timeout)
	return e
}

// RunRoutineQuery executes the named query against its target endpoints and
// returns one outcome per target. An unknown query id or an unreadable query
// file is a hard error with no partial map; everything that goes wrong for a
// single endpoint is recorded as that endpoint's error entry instead.
//
// The target set is subset when provided and non-empty, otherwise the query's
// allowed endpoints.
func (e *Engine) RunRoutineQuery(ctx context.Context, queryID string, subset []string) (FanoutResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	desc, ok := e.store.Queries().Get(queryID)
	if !ok {
		e.countQuery(queryID, "unknown_query")
		return nil, errors.WrapInvalid(errors.ErrUnknownQuery, "Engine", "RunRoutineQuery",
			fmt.Sprintf("query %q is not registered", queryID))
	}

	queryText, err := e.store.Queries().QueryText(desc)
	if err != nil {
		e.countQuery(queryID, "query_file_error")
		return nil, err
	}

	targets := resolveTargets(desc, subset)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result := make(FanoutResult, len(targets))
	slots := make([]sparql.Outcome, len(targets))

	done := make(chan int, len(targets))
	for i, target := range targets {
		go func(i int, target string) {
			slots[i] = e.executeOne(ctx, target, queryID, queryText)
			done <- i
		}(i, target)
	}
	for range targets {
		<-done
	}

	for i, target := range targets {
		result[target] = slots[i]
	}

	e.observeFanout(queryID, runID, result, time.Since(start))
	return result, nil
}

// executeOne produces the outcome for a single target endpoint. Every failure
// path returns a Failure outcome; nothing escapes as an error.
func (e *Engine) executeOne(ctx context.Context, target, queryID, queryText string) sparql.Outcome {
	desc, ok := e.store.Endpoints().Get(target)
	if !ok {
		e.countEndpoint(target, "unknown_endpoint")
		return sparql.Failure("Unknown endpoint")
	}

	creds, err := desc.Credentials()
	if err != nil {
		e.countEndpoint(target, "missing_credentials")
		return sparql.Failure(err.Error())
	}

	e.logger.Debug("querying endpoint", "query", queryID, "endpoint", target)

	start := time.Now()
	res, err := e.client.Execute(ctx, desc.EndpointURL, queryText, creds, nil)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.EndpointRequestDuration.WithLabelValues(target).Observe(elapsed.Seconds())
	}

	if err != nil {
		e.countEndpoint(target, "error")
		e.logger.Warn("endpoint query failed",
			"query", queryID, "endpoint", target, "error", err)
		return sparql.Failure(err.Error())
	}

	e.countEndpoint(target, "success")
	return sparql.Success(res)
}

// resolveTargets returns the effective target list in deterministic order
// with duplicates removed.
func resolveTargets(desc catalog.Descriptor, subset []string) []string {
	source := subset
	if len(source) == 0 {
		source = desc.AllowedEndpoints
	}

	seen := make(map[string]struct{}, len(source))
	targets := make([]string, 0, len(source))
	for _, id := range source {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	sort.Strings(targets)
	return targets
}

// AllowedEndpoints resolves the descriptors a query may target, preserving
// registry order. Unknown ids in allowed_endpoints are skipped here; the
// fan-out itself reports them per key.
func (e *Engine) AllowedEndpoints(desc catalog.Descriptor) []endpoint.Descriptor {
	reg := e.store.Endpoints()
	out := make([]endpoint.Descriptor, 0, len(desc.AllowedEndpoints))
	for _, id := range desc.AllowedEndpoints {
		if d, ok := reg.Get(id); ok {
			out = append(out, d)
		}
	}
	return out
}

func (e *Engine) countQuery(queryID, status string) {
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(queryID, status).Inc()
	}
}

func (e *Engine) countEndpoint(target, outcome string) {
	if e.metrics != nil {
		e.metrics.EndpointRequestsTotal.WithLabelValues(target, outcome).Inc()
	}
}

func (e *Engine) observeFanout(queryID, runID string, result FanoutResult, elapsed time.Duration) {
	failures := make(map[string]string)
	endpoints := make([]string, 0, len(result))
	for id, outcome := range result {
		endpoints = append(endpoints, id)
		if outcome.IsError() {
			failures[id] = outcome.Err.Reason
		}
	}
	sort.Strings(endpoints)

	status := "ok"
	if len(failures) == len(result) && len(result) > 0 {
		status = "all_failed"
	} else if len(failures) > 0 {
		status = "partial"
	}

	e.countQuery(queryID, status)
	if e.metrics != nil {
		e.metrics.FanoutDuration.WithLabelValues(queryID).Observe(elapsed.Seconds())
	}

	e.logger.Info("fan-out complete",
		"run_id", runID,
		"query", queryID,
		"endpoints", len(result),
		"failures", len(failures),
		"duration", elapsed)

	e.publisher.PublishQueryRun(events.QueryRunEvent{
		RunID:     runID,
		QueryID:   queryID,
		Endpoints: endpoints,
		Failures:  failures,
		Duration:  elapsed.Seconds(),
		Timestamp: time.Now().UTC(),
	})
}
