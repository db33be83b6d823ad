package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VODAN-Development/2025-fieldlab7/endpoint"
	"github.com/VODAN-Development/2025-fieldlab7/metric"
)

// Monitor runs periodic health-check passes and keeps the latest snapshot.
// The snapshot is advisory: it never blocks query execution.
type Monitor struct {
	classifier *Classifier
	endpoints  func() *endpoint.Registry
	interval   time.Duration
	logger     *slog.Logger
	metrics    *metric.Metrics

	// OnRefresh, when set, is called with each completed pass. Used to feed
	// snapshots to the event publisher.
	OnRefresh func(map[string]Report)

	mu      sync.RWMutex
	reports map[string]Report
}

// NewMonitor creates a monitor. The endpoints function is called on every
// pass so a reloaded registry is picked up automatically. metrics may be nil.
func NewMonitor(
	classifier *Classifier,
	endpoints func() *endpoint.Registry,
	interval time.Duration,
	logger *slog.Logger,
	metrics *metric.Metrics,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		classifier: classifier,
		endpoints:  endpoints,
		interval:   interval,
		logger:     logger,
		metrics:    metrics,
		reports:    make(map[string]Report),
	}
}

// Refresh runs one health-check pass and replaces the snapshot wholesale
func (m *Monitor) Refresh(ctx context.Context) map[string]Report {
	start := time.Now()
	reports := m.classifier.CheckAll(ctx, m.endpoints())

	m.mu.Lock()
	m.reports = reports
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.HealthCheckDuration.Observe(time.Since(start).Seconds())
		for id, r := range reports {
			m.metrics.HealthStatus.WithLabelValues(id).Set(r.Status.GaugeValue())
		}
	}

	for id, r := range reports {
		if r.Status != StatusOnline {
			m.logger.Warn("endpoint not online",
				"endpoint", id,
				"status", string(r.Status),
				"latency_ms", r.LatencyMS,
				"error", r.Error)
		}
	}

	if m.OnRefresh != nil {
		m.OnRefresh(copyReports(reports))
	}

	return m.snapshotLocked()
}

// Snapshot returns a copy of the latest reports
func (m *Monitor) Snapshot() map[string]Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyReports(m.reports)
}

func (m *Monitor) snapshotLocked() map[string]Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyReports(m.reports)
}

func copyReports(in map[string]Report) map[string]Report {
	out := make(map[string]Report, len(in))
	for id, r := range in {
		out[id] = r
	}
	return out
}

// Run performs an initial pass and then refreshes on the configured interval
// until the context is cancelled. Interval <= 0 disables the loop after the
// initial pass.
func (m *Monitor) Run(ctx context.Context) {
	m.Refresh(ctx)

	if m.interval <= 0 {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// EndpointStatus is a static descriptor overlaid with live health
type EndpointStatus struct {
	endpoint.Descriptor
	Status     Status    `json:"status"`
	LatencyMS  int64     `json:"latency_ms,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	CheckedAt  time.Time `json:"checked_at,omitempty"`
}

// Overlay combines static descriptors with the latest reports. Endpoints
// without a report fall back to unknown; a stale config status is never kept.
func Overlay(reg *endpoint.Registry, reports map[string]Report) map[string]EndpointStatus {
	result := make(map[string]EndpointStatus, reg.Len())

	for id, desc := range reg.All() {
		status := EndpointStatus{
			Descriptor: desc,
			Status:     StatusUnknown,
		}
		if r, ok := reports[id]; ok && r.Status != "" {
			status.Status = r.Status
			status.LatencyMS = r.LatencyMS
			status.HTTPStatus = r.HTTPStatus
			status.CheckedAt = r.CheckedAt
		}
		result[id] = status
	}

	return result
}
