// Package metric provides the prometheus metrics registry for the fieldlab
// engine: fan-out, executor, health-check, and gateway instrumentation on an
// isolated registry with Go runtime collectors.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status gauge codings for endpoint health
const (
	GaugeUnknown  = -1
	GaugeOffline  = 0
	GaugeError    = 1
	GaugeDegraded = 2
	GaugeOnline   = 3
)

// Metrics contains all engine metrics
type Metrics struct {
	// Fan-out metrics
	QueriesTotal   *prometheus.CounterVec
	FanoutDuration *prometheus.HistogramVec

	// Per-endpoint executor metrics
	EndpointRequestsTotal   *prometheus.CounterVec
	EndpointRequestDuration *prometheus.HistogramVec

	// Health classification metrics
	HealthStatus        *prometheus.GaugeVec
	HealthCheckDuration prometheus.Histogram

	// Gateway metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates all engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldlab",
				Subsystem: "engine",
				Name:      "queries_total",
				Help:      "Total routine query fan-outs by query id and outcome",
			},
			[]string{"query", "status"},
		),

		FanoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldlab",
				Subsystem: "engine",
				Name:      "fanout_duration_seconds",
				Help:      "Wall time of a complete query fan-out",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"query"},
		),

		EndpointRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldlab",
				Subsystem: "executor",
				Name:      "endpoint_requests_total",
				Help:      "Per-endpoint query executions by outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		EndpointRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldlab",
				Subsystem: "executor",
				Name:      "endpoint_request_duration_seconds",
				Help:      "Per-endpoint query execution time",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fieldlab",
				Subsystem: "health",
				Name:      "endpoint_status",
				Help:      "Endpoint health (-1=unknown, 0=offline, 1=error, 2=degraded, 3=online)",
			},
			[]string{"endpoint"},
		),

		HealthCheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fieldlab",
				Subsystem: "health",
				Name:      "check_duration_seconds",
				Help:      "Wall time of a full health-check pass",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldlab",
				Subsystem: "gateway",
				Name:      "http_requests_total",
				Help:      "HTTP API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// Registry manages the prometheus registry and engine metrics
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a metrics registry with engine and runtime metrics
func NewRegistry() *Registry {
	promReg := prometheus.NewRegistry()

	metrics := NewMetrics()
	promReg.MustRegister(
		metrics.QueriesTotal,
		metrics.FanoutDuration,
		metrics.EndpointRequestsTotal,
		metrics.EndpointRequestDuration,
		metrics.HealthStatus,
		metrics.HealthCheckDuration,
		metrics.HTTPRequestsTotal,
	)

	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		prometheusRegistry: promReg,
		Metrics:            metrics,
	}
}

// PrometheusRegistry returns the underlying prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler returns the metrics exposition handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
