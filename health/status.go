// Package health provides endpoint health classification: probing each
// federated endpoint and mapping the raw outcome (connectivity, HTTP status,
// latency) onto a coarse status taxonomy used operationally and by the
// dashboard boundary.
package health

import (
	"time"

	"github.com/VODAN-Development/2025-fieldlab7/metric"
)

// Status is the coarse health classification of an endpoint
type Status string

const (
	// StatusOnline means a fast 2xx (or an auth-gated 401/403: reachable
	// and enforcing auth is not a fault)
	StatusOnline Status = "online"
	// StatusDegraded means a slow 2xx, or an ambiguous 3xx/4xx status
	StatusDegraded Status = "degraded"
	// StatusOffline means no HTTP response at all (connect/DNS/timeout)
	StatusOffline Status = "offline"
	// StatusError means the endpoint answered with a 5xx
	StatusError Status = "error"
	// StatusUnknown means no check result is available
	StatusUnknown Status = "unknown"
)

// GaugeValue maps a status onto its metric coding
func (s Status) GaugeValue() float64 {
	switch s {
	case StatusOnline:
		return metric.GaugeOnline
	case StatusDegraded:
		return metric.GaugeDegraded
	case StatusOffline:
		return metric.GaugeOffline
	case StatusError:
		return metric.GaugeError
	default:
		return metric.GaugeUnknown
	}
}

// Report is a point-in-time health snapshot for one endpoint. Reports are
// replaced wholesale by each check pass, never merged with a previous one.
type Report struct {
	Endpoint   string        `json:"endpoint"`
	Status     Status        `json:"status"`
	Latency    time.Duration `json:"-"`
	LatencyMS  int64         `json:"latency_ms"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Error      string        `json:"error,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// IsOnline reports whether the endpoint classified online
func (r Report) IsOnline() bool {
	return r.Status == StatusOnline
}
