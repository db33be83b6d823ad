// Package events publishes query-run summaries and health snapshots to NATS
// for dashboards and audit trails. The publisher is optional: a nil *Publisher
// is safe to call and does nothing, so the engine runs unchanged without a
// broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
	"github.com/VODAN-Development/2025-fieldlab7/health"
	"github.com/VODAN-Development/2025-fieldlab7/pkg/retry"
)

const defaultSubjectPrefix = "fieldlab"

// QueryRunEvent summarizes one completed fan-out
type QueryRunEvent struct {
	RunID     string            `json:"run_id"`
	QueryID   string            `json:"query_id"`
	Endpoints []string          `json:"endpoints"`
	Failures  map[string]string `json:"failures,omitempty"`
	Duration  float64           `json:"duration_seconds"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthSnapshotEvent carries one full health-check pass
type HealthSnapshotEvent struct {
	Reports   []health.Report `json:"reports"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher publishes engine events to NATS
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect establishes the NATS connection with backoff. Returns nil (no
// publisher, no error) when events are disabled in config.
func Connect(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	urls := strings.Join(cfg.URLs, ",")
	if urls == "" {
		urls = nats.DefaultURL
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	conn, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*nats.Conn, error) {
		return nats.Connect(urls,
			nats.Name("fieldlab-engine"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Publisher", "Connect", "connect to "+urls)
	}

	logger.Info("event publisher connected", "urls", urls, "prefix", prefix)
	return &Publisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// PublishQueryRun publishes a fan-out summary. Publish failures are logged,
// never propagated: events are best-effort and must not fail a query.
func (p *Publisher) PublishQueryRun(ev QueryRunEvent) {
	p.publish("query.run", ev)
}

// PublishHealthSnapshot publishes the result of one health-check pass
func (p *Publisher) PublishHealthSnapshot(reports []health.Report) {
	p.publish("health.snapshot", HealthSnapshotEvent{
		Reports:   reports,
		Timestamp: time.Now().UTC(),
	})
}

// Close drains the connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Error("drain event connection", "error", err)
	}
}

func (p *Publisher) subject(suffix string) string {
	return p.prefix + "." + suffix
}

func (p *Publisher) publish(suffix string, payload any) {
	if p == nil || p.conn == nil {
		return
	}
	subject := p.subject(suffix)

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("encode event", "subject", subject, "error", err)
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("publish event", "subject", subject, "error", err)
	}
}
