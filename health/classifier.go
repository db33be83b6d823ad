package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/VODAN-Development/2025-fieldlab7/endpoint"
)

const (
	// probeQuery is the minimal well-formed probe for SPARQL endpoints
	probeQuery = "ASK { ?s ?p ?o }"

	defaultProbeTimeout     = 5 * time.Second
	defaultLatencyThreshold = 2 * time.Second
)

// Classifier probes endpoints and classifies the raw outcome. Checks across
// endpoints are independent: a slow or failing endpoint never blocks or
// biases the classification of another.
type Classifier struct {
	httpClient       *http.Client
	timeout          time.Duration
	latencyThreshold time.Duration
}

// Option configures a Classifier
type Option func(*Classifier)

// WithTimeout sets the per-endpoint probe budget
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLatencyThreshold sets the online/degraded boundary. The boundary is
// inclusive on the online side: latency equal to the threshold is online.
func WithLatencyThreshold(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.latencyThreshold = d
		}
	}
}

// NewClassifier creates a classifier with the given options
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		timeout:          defaultProbeTimeout,
		latencyThreshold: defaultLatencyThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.timeout}
	return c
}

// Check probes a single endpoint and classifies the outcome. Probe failures
// are captured in the report, never propagated: they downgrade this one
// endpoint's classification only.
func (c *Classifier) Check(ctx context.Context, desc endpoint.Descriptor) Report {
	report := Report{
		Endpoint:  desc.ID,
		CheckedAt: time.Now(),
	}

	req, err := c.buildProbe(ctx, desc)
	if err != nil {
		report.Status = StatusError
		report.Error = err.Error()
		return report
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)

	report.Latency = latency
	report.LatencyMS = latency.Milliseconds()

	if err != nil {
		// No HTTP response at all: connection, DNS, or timeout failure
		report.Status = StatusOffline
		report.Error = err.Error()
		return report
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	report.HTTPStatus = resp.StatusCode
	report.Status = c.classify(resp.StatusCode, latency)
	if report.Status == StatusError {
		report.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	return report
}

// buildProbe constructs the probe request for an endpoint. SPARQL endpoints
// get the boolean probe query; anything else gets a plain GET. Credentials
// that cannot be resolved do not fail the probe.
func (c *Classifier) buildProbe(ctx context.Context, desc endpoint.Descriptor) (*http.Request, error) {
	probeURL := desc.EndpointURL

	if desc.Kind == endpoint.KindSPARQL {
		u, err := url.Parse(desc.EndpointURL)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint URL: %w", err)
		}
		q := u.Query()
		q.Set("query", probeQuery)
		u.RawQuery = q.Encode()
		probeURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, err
	}

	if desc.Kind == endpoint.KindSPARQL {
		req.Header.Set("Accept", "application/sparql-results+json")
	}

	if creds := desc.OptionalCredentials(); !creds.IsZero() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	return req, nil
}

// classify maps an HTTP status and observed latency onto the taxonomy
func (c *Classifier) classify(statusCode int, latency time.Duration) Status {
	switch {
	case statusCode >= 200 && statusCode < 300:
		if latency <= c.latencyThreshold {
			return StatusOnline
		}
		return StatusDegraded
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		// Reachable and enforcing auth; not a fault
		return StatusOnline
	case statusCode >= 500:
		return StatusError
	default:
		// Ambiguous 3xx/4xx
		return StatusDegraded
	}
}

// CheckAll probes every endpoint in the registry concurrently, one goroutine
// per endpoint writing into its own slot. The returned map has exactly one
// report per registered endpoint.
func (c *Classifier) CheckAll(ctx context.Context, reg *endpoint.Registry) map[string]Report {
	ids := reg.IDs()
	slots := make([]Report, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		desc, ok := reg.Get(id)
		if !ok {
			continue
		}
		i, desc := i, desc
		g.Go(func() error {
			slots[i] = c.Check(gctx, desc)
			return nil
		})
	}
	_ = g.Wait() // probes never return errors; failures live in the reports

	reports := make(map[string]Report, len(ids))
	for i, id := range ids {
		reports[id] = slots[i]
	}
	return reports
}
