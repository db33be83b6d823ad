package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VODAN-Development/2025-fieldlab7/endpoint"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

const (
	resultsJSON      = "application/sparql-results+json"
	formURLEncoded   = "application/x-www-form-urlencoded"
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 50 << 20 // 50MB cap on result documents
)

// Client executes SPARQL queries over the SPARQL 1.1 protocol
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a client with an explicit per-request timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "fieldlab-engine/0.1",
	}
}

// Execute runs one SPARQL query against one endpoint URL and decodes the
// JSON result document. Transport, protocol, and endpoint-side failures are
// returned as errors; the caller decides whether to record them as data.
func (c *Client) Execute(
	ctx context.Context,
	endpointURL, query string,
	creds endpoint.Credentials,
	headers map[string]string,
) (*Result, error) {
	form := url.Values{}
	form.Set("query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Execute", "build request")
	}

	req.Header.Set("Content-Type", formURLEncoded)
	req.Header.Set("Accept", resultsJSON)
	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if !creds.IsZero() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Execute", "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Execute", "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.WrapTransient(errors.ErrEndpointFailure, "Client", "Execute",
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, summarizeBody(body)))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.WrapTransient(err, "Client", "Execute", "decode result")
	}

	return &result, nil
}

// summarizeBody trims an error response body for inclusion in a reason string
func summarizeBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
