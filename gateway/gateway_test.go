package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/engine"
	"github.com/VODAN-Development/2025-fieldlab7/metric"
	"github.com/VODAN-Development/2025-fieldlab7/registry"
)

const sordDoc = `{
	"head": {"vars": ["country", "count"]},
	"results": {"bindings": [
		{"country": {"type": "literal", "value": "NL"},
		 "count": {"type": "literal", "datatype": "http://www.w3.org/2001/XMLSchema#integer", "value": "5"}}
	]}
}`

const gvpDoc = `{
	"head": {"vars": ["country", "count"]},
	"results": {"bindings": [
		{"country": {"type": "literal", "value": "NL"},
		 "count": {"type": "literal", "datatype": "http://www.w3.org/2001/XMLSchema#integer", "value": "2"}},
		{"country": {"type": "literal", "value": "BE"},
		 "count": {"type": "literal", "datatype": "http://www.w3.org/2001/XMLSchema#integer", "value": "1"}}
	]}
}`

func sparqlServer(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		fmt.Fprint(w, doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	sord := sparqlServer(t, sordDoc)
	gvp := sparqlServer(t, gvpDoc)

	endpointsPath := filepath.Join(dir, "endpoints.json")
	require.NoError(t, os.WriteFile(endpointsPath, []byte(fmt.Sprintf(`{
		"platforms": {
			"sord": {"endpoint_url": %q, "type": "fuseki"},
			"gvp": {"endpoint_url": %q, "type": "fuseki"}
		}
	}`, sord.URL, gvp.URL)), 0600))

	queriesPath := filepath.Join(dir, "queries.json")
	require.NoError(t, os.WriteFile(queriesPath, []byte(`{
		"queries": {
			"fl_incidents_by_country": {
				"title": "Incidents by country",
				"topic": "sexual_violence",
				"description": "Incident counts per country",
				"visualization": "bar",
				"query_file": "q.sparql",
				"allowed_endpoints": ["sord", "gvp"]
			}
		}
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.sparql"),
		[]byte("SELECT ?country (COUNT(?i) AS ?count) WHERE { ?i a :Incident } GROUP BY ?country"),
		0600))

	store, err := registry.NewStore(config.RegistryConfig{
		EndpointsFile: endpointsPath,
		QueriesFile:   queriesPath,
		QueryDir:      dir,
	}, nil)
	require.NoError(t, err)

	eng := engine.New(store, nil)
	return NewServer(config.ServerConfig{Addr: ":0"}, eng, store, nil, metric.NewRegistry(), nil)
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRunQuery_PerEndpointOutcomes(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/run_query", `{"query_id": "fl_incidents_by_country"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result, 2)

	// Successful outcomes pass the endpoint's document through unmodified.
	var doc map[string]any
	require.NoError(t, json.Unmarshal(result["sord"], &doc))
	assert.Contains(t, doc, "head")
	assert.Contains(t, doc, "results")
}

func TestRunQuery_UnknownQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/run_query", `{"query_id": "nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unknown query_id: nope", body["error"])
}

func TestRunQuery_Merged(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/run_query",
		`{"query_id": "fl_incidents_by_country", "group_var": "country"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results map[string]json.RawMessage `json:"results"`
		Merged  struct {
			GroupVar string `json:"group_var"`
			Rows     []struct {
				Key   string `json:"key"`
				Total int64  `json:"total"`
			} `json:"rows"`
		} `json:"merged"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Len(t, body.Results, 2)
	assert.Equal(t, "country", body.Merged.GroupVar)
	require.Len(t, body.Merged.Rows, 2)
	assert.Equal(t, "BE", body.Merged.Rows[0].Key)
	assert.Equal(t, int64(1), body.Merged.Rows[0].Total)
	assert.Equal(t, "NL", body.Merged.Rows[1].Key)
	assert.Equal(t, int64(7), body.Merged.Rows[1].Total)
}

func TestRunQuery_EndpointSubset(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/run_query",
		`{"query_id": "fl_incidents_by_country", "endpoints": ["sord"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result, 1)
	assert.Contains(t, result, "sord")
}

func TestRunQuery_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"query_id": `, http.StatusBadRequest},
		{"missing query id", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv.Handler(), "/run_query", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRunQuery_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/run_query", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunQuery_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.MaxRequestSize = 16

	rec := postJSON(t, srv.Handler(), "/run_query",
		`{"query_id": "fl_incidents_by_country"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestListQueries(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/queries", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)

	q := summaries[0]
	assert.Equal(t, "fl_incidents_by_country", q["id"])
	assert.Equal(t, "Incidents by country", q["title"])
	assert.NotContains(t, q, "query_file", "file paths stay internal")
}

func TestEndpointHealth_UnknownWithoutMonitor(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/endpoints", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.Equal(t, "unknown", st["status"])
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	t.Run("generated when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/queries", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("passed through when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/queries", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.EnableCORS = true
	srv.cfg.CORSOrigins = []string{"http://dashboard.local"}

	req := httptest.NewRequest(http.MethodOptions, "/queries", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))
}
