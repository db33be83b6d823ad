package sparql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VODAN-Development/2025-fieldlab7/endpoint"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

const countsDocument = `{
	"head": {"vars": ["country", "count"]},
	"results": {"bindings": [
		{"country": {"type": "literal", "value": "NL"},
		 "count": {"type": "literal", "datatype": "http://www.w3.org/2001/XMLSchema#integer", "value": "3"}}
	]}
}`

func TestClient_Execute_Success(t *testing.T) {
	var gotAccept, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		require.NoError(t, r.ParseForm())
		gotQuery = r.FormValue("query")

		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(countsDocument))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	result, err := client.Execute(context.Background(), srv.URL,
		"SELECT ?country ?count WHERE { }", endpoint.Credentials{}, nil)

	require.NoError(t, err)
	assert.Equal(t, "application/sparql-results+json", gotAccept)
	assert.Equal(t, "SELECT ?country ?count WHERE { }", gotQuery)

	rows := result.BindingRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "NL", rows[0]["country"].Value)
	assert.Equal(t, "3", rows[0]["count"].Value)
	assert.Equal(t, []string{"country", "count"}, result.Head.Vars)
}

func TestClient_Execute_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(countsDocument))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)

	_, err := client.Execute(context.Background(), srv.URL, "ASK { ?s ?p ?o }",
		endpoint.Credentials{Username: "admin", Password: "secret"}, nil)
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), srv.URL, "ASK { ?s ?p ?o }",
		endpoint.Credentials{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestClient_Execute_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "parse error at line 1", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Execute(context.Background(), srv.URL, "NOT SPARQL", endpoint.Credentials{}, nil)

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "parse error")
}

func TestClient_Execute_UnreachableHost(t *testing.T) {
	client := NewClient(time.Second)
	_, err := client.Execute(context.Background(), "http://127.0.0.1:1/sparql",
		"ASK { ?s ?p ?o }", endpoint.Credentials{}, nil)

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestClient_Execute_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Execute(context.Background(), srv.URL, "ASK { ?s ?p ?o }", endpoint.Credentials{}, nil)
	require.Error(t, err)
}

func TestClient_Execute_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		_, _ = w.Write([]byte(countsDocument))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(5 * time.Second)
	_, err := client.Execute(ctx, srv.URL, "ASK { ?s ?p ?o }", endpoint.Credentials{}, nil)

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestClient_Execute_CustomHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		_, _ = w.Write([]byte(countsDocument))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Execute(context.Background(), srv.URL, "ASK { ?s ?p ?o }",
		endpoint.Credentials{}, map[string]string{"X-Custom": "yes"})

	require.NoError(t, err)
	assert.Equal(t, "yes", gotHeader)
}

func TestResult_PassthroughMarshal(t *testing.T) {
	var result Result
	require.NoError(t, json.Unmarshal([]byte(countsDocument), &result))

	out, err := json.Marshal(&result)
	require.NoError(t, err)
	assert.JSONEq(t, countsDocument, string(out))
}

func TestOutcome_MarshalJSON(t *testing.T) {
	t.Run("error variant", func(t *testing.T) {
		out, err := json.Marshal(Failure("timeout"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"error": "timeout"}`, string(out))
	})

	t.Run("success variant passes raw document through", func(t *testing.T) {
		var result Result
		require.NoError(t, json.Unmarshal([]byte(countsDocument), &result))

		out, err := json.Marshal(Success(&result))
		require.NoError(t, err)
		assert.JSONEq(t, countsDocument, string(out))
	})
}

func TestOutcome_UnmarshalJSON(t *testing.T) {
	t.Run("error variant", func(t *testing.T) {
		var o Outcome
		require.NoError(t, json.Unmarshal([]byte(`{"error": "no route to host"}`), &o))
		assert.True(t, o.IsError())
		assert.Equal(t, "no route to host", o.Err.Reason)
	})

	t.Run("success variant", func(t *testing.T) {
		var o Outcome
		require.NoError(t, json.Unmarshal([]byte(countsDocument), &o))
		assert.False(t, o.IsError())
		require.Len(t, o.Result.BindingRows(), 1)
	})
}
