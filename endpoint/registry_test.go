package endpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

func writeRegistryFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validJSON = `{
	"platforms": {
		"sord": {
			"endpoint_url": "http://localhost:3030/sord/sparql",
			"kind": "sparql",
			"auth_method": "basic",
			"username_env": "SORD_USER",
			"password_env": "SORD_PASS",
			"type": "fuseki",
			"topics": ["sexual_violence"]
		},
		"mock": {
			"endpoint_url": "http://localhost:9999/sparql",
			"type": "mock",
			"topics": []
		}
	}
}`

func TestLoad_JSON(t *testing.T) {
	path := writeRegistryFile(t, "endpoints.json", validJSON)

	reg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"mock", "sord"}, reg.IDs())

	sord, ok := reg.Get("sord")
	require.True(t, ok)
	assert.Equal(t, "sord", sord.ID)
	assert.Equal(t, AuthBasic, sord.AuthMethod)
	assert.Equal(t, []string{"sexual_violence"}, sord.Topics)

	// Defaults applied for omitted fields
	mock, ok := reg.Get("mock")
	require.True(t, ok)
	assert.Equal(t, KindSPARQL, mock.Kind)
	assert.Equal(t, AuthNone, mock.AuthMethod)
}

func TestLoad_YAML(t *testing.T) {
	path := writeRegistryFile(t, "endpoints.yaml", `
platforms:
  sord:
    endpoint_url: http://localhost:3030/sord/sparql
    kind: sparql
    type: fuseki
    topics:
      - sexual_violence
`)

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	sord, ok := reg.Get("sord")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:3030/sord/sparql", sord.EndpointURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeRegistryFile(t, "endpoints.json", `{"platforms": }`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing endpoint_url",
			content: `{"platforms": {"a": {"type": "fuseki"}}}`,
		},
		{
			name:    "bad auth method",
			content: `{"platforms": {"a": {"endpoint_url": "http://x", "auth_method": "digest"}}}`,
		},
		{
			name:    "unknown field",
			content: `{"platforms": {"a": {"endpoint_url": "http://x", "password": "hunter2"}}}`,
		},
		{
			name:    "no platforms key",
			content: `{"organizations": {}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRegistryFile(t, "endpoints.json", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestNewRegistry_KeyMismatch(t *testing.T) {
	_, err := NewRegistry(map[string]Descriptor{
		"a": {ID: "b", EndpointURL: "http://x", Kind: KindSPARQL, AuthMethod: AuthNone},
	})
	require.Error(t, err)
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{
			name:    "valid none auth",
			desc:    Descriptor{ID: "a", EndpointURL: "http://x", Kind: KindSPARQL, AuthMethod: AuthNone},
			wantErr: false,
		},
		{
			name: "valid basic auth",
			desc: Descriptor{
				ID: "a", EndpointURL: "http://x", Kind: KindHTTP, AuthMethod: AuthBasic,
				UsernameEnv: "U", PasswordEnv: "P",
			},
			wantErr: false,
		},
		{
			name:    "basic auth without env refs",
			desc:    Descriptor{ID: "a", EndpointURL: "http://x", Kind: KindSPARQL, AuthMethod: AuthBasic},
			wantErr: true,
		},
		{
			name:    "missing url",
			desc:    Descriptor{ID: "a", Kind: KindSPARQL, AuthMethod: AuthNone},
			wantErr: true,
		},
		{
			name:    "bad kind",
			desc:    Descriptor{ID: "a", EndpointURL: "http://x", Kind: "ftp", AuthMethod: AuthNone},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDescriptor_Credentials(t *testing.T) {
	d := Descriptor{
		ID: "sord", EndpointURL: "http://x", Kind: KindSPARQL,
		AuthMethod: AuthBasic, UsernameEnv: "SORD_USER", PasswordEnv: "SORD_PASS",
	}

	t.Run("resolved from environment", func(t *testing.T) {
		t.Setenv("SORD_USER", "admin")
		t.Setenv("SORD_PASS", "secret")

		creds, err := d.Credentials()
		require.NoError(t, err)
		assert.Equal(t, "admin", creds.Username)
		assert.Equal(t, "secret", creds.Password)
	})

	t.Run("missing password names both references", func(t *testing.T) {
		t.Setenv("SORD_USER", "admin")
		t.Setenv("SORD_PASS", "")

		_, err := d.Credentials()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SORD_USER")
		assert.Contains(t, err.Error(), "SORD_PASS")
		assert.Contains(t, err.Error(), "sord")
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("none auth resolves to zero", func(t *testing.T) {
		noAuth := Descriptor{ID: "m", EndpointURL: "http://x", Kind: KindSPARQL, AuthMethod: AuthNone}
		creds, err := noAuth.Credentials()
		require.NoError(t, err)
		assert.True(t, creds.IsZero())
	})

	t.Run("optional credentials never fail", func(t *testing.T) {
		t.Setenv("SORD_USER", "")
		t.Setenv("SORD_PASS", "")
		creds := d.OptionalCredentials()
		assert.True(t, creds.IsZero())
	})
}
