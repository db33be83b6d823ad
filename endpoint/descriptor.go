// Package endpoint provides the endpoint registry: static descriptors for the
// federated data-holder endpoints and credential resolution from environment
// references. Descriptors are immutable once loaded; a reload reconstructs the
// whole registry rather than mutating it in place.
package endpoint

import (
	"fmt"
	"net/url"
	"os"

	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

// Endpoint kinds
const (
	KindSPARQL = "sparql"
	KindHTTP   = "http"
)

// Authentication methods
const (
	AuthNone  = "none"
	AuthBasic = "basic"
)

// Descriptor describes one federated data endpoint. Credential fields hold
// the names of environment variables, never literal secrets.
type Descriptor struct {
	ID          string   `json:"id"            yaml:"id"`
	EndpointURL string   `json:"endpoint_url"  yaml:"endpoint_url"`
	Kind        string   `json:"kind"          yaml:"kind"`
	AuthMethod  string   `json:"auth_method"   yaml:"auth_method"`
	UsernameEnv string   `json:"username_env,omitempty" yaml:"username_env,omitempty"`
	PasswordEnv string   `json:"password_env,omitempty" yaml:"password_env,omitempty"`
	Type        string   `json:"type"          yaml:"type"`
	Topics      []string `json:"topics"        yaml:"topics"`
}

// Credentials holds resolved basic-auth credentials
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials were resolved
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Validate checks a descriptor for structural errors
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate", "id is required")
	}

	if d.EndpointURL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate",
			fmt.Sprintf("endpoint %s: endpoint_url is required", d.ID))
	}
	if _, err := url.Parse(d.EndpointURL); err != nil {
		return errors.WrapInvalid(err, "Descriptor", "Validate",
			fmt.Sprintf("endpoint %s: invalid endpoint_url", d.ID))
	}

	switch d.Kind {
	case KindSPARQL, KindHTTP:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate",
			fmt.Sprintf("endpoint %s: kind must be %q or %q", d.ID, KindSPARQL, KindHTTP))
	}

	switch d.AuthMethod {
	case AuthNone:
	case AuthBasic:
		if d.UsernameEnv == "" || d.PasswordEnv == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate",
				fmt.Sprintf("endpoint %s: basic auth requires username_env and password_env", d.ID))
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate",
			fmt.Sprintf("endpoint %s: auth_method must be %q or %q", d.ID, AuthNone, AuthBasic))
	}

	return nil
}

// Credentials resolves basic-auth credentials from the descriptor's
// environment references. For AuthNone it returns zero credentials. For
// AuthBasic it fails if either variable is unset, naming the missing
// references so operators know what to fix.
func (d *Descriptor) Credentials() (Credentials, error) {
	if d.AuthMethod != AuthBasic {
		return Credentials{}, nil
	}

	username := os.Getenv(d.UsernameEnv)
	password := os.Getenv(d.PasswordEnv)

	if username == "" || password == "" {
		msg := fmt.Sprintf("Missing credentials for endpoint %s. Check '%s' and '%s'.",
			d.ID, d.UsernameEnv, d.PasswordEnv)
		return Credentials{}, errors.NewInvalid(errors.ErrMissingCredentials,
			"Descriptor", "Credentials", msg)
	}

	return Credentials{Username: username, Password: password}, nil
}

// OptionalCredentials resolves credentials but never fails: health probes
// proceed unauthenticated when a reference is unset (the probe then typically
// classifies the endpoint online via its 401 response).
func (d *Descriptor) OptionalCredentials() Credentials {
	creds, err := d.Credentials()
	if err != nil {
		return Credentials{}
	}
	return creds
}
