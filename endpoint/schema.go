package endpoint

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

// endpointSchema validates the endpoint registry file shape before decoding,
// so a typo in an operator-edited file produces a field-level error instead
// of a silent zero value.
const endpointSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["platforms"],
	"properties": {
		"platforms": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["endpoint_url"],
				"properties": {
					"id": {"type": "string"},
					"endpoint_url": {"type": "string", "minLength": 1},
					"kind": {"enum": ["sparql", "http"]},
					"auth_method": {"enum": ["none", "basic"]},
					"username_env": {"type": "string"},
					"password_env": {"type": "string"},
					"type": {"type": "string"},
					"topics": {
						"type": "array",
						"items": {"type": "string"}
					}
				},
				"additionalProperties": false
			}
		}
	}
}`

// validateEndpointSchema checks a decoded registry document against the schema
func validateEndpointSchema(raw map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(endpointSchema)
	documentLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
			fmt.Sprintf("schema validation: %v", err))
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
			fmt.Sprintf("endpoint registry invalid: %s", strings.Join(details, "; ")))
	}

	return nil
}
