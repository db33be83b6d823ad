package catalog

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

// catalogSchema validates the query registry file shape before decoding
const catalogSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["queries"],
	"properties": {
		"queries": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["query_file"],
				"properties": {
					"id": {"type": "string"},
					"title": {"type": "string"},
					"topic": {"type": "string"},
					"description": {"type": "string"},
					"visualization": {"type": "string"},
					"query_file": {"type": "string", "minLength": 1},
					"allowed_endpoints": {
						"type": "array",
						"items": {"type": "string"}
					}
				},
				"additionalProperties": false
			}
		}
	}
}`

// validateCatalogSchema checks a decoded catalog document against the schema
func validateCatalogSchema(raw map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(catalogSchema)
	documentLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
			fmt.Sprintf("schema validation: %v", err))
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
			fmt.Sprintf("query registry invalid: %s", strings.Join(details, "; ")))
	}

	return nil
}
