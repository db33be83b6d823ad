// Package catalog provides the routine-query registry: named, pre-authored
// SPARQL queries with display metadata and the set of endpoints each query is
// allowed to target. Like the endpoint registry, the catalog is immutable
// after load and reloaded by reconstruction.
package catalog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

// Descriptor describes one routine query
type Descriptor struct {
	ID               string   `json:"id"                yaml:"id"`
	Title            string   `json:"title"             yaml:"title"`
	Topic            string   `json:"topic"             yaml:"topic"`
	Description      string   `json:"description"       yaml:"description"`
	Visualization    string   `json:"visualization"     yaml:"visualization"`
	QueryFile        string   `json:"query_file"        yaml:"query_file"`
	AllowedEndpoints []string `json:"allowed_endpoints" yaml:"allowed_endpoints"`
}

// Registry holds the loaded query descriptors
type Registry struct {
	queries  map[string]Descriptor
	ids      []string
	queryDir string
}

// catalogFile is the on-disk shape: a map of query identifier to descriptor
// under a top-level "queries" key.
type catalogFile struct {
	Queries map[string]Descriptor `json:"queries" yaml:"queries"`
}

// NewRegistry builds a registry from a descriptor map. queryDir, when set,
// is prepended to relative query_file paths.
func NewRegistry(queries map[string]Descriptor, queryDir string) (*Registry, error) {
	r := &Registry{
		queries:  make(map[string]Descriptor, len(queries)),
		ids:      make([]string, 0, len(queries)),
		queryDir: queryDir,
	}

	for id, q := range queries {
		if q.ID == "" {
			q.ID = id
		}
		if q.ID != id {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Catalog", "NewRegistry",
				fmt.Sprintf("query key %q does not match descriptor id %q", id, q.ID))
		}
		if q.QueryFile == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Catalog", "NewRegistry",
				fmt.Sprintf("query %s: query_file is required", id))
		}
		r.queries[id] = q
		r.ids = append(r.ids, id)
	}

	sort.Strings(r.ids)
	return r, nil
}

// Load reads the query registry from a JSON or YAML file
func Load(path, queryDir string) (*Registry, error) {
	data, err := config.SafeReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrConfigNotFound, "Catalog", "Load",
			fmt.Sprintf("read %s: %v", path, err))
	}

	var raw map[string]any
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
				fmt.Sprintf("parse YAML %s: %v", path, err))
		}
	default:
		if err := config.ValidateJSONDepth(data); err != nil {
			return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
				fmt.Sprintf("%s: %v", path, err))
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
				fmt.Sprintf("parse JSON %s: %v", path, err))
		}
	}

	if err := validateCatalogSchema(raw); err != nil {
		return nil, err
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
			fmt.Sprintf("encode %s: %v", path, err))
	}

	var file catalogFile
	if err := json.Unmarshal(rawJSON, &file); err != nil {
		return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
			fmt.Sprintf("decode %s: %v", path, err))
	}

	if len(file.Queries) == 0 {
		return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Catalog", "Load",
			fmt.Sprintf("%s: no queries defined", path))
	}

	return NewRegistry(file.Queries, queryDir)
}

// Get returns the descriptor for a query identifier
func (r *Registry) Get(id string) (Descriptor, bool) {
	q, ok := r.queries[id]
	return q, ok
}

// IDs returns all query identifiers in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// All returns a copy of the descriptor map
func (r *Registry) All() map[string]Descriptor {
	result := make(map[string]Descriptor, len(r.queries))
	for id, q := range r.queries {
		result[id] = q
	}
	return result
}

// Len returns the number of registered queries
func (r *Registry) Len() int {
	return len(r.queries)
}

// QueryText reads the SPARQL text for a descriptor. An unreadable file is a
// hard error: without query text there is nothing to execute.
func (r *Registry) QueryText(q Descriptor) (string, error) {
	path := q.QueryFile
	if r.queryDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.queryDir, path)
	}

	data, err := config.SafeReadFile(path)
	if err != nil {
		return "", errors.WrapFatal(errors.ErrQueryFileUnreadable, "Catalog", "QueryText",
			fmt.Sprintf("query %s: read %s: %v", q.ID, path, err))
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", errors.WrapFatal(errors.ErrQueryFileUnreadable, "Catalog", "QueryText",
			fmt.Sprintf("query %s: %s is empty", q.ID, path))
	}

	return text, nil
}
