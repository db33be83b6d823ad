package endpoint

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/errors"
)

// registryFile is the on-disk shape of the endpoint registry: a map of
// endpoint identifier to descriptor under a top-level "platforms" key.
type registryFile struct {
	Platforms map[string]Descriptor `json:"platforms" yaml:"platforms"`
}

// Registry holds the loaded endpoint descriptors. It is immutable after
// construction; reloading builds a new Registry.
type Registry struct {
	descriptors map[string]Descriptor
	ids         []string
}

// NewRegistry builds a registry from a descriptor map, validating every entry
func NewRegistry(descriptors map[string]Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]Descriptor, len(descriptors)),
		ids:         make([]string, 0, len(descriptors)),
	}

	for id, d := range descriptors {
		if d.ID == "" {
			d.ID = id
		}
		if d.ID != id {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "NewRegistry",
				fmt.Sprintf("endpoint key %q does not match descriptor id %q", id, d.ID))
		}
		if d.Kind == "" {
			d.Kind = KindSPARQL
		}
		if d.AuthMethod == "" {
			d.AuthMethod = AuthNone
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		r.descriptors[id] = d
		r.ids = append(r.ids, id)
	}

	sort.Strings(r.ids)
	return r, nil
}

// Load reads the endpoint registry from a JSON or YAML file. The file is
// schema-validated before decoding so operators get field-level errors.
func Load(path string) (*Registry, error) {
	data, err := config.SafeReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrConfigNotFound, "Registry", "Load",
			fmt.Sprintf("read %s: %v", path, err))
	}

	raw, err := decodeRegistryFile(path, data)
	if err != nil {
		return nil, err
	}

	if err := validateEndpointSchema(raw); err != nil {
		return nil, err
	}

	var file registryFile
	if err := remarshal(raw, &file); err != nil {
		return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
			fmt.Sprintf("decode %s: %v", path, err))
	}

	if len(file.Platforms) == 0 {
		return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
			fmt.Sprintf("%s: no platforms defined", path))
	}

	return NewRegistry(file.Platforms)
}

// decodeRegistryFile parses registry bytes into a generic map, by extension
func decodeRegistryFile(path string, data []byte) (map[string]any, error) {
	var raw map[string]any

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
				fmt.Sprintf("parse YAML %s: %v", path, err))
		}
	default:
		if err := config.ValidateJSONDepth(data); err != nil {
			return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
				fmt.Sprintf("%s: %v", path, err))
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapFatal(errors.ErrRegistryInvalid, "Registry", "Load",
				fmt.Sprintf("parse JSON %s: %v", path, err))
		}
	}

	return raw, nil
}

// remarshal converts a generic map into a typed structure via JSON
func remarshal(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Get returns the descriptor for an endpoint identifier
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.descriptors[id]
	return d, ok
}

// IDs returns all endpoint identifiers in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// All returns a copy of the descriptor map
func (r *Registry) All() map[string]Descriptor {
	result := make(map[string]Descriptor, len(r.descriptors))
	for id, d := range r.descriptors {
		result[id] = d
	}
	return result
}

// Len returns the number of registered endpoints
func (r *Registry) Len() int {
	return len(r.descriptors)
}
