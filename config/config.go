// Package config provides application configuration loading with defaults,
// file layering, and environment variable overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Registry RegistryConfig `json:"registry"`
	Health   HealthConfig   `json:"health"`
	Executor ExecutorConfig `json:"executor"`
	Events   EventsConfig   `json:"events"`
}

// ServerConfig defines the HTTP API server settings
type ServerConfig struct {
	Addr           string   `json:"addr"`
	EnableCORS     bool     `json:"enable_cors"`
	CORSOrigins    []string `json:"cors_origins,omitempty"`
	MaxRequestSize int64    `json:"max_request_size"`
}

// RegistryConfig names the endpoint and query registry files
type RegistryConfig struct {
	EndpointsFile string `json:"endpoints_file"`
	QueriesFile   string `json:"queries_file"`
	QueryDir      string `json:"query_dir,omitempty"` // optional base dir for query_file paths
	Watch         bool   `json:"watch"`               // rebuild registries on file change
}

// HealthConfig defines endpoint health probing settings
type HealthConfig struct {
	TimeoutSeconds     int `json:"timeout_seconds"`      // per-endpoint probe budget
	LatencyThresholdMS int `json:"latency_threshold_ms"` // online/degraded boundary (inclusive on online side)
	IntervalSeconds    int `json:"interval_seconds"`     // periodic check interval, 0 disables
}

// ExecutorConfig defines SPARQL execution settings
type ExecutorConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// EventsConfig defines the optional NATS event publisher
type EventsConfig struct {
	Enabled       bool     `json:"enabled"`
	URLs          []string `json:"urls,omitempty"`
	SubjectPrefix string   `json:"subject_prefix,omitempty"`
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxRequestSize <= 0 {
		return errors.New("server.max_request_size must be positive")
	}

	if c.Registry.EndpointsFile == "" {
		return errors.New("registry.endpoints_file is required")
	}
	if c.Registry.QueriesFile == "" {
		return errors.New("registry.queries_file is required")
	}

	if c.Health.TimeoutSeconds <= 0 {
		return errors.New("health.timeout_seconds must be positive")
	}
	if c.Health.LatencyThresholdMS <= 0 {
		return errors.New("health.latency_threshold_ms must be positive")
	}
	if c.Health.IntervalSeconds < 0 {
		return errors.New("health.interval_seconds cannot be negative")
	}

	if c.Executor.TimeoutSeconds <= 0 || c.Executor.TimeoutSeconds > 300 {
		return errors.New("executor.timeout_seconds must be between 1 and 300")
	}

	if c.Events.Enabled {
		if len(c.Events.URLs) == 0 {
			return errors.New("events.urls is required when events are enabled")
		}
		for i, u := range c.Events.URLs {
			if _, err := url.Parse(u); err != nil {
				return fmt.Errorf("events.urls[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// Loader handles configuration loading with file layers and env overrides
type Loader struct {
	layers    []string
	envPrefix string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "FIELDLAB",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// LoadFile loads configuration from a single file on top of defaults
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers, applies env overrides,
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		layer, err := l.loadJSONFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = mergeConfigs(cfg, layer)
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			EnableCORS:     true,
			CORSOrigins:    []string{"*"},
			MaxRequestSize: 1 << 20, // 1MB
		},
		Registry: RegistryConfig{
			EndpointsFile: "configs/endpoints.json",
			QueriesFile:   "configs/queries.json",
		},
		Health: HealthConfig{
			TimeoutSeconds:     5,
			LatencyThresholdMS: 2000,
			IntervalSeconds:    60,
		},
		Executor: ExecutorConfig{
			TimeoutSeconds: 30,
		},
		Events: EventsConfig{
			SubjectPrefix: "fieldlab",
		},
	}
}

// loadJSONFile loads a configuration layer as a raw map
func (l *Loader) loadJSONFile(path string) (map[string]any, error) {
	data, err := SafeReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := ValidateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// mergeConfigs merges an override layer into the base config, only replacing
// fields present in the layer.
func mergeConfigs(base *Config, override map[string]any) *Config {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_SERVER_ADDR"); val != "" {
		cfg.Server.Addr = val
	}
	if val := os.Getenv(l.envPrefix + "_ENDPOINTS_FILE"); val != "" {
		cfg.Registry.EndpointsFile = val
	}
	if val := os.Getenv(l.envPrefix + "_QUERIES_FILE"); val != "" {
		cfg.Registry.QueriesFile = val
	}
	if val := os.Getenv(l.envPrefix + "_QUERY_DIR"); val != "" {
		cfg.Registry.QueryDir = val
	}
	if val := os.Getenv(l.envPrefix + "_HEALTH_TIMEOUT_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Health.TimeoutSeconds = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_EXECUTOR_TIMEOUT_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Executor.TimeoutSeconds = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_EVENTS_URLS"); val != "" {
		cfg.Events.URLs = strings.Split(val, ",")
		cfg.Events.Enabled = true
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
