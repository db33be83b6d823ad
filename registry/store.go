// Package registry holds the current endpoint and query registries behind a
// store that supports reload by reconstruction: a reload builds fresh
// registries and swaps them in atomically, so readers never observe a
// partially mutated registry.
package registry

import (
	"log/slog"
	"sync"

	"github.com/VODAN-Development/2025-fieldlab7/catalog"
	"github.com/VODAN-Development/2025-fieldlab7/config"
	"github.com/VODAN-Development/2025-fieldlab7/endpoint"
)

// Store holds the current registries
type Store struct {
	cfg    config.RegistryConfig
	logger *slog.Logger

	mu        sync.RWMutex
	endpoints *endpoint.Registry
	queries   *catalog.Registry
}

// NewStore loads both registries and returns a store holding them.
// A load failure is fatal: the caller decides whether to abort or fall back.
func NewStore(cfg config.RegistryConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{cfg: cfg, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reconstructs both registries from their files and swaps them in.
// On failure the previous registries stay in place untouched.
func (s *Store) Reload() error {
	endpoints, err := endpoint.Load(s.cfg.EndpointsFile)
	if err != nil {
		return err
	}

	queries, err := catalog.Load(s.cfg.QueriesFile, s.cfg.QueryDir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.endpoints = endpoints
	s.queries = queries
	s.mu.Unlock()

	s.logger.Info("registries loaded",
		"endpoints", endpoints.Len(),
		"queries", queries.Len())

	return nil
}

// Endpoints returns the current endpoint registry
func (s *Store) Endpoints() *endpoint.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoints
}

// Queries returns the current query registry
func (s *Store) Queries() *catalog.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries
}
