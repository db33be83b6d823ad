// Package fieldlab provides a federated SPARQL query engine: pre-authored
// routine queries are fanned out to a set of data-holder endpoints, executed
// independently against each, and collected into per-endpoint outcomes that
// can optionally be merged into a single aggregated table.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            Gateway (HTTP)           │  /run_query, /queries,
//	│                                     │  /health/endpoints, /metrics
//	└──────────────────┬──────────────────┘
//	                   ↓
//	┌─────────────────────────────────────┐
//	│              Engine                 │  Query + target resolution,
//	│        (fan-out orchestrator)       │  one goroutine per endpoint
//	└───────┬──────────────────┬──────────┘
//	        ↓                  ↓
//	┌──────────────┐   ┌──────────────────┐
//	│ SPARQL Client│   │  Result Merger   │  counts summed by group key
//	└──────────────┘   └──────────────────┘
//
// Per-endpoint independence is the core invariant: an endpoint that fails
// auth, times out, or returns garbage produces an error entry under its own
// key and never blocks another endpoint's result.
//
// # Packages
//
// Core:
//   - endpoint: endpoint registry and credential resolution
//   - catalog: routine-query registry and SPARQL text loading
//   - sparql: SPARQL 1.1 protocol client and result types
//   - engine: fan-out orchestration
//   - merge: count aggregation by group key
//
// Infrastructure:
//   - registry: registry store with reload-by-reconstruction and file watching
//   - health: endpoint probing, classification, and periodic monitoring
//   - gateway: the HTTP API surface
//   - events: optional NATS event publishing
//   - config: layered configuration with environment overrides
//   - errors: classified error handling
//   - metric: prometheus metrics
package fieldlab
