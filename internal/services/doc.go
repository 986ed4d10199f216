// Package services implements the business logic layer of the dashboard.
// It provides a clean separation between HTTP handlers and the dataset
// engine, ensuring that business rules are centralized and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
// The package provides these core services:
//
//	- DashboardService: owns the dataset snapshot and answers summary,
//	  catalog, query, export and reload operations
//	- HealthService: provides liveness and readiness checks
//
// # Concurrency
//
// DashboardService publishes immutable snapshots behind an RWMutex.
// Queries and exports run concurrently against whatever snapshot was
// current when they started; Reload is the only writer and is serialized,
// with concurrent attempts rejected rather than queued.
//
// # Error Handling
//
// Services return domain-specific errors that handlers transform:
//
//	- FilterStateError for structurally invalid predicates
//	- ErrDatasetNotLoaded before the first successful load
//	- ErrReloadInProgress for overlapping reloads
//	- loader sentinels (ErrNoSources, ErrMissingSource) passed through
//
// # Testing
//
// Services are tested against real source fixtures in temporary
// directories plus small stub implementations of the hub interface.
package services
