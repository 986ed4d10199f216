// Package shared holds utilities that cut across architectural layers and
// belong to no single domain package.
//
// # Structure
//
// The package is organized into the following components:
//
// - testutil: log-capture helpers for asserting on slog output in tests
//
// # Usage Guidelines
//
// Code here must contain no business logic and no dependencies on other
// internal packages, so any package can import it without cycles.
package shared
