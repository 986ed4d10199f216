// Package dataprocessing turns raw UDISE facility exports into a typed,
// joined, derived dataset ready for filtering and aggregation.
// It consolidates parsing, joining, and derivation into a cohesive package
// that handles the complete data lifecycle from file ingestion to snapshot.
//
// # Architecture
//
// The package is organized into four main components:
//
// 1. Parser: Reads CSV and Excel source files into raw string records
// 2. Loader: Joins sources on the school code and types every column
// 3. Derive: Computes infra_score, toilet_functionality_ratio and cwsn_ready
// 4. Cache: Memoizes finished snapshots keyed by a content fingerprint
//
// # Usage
//
// Basic loading example:
//
//	loader := dataprocessing.NewLoader(dataset.DefaultRegistry(), cache, logger)
//	snap, fromCache, err := loader.Load(ctx, []string{"schools.csv", "facilities.csv"}, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Data Flow
//
// The typical data flow through this package:
//
//	Source Files → Parser → RawSource → Loader (join + type) → Derive → Snapshot
//
// # Error Handling
//
// Fatal conditions (missing source file, missing or duplicate join keys) are
// reported through sentinel errors in errors.go so callers can errors.Is on
// them. Recoverable schema problems (unknown columns, unparseable values,
// absent derive inputs) become SchemaWarning entries on the snapshot instead
// of failing the load.
//
// # Testing
//
// The package includes comprehensive tests for all components.
// Use table-driven tests when adding new functionality.
package dataprocessing
