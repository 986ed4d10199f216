// Package files provides discovery utilities for dataset source files.
//
// Discovery finds dataset source files (CSV and Excel), files matching
// specific patterns, and the most recently modified file in a directory.
// Source discovery sorts results by name so that downstream consumers see
// a stable order.
//
// Example usage:
//
//	// Create a discovery instance
//	discovery := files.NewDiscovery("/path/to/base")
//
//	// Find all dataset source files
//	sources, err := discovery.FindSourceFiles("sources")
package files
