//go:build example
// +build example

package config

import (
	"log/slog"
	"os"
)

// ExampleUsage demonstrates how to use the paths package throughout the application
func ExampleUsage() {
	// Always get paths from the centralized GetPaths() function
	paths, err := GetPaths()
	if err != nil {
		slog.Error("Failed to get paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure all directories exist at startup
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to ensure directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log all resolved paths for debugging
	paths.LogPathResolution()

	// Example 1: Loader reading a survey source
	sourcePath := paths.GetSourcePath("schools.csv")
	slog.Info("Source file resolved", slog.String("path", sourcePath))

	// Example 2: Enrichment pipeline writing its output
	enrichedCSV := paths.GetEnrichedCSVPath()
	slog.Info("Enriched CSV will be written", slog.String("path", enrichedCSV))

	// Example 3: Catalog inspection output
	catalogJSON := paths.GetCatalogJSONPath()
	slog.Info("Filter catalog JSON resolved", slog.String("path", catalogJSON))

	// Example 4: Ad-hoc export and cache files
	exportPath := paths.GetExportPath("schools_export.csv")
	cachePath := paths.GetCachePath("snapshot.tmp")
	slog.Info("Export path resolved", slog.String("path", exportPath))
	slog.Info("Cache path resolved", slog.String("path", cachePath))
}

// Migration Guide:
//
// OLD CODE (problematic):
//   sourcePath := filepath.Join(os.Getwd(), "data/sources/schools.csv")
//
// NEW CODE (correct):
//   paths, _ := config.GetPaths()
//   sourcePath := paths.GetSourcePath("schools.csv")
//
// Benefits:
// 1. All paths relative to executable, not working directory
// 2. Consistent across all components
// 3. Cross-platform path handling
