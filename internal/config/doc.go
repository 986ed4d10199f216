// Package config provides centralized configuration management for the school
// infrastructure dashboard. It handles loading configuration from multiple
// sources, validation, and provides a type-safe API for accessing
// configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern UDISE_* for namespacing:
//
//	UDISE_SERVER_PORT=8080
//	UDISE_DATASET_SOURCES=/data/sources/schools.csv,/data/sources/facility.csv
//	UDISE_DATASET_CACHE_TTL=15m
//	UDISE_LOGGING_LEVEL=info
//	UDISE_EXPORT_BOM=true
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	sourcePath := paths.GetSourcePath("schools.csv")
//	exportPath := paths.GetExportPath("schools_export.csv")
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Values are within acceptable ranges
//	- The dataset join key is present
//	- Required directories exist or can be created
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For tests, config.Default() returns a configuration with sensible defaults
// that does not require environment variables or a config file.
package config
