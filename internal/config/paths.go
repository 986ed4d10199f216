package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	DataDir       string
	SourcesDir    string
	ExportsDir    string
	CacheDir      string
	LogsDir       string

	// Well-known output files (simplified paths in the exports directory)
	EnrichedCSV        string
	DatasetSummaryJSON string
	CatalogJSON        string
}

// GetPaths returns the application paths relative to the executable location
// All paths are ALWAYS relative to the executable directory, never the current working directory
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	// Get the directory containing the executable
	exeDir := filepath.Dir(exe)

	// All paths are relative to the executable directory.
	// Directory structure:
	// dist/
	//   ├── config.yaml        (optional)
	//   ├── data/
	//   │   ├── sources/       (input CSV/XLSX survey files)
	//   │   ├── exports/       (generated CSV exports and summaries)
	//   │   └── cache/         (temporary files)
	//   └── logs/              (application logs)

	dataDir := filepath.Join(exeDir, "data")
	exportsDir := filepath.Join(dataDir, "exports")

	paths := &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		SourcesDir:    filepath.Join(dataDir, "sources"),
		ExportsDir:    exportsDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		LogsDir:       filepath.Join(exeDir, "logs"),

		// Well-known output files
		EnrichedCSV:        filepath.Join(exportsDir, "enriched_schools.csv"),
		DatasetSummaryJSON: filepath.Join(exportsDir, "dataset_summary.json"),
		CatalogJSON:        filepath.Join(exportsDir, "filter_catalog.json"),
	}

	return paths, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.SourcesDir,
		p.ExportsDir,
		p.CacheDir,
		p.LogsDir,
	}

	// Log directory creation
	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		// Log successful directory creation
		if logger != nil {
			logger.Debug("Ensured directory exists",
				slog.String("directory", dir))
		}
	}

	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetSourcePath returns the path for a dataset source file
func (p *Paths) GetSourcePath(filename string) string {
	return filepath.Join(p.SourcesDir, filename)
}

// GetExportPath returns the path for an export file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// GetEnrichedCSVPath returns the path for the enriched_schools.csv file
func (p *Paths) GetEnrichedCSVPath() string {
	return p.EnrichedCSV
}

// GetDatasetSummaryJSONPath returns the path for the dataset_summary.json file
func (p *Paths) GetDatasetSummaryJSONPath() string {
	return p.DatasetSummaryJSON
}

// GetCatalogJSONPath returns the path for the filter_catalog.json file
func (p *Paths) GetCatalogJSONPath() string {
	return p.CatalogJSON
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution() {
	logger := slog.Default()
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("sources", p.SourcesDir),
			slog.String("exports", p.ExportsDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("output_files",
			slog.String("enriched_csv", p.EnrichedCSV),
			slog.String("dataset_summary_json", p.DatasetSummaryJSON),
			slog.String("filter_catalog_json", p.CatalogJSON),
		))
}
