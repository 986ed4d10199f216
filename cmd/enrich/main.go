package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"udisecli/internal/config"
	"udisecli/internal/dataprocessing"
	"udisecli/internal/dataset"
	"udisecli/internal/exporter"
	"udisecli/internal/files"
	"udisecli/internal/infrastructure"
	"udisecli/pkg/contracts/domain"
)

func main() {
	in := flag.String("in", "", "source files (comma separated) or a directory to discover (defaults to data/sources relative to executable)")
	out := flag.String("out", "", "output csv file path (defaults to data/exports/enriched_schools.csv)")
	summary := flag.String("summary", "", "optional path for a JSON load summary")
	bom := flag.Bool("bom", false, "prefix the CSV with a UTF-8 byte order mark")
	flag.Parse()

	// Initialize paths first to get default locations
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	if *in == "" {
		*in = paths.SourcesDir
	}
	if *out == "" {
		*out = paths.EnrichedCSV
	}

	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = &config.Config{
			Logging: config.LoggingConfig{
				Level:       "info",
				Format:      "json",
				Output:      "both",
				FilePath:    paths.GetLogPath("enrich.log"),
				Development: false,
			},
		}
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Starting dataset enrichment",
		slog.String("input", *in),
		slog.String("output_file", *out),
		slog.String("executable_dir", paths.ExecutableDir))

	sources, err := resolveSources(*in)
	if err != nil {
		logger.Error("Failed to resolve sources",
			slog.String("input", *in),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Found %d source files\n", len(sources))
	for _, src := range sources {
		logger.Info("Source file", slog.String("path", src))
	}

	// No cache; an offline run always reads the files as they are now
	loader := dataprocessing.NewLoader(nil, nil, logger)

	snap, _, err := loader.Load(context.Background(), sources, true)
	if err != nil {
		logger.Error("Failed to load dataset", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, w := range snap.Warnings {
		logger.Warn("Schema warning",
			slog.String("column", w.Column),
			slog.String("source", w.Source),
			slog.String("reason", w.Reason))
	}

	rows, err := exporter.WriteViewFile(*out, dataset.AllRows(snap.Table), exporter.WriteOptions{BOM: *bom})
	if err != nil {
		logger.Error("Failed to write enriched CSV",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *summary != "" {
		if err := writeSummary(*summary, snap, rows); err != nil {
			logger.Error("Failed to write summary",
				slog.String("path", *summary),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Summary written", slog.String("path", *summary))
	}

	logger.Info("Enrichment completed",
		slog.Int("rows", rows),
		slog.Int("columns", snap.Table.Width()),
		slog.Int("warnings", len(snap.Warnings)),
		slog.String("fingerprint", snap.Fingerprint),
		slog.String("output_path", *out))

	fmt.Printf("Enrichment complete: %d rows, %d columns\n", rows, snap.Table.Width())
}

// resolveSources interprets -in as either a directory to discover or a
// comma separated list of files.
func resolveSources(in string) ([]string, error) {
	if info, err := os.Stat(in); err == nil && info.IsDir() {
		discovery := files.NewDiscovery(in)
		found, err := discovery.FindSourceFiles(in)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no source files in %s", in)
		}
		paths := make([]string, len(found))
		for i, f := range found {
			paths[i] = f.Path
		}
		return paths, nil
	}

	var paths []string
	for _, part := range strings.Split(in, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		paths = append(paths, part)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no source files given")
	}
	return paths, nil
}

// writeSummary records what the load produced, in the same shape the
// dashboard's dataset endpoint reports.
func writeSummary(path string, snap *dataprocessing.Snapshot, rows int) error {
	out := struct {
		Sources     []domain.SourceInfo    `json:"sources"`
		Fingerprint string                 `json:"fingerprint"`
		Rows        int                    `json:"rows"`
		Columns     []string               `json:"columns"`
		Warnings    []domain.SchemaWarning `json:"warnings,omitempty"`
		LoadedAt    time.Time              `json:"loaded_at"`
	}{
		Sources:     snap.Sources,
		Fingerprint: snap.Fingerprint,
		Rows:        rows,
		Columns:     snap.Table.ColumnNames(),
		Warnings:    snap.Warnings,
		LoadedAt:    snap.LoadedAt,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
