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

	"gopkg.in/yaml.v2"

	"udisecli/internal/config"
	"udisecli/internal/dataprocessing"
	"udisecli/internal/dataset"
	"udisecli/internal/files"
	"udisecli/internal/filters"
	"udisecli/pkg/contracts/domain"
)

func main() {
	in := flag.String("in", "", "source files (comma separated) or a directory to discover (defaults to data/sources relative to executable)")
	format := flag.String("format", "json", "output format: json | yaml")
	out := flag.String("out", "", "output file path (defaults to stdout)")
	flag.Parse()

	// The catalog goes to stdout, so all logging stays on stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	if *format != "json" && *format != "yaml" {
		logger.Error("Unsupported format", slog.String("format", *format))
		os.Exit(1)
	}

	paths, err := config.GetPaths()
	if err != nil {
		logger.Error("Failed to initialize paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *in == "" {
		*in = paths.SourcesDir
	}

	sources, err := resolveSources(*in)
	if err != nil {
		logger.Error("Failed to resolve sources",
			slog.String("input", *in),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := dataset.DefaultRegistry()
	loader := dataprocessing.NewLoader(registry, nil, logger)

	snap, _, err := loader.Load(context.Background(), sources, true)
	if err != nil {
		logger.Error("Failed to load dataset", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog := filters.BuildCatalog(snap.Table, registry)

	data, err := encodeCatalog(catalog, *format)
	if err != nil {
		logger.Error("Failed to encode catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *out == "" {
		os.Stdout.Write(data)
		return
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Error("Failed to create output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("Failed to write catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Catalog written: %s (%d columns)\n", *out, len(catalog))
}

func encodeCatalog(catalog []domain.CatalogEntry, format string) ([]byte, error) {
	if format == "yaml" {
		return yaml.Marshal(catalog)
	}

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
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
