package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"udisecli/internal/dataset"
)

// WriteOptions configures CSV serialization.
type WriteOptions struct {
	// BOM prefixes the stream with a UTF-8 byte order mark so spreadsheet
	// tools detect the encoding.
	BOM bool
}

// WriteView streams the view to w as RFC 4180 CSV and returns the number of
// data records written, excluding the header.
func WriteView(w io.Writer, view *dataset.View, opts WriteOptions) (int, error) {
	if opts.BOM {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return 0, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	t := view.Table()
	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, t.Width())
	for i := 0; i < view.Len(); i++ {
		row := view.Row(i)
		for c := 0; c < t.Width(); c++ {
			record[c] = t.Column(c).String(row)
		}
		if err := writer.Write(record); err != nil {
			return i, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return view.Len(), err
	}
	return view.Len(), nil
}

// WriteViewFile writes the view to a file, creating parent directories as
// needed. The write goes to the final path directly; callers that need
// atomic replacement should export to a temporary name and rename.
func WriteViewFile(path string, view *dataset.View, opts WriteOptions) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	rows, err := WriteView(file, view, opts)
	if err != nil {
		file.Close()
		return rows, err
	}
	if err := file.Close(); err != nil {
		return rows, err
	}

	slog.Info("view exported",
		slog.String("path", path),
		slog.Int("rows", rows),
		slog.Int("columns", view.Table().Width()))
	return rows, nil
}
