package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// Snapshot is a fully loaded, joined and derived dataset.
type Snapshot struct {
	Table       *dataset.Table
	Fingerprint string
	Sources     []domain.SourceInfo
	Warnings    []domain.SchemaWarning
	LoadedAt    time.Time
}

// Loader reads the configured source files, joins them on the school code
// and attaches the derived columns. Finished snapshots are memoized by
// content fingerprint so reloading unchanged files costs a hash, not a parse.
type Loader struct {
	registry *dataset.Registry
	cache    *SnapshotCache
	logger   *slog.Logger
}

// NewLoader creates a Loader. cache may be nil to disable memoization and
// registry may be nil to use the embedded default.
func NewLoader(registry *dataset.Registry, cache *SnapshotCache, logger *slog.Logger) *Loader {
	if registry == nil {
		registry = dataset.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: registry, cache: cache, logger: logger}
}

// Load builds a snapshot from the given source files. The first file is the
// base of the inner join and its row order survives into the result. force
// bypasses the snapshot cache.
func (l *Loader) Load(ctx context.Context, paths []string, force bool) (*Snapshot, bool, error) {
	if len(paths) == 0 {
		return nil, false, ErrNoSources
	}

	sources, err := StatSources(paths)
	if err != nil {
		return nil, false, err
	}

	fingerprint, err := Fingerprint(paths)
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint sources: %w", err)
	}

	if l.cache != nil && !force {
		if snap, ok := l.cache.Get(fingerprint); ok {
			l.logger.InfoContext(ctx, "dataset served from cache",
				slog.String("fingerprint", shortFingerprint(fingerprint)),
				slog.Int("rows", snap.Table.Rows()))
			return snap, true, nil
		}
	}

	start := time.Now()

	raw := make([]*RawSource, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := ReadSource(path)
			if err != nil {
				return err
			}
			raw[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	merged, warnings, err := l.join(raw)
	if err != nil {
		return nil, false, err
	}

	cols, typeWarnings := typeColumns(merged.header, merged.origins, merged.records, l.registry)
	warnings = append(warnings, typeWarnings...)

	table, err := dataset.NewTable(cols)
	if err != nil {
		return nil, false, fmt.Errorf("assemble table: %w", err)
	}

	for _, rc := range l.registry.Required() {
		if !table.HasColumn(rc.Name) {
			warnings = append(warnings, domain.SchemaWarning{
				Column: rc.Name,
				Reason: "registered column missing from sources",
			})
		}
	}

	table, deriveWarnings, err := ComputeDerived(table)
	if err != nil {
		return nil, false, err
	}
	warnings = append(warnings, deriveWarnings...)

	for _, w := range warnings {
		l.logger.WarnContext(ctx, "schema warning",
			slog.String("column", w.Column),
			slog.String("source", w.Source),
			slog.String("reason", w.Reason))
	}

	snap := &Snapshot{
		Table:       table,
		Fingerprint: fingerprint,
		Sources:     sources,
		Warnings:    warnings,
		LoadedAt:    time.Now().UTC(),
	}
	if l.cache != nil {
		l.cache.Set(fingerprint, snap)
	}

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.Int("sources", len(paths)),
		slog.Int("rows", table.Rows()),
		slog.Int("columns", table.Width()),
		slog.Int("warnings", len(warnings)),
		slog.Duration("duration", time.Since(start)),
		slog.String("fingerprint", shortFingerprint(fingerprint)))
	return snap, false, nil
}

// mergedData is the joined but still untyped dataset.
type mergedData struct {
	header  []string
	origins []string
	records [][]string
}

// join inner-joins the sources on the registry join key. Rows missing from
// any source are dropped, as are rows with an empty key. When two sources
// define the same column the first definition wins and the later one is
// skipped with a warning.
func (l *Loader) join(sources []*RawSource) (*mergedData, []domain.SchemaWarning, error) {
	key := l.registry.JoinKey

	var warnings []domain.SchemaWarning
	for _, src := range sources {
		warnings = append(warnings, src.Warnings...)
	}

	// Every source must carry the key, with no key value appearing twice.
	keyIdx := make([]int, len(sources))
	lookup := make([]map[string]int, len(sources))
	for si, src := range sources {
		idx := indexOf(src.Header, key)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %s has no %q column", ErrMissingJoinKey, src.Name, key)
		}
		keyIdx[si] = idx

		m := make(map[string]int, len(src.Records))
		empty := 0
		for r, rec := range src.Records {
			k := canonicalKey(rec[idx])
			if k == "" {
				empty++
				continue
			}
			if _, dup := m[k]; dup {
				return nil, nil, fmt.Errorf("%w: %q appears twice in %s", ErrDuplicateJoinKey, k, src.Name)
			}
			m[k] = r
		}
		if empty > 0 {
			warnings = append(warnings, domain.SchemaWarning{
				Column: key,
				Source: src.Name,
				Reason: fmt.Sprintf("%d rows with an empty join key dropped", empty),
			})
		}
		lookup[si] = m
	}

	// Column plan: all base columns, then each later source's columns except
	// its key copy and names already defined.
	base := sources[0]
	header := append([]string(nil), base.Header...)
	origins := make([]string, len(header))
	for i := range origins {
		origins[i] = base.Name
	}
	owner := make(map[string]string, len(header))
	for _, name := range base.Header {
		owner[name] = base.Name
	}

	type pick struct{ src, cell int }
	var extra []pick
	for si := 1; si < len(sources); si++ {
		src := sources[si]
		for ci, name := range src.Header {
			if ci == keyIdx[si] {
				continue
			}
			if first, dup := owner[name]; dup {
				warnings = append(warnings, domain.SchemaWarning{
					Column: name,
					Source: src.Name,
					Reason: fmt.Sprintf("column already defined by %s; keeping the first", first),
				})
				continue
			}
			owner[name] = src.Name
			header = append(header, name)
			origins = append(origins, src.Name)
			extra = append(extra, pick{si, ci})
		}
	}

	// Row assembly in base order.
	records := make([][]string, 0, len(base.Records))
	unmatched := 0
	rowRefs := make([]int, len(sources))
	for _, rec := range base.Records {
		k := canonicalKey(rec[keyIdx[0]])
		if k == "" {
			continue
		}
		matched := true
		for si := 1; si < len(sources); si++ {
			r, ok := lookup[si][k]
			if !ok {
				matched = false
				break
			}
			rowRefs[si] = r
		}
		if !matched {
			unmatched++
			continue
		}
		row := make([]string, 0, len(header))
		row = append(row, rec...)
		for _, p := range extra {
			row = append(row, sources[p.src].Records[rowRefs[p.src]][p.cell])
		}
		records = append(records, row)
	}
	if unmatched > 0 {
		l.logger.Info("join dropped rows without a match in every source",
			slog.Int("dropped", unmatched),
			slog.String("base", base.Name))
	}

	return &mergedData{header: header, origins: origins, records: records}, warnings, nil
}

func indexOf(names []string, want string) int {
	for i, name := range names {
		if name == want {
			return i
		}
	}
	return -1
}

// canonicalKey normalizes a join key cell so "101", "101.0" and a
// spreadsheet's numeric rendering of the same code compare equal. Missing
// keys normalize to the empty string.
func canonicalKey(s string) string {
	if missingToken(s) {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return dataset.FormatFloat(f)
	}
	return s
}

// StatSources describes the given source files, failing with
// ErrMissingSource when any of them does not exist.
func StatSources(paths []string) ([]domain.SourceInfo, error) {
	sources := make([]domain.SourceInfo, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrMissingSource, path)
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		sources = append(sources, domain.SourceInfo{
			Path:     path,
			Kind:     sourceKind(path),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
	}
	return sources, nil
}

func sourceKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".xlsx", ".xlsm":
		return "excel"
	default:
		return "unknown"
	}
}
