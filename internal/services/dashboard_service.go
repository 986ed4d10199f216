package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"udisecli/internal/analytics"
	"udisecli/internal/config"
	"udisecli/internal/dataprocessing"
	"udisecli/internal/dataset"
	"udisecli/internal/exporter"
	"udisecli/internal/files"
	"udisecli/internal/filters"
	"udisecli/internal/infrastructure"
	apiv1 "udisecli/pkg/contracts/api/v1"
	"udisecli/pkg/contracts/domain"
	"udisecli/pkg/contracts/events"
)

// WebSocketHub is the broadcast surface the service needs. Implemented by
// the websocket hub; nil disables broadcasting (CLI use).
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
	BroadcastError(code, message string)
}

// snapshot is the published dataset state. It is immutable once stored;
// Reload swaps the whole pointer, so readers can keep using what they
// grabbed while a new one is being built.
type snapshot struct {
	table   *dataset.Table
	catalog []domain.CatalogEntry
	summary domain.DatasetSummary
}

// DashboardService owns the single in-memory dataset snapshot and answers
// every dashboard operation against it. Queries and exports are read-only
// and may run concurrently; Reload is the only writer.
type DashboardService struct {
	config    *config.Config
	paths     *config.Paths
	registry  *dataset.Registry
	loader    *dataprocessing.Loader
	discovery *files.Discovery
	hub       WebSocketHub
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger

	mu   sync.RWMutex
	snap *snapshot

	// reloadMu serializes reloads; concurrent attempts conflict instead
	// of queueing.
	reloadMu sync.Mutex
}

// NewDashboardService creates a dashboard service. hub and metrics may be
// nil; broadcasting and business metrics are then disabled.
func NewDashboardService(cfg *config.Config, hub WebSocketHub, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*DashboardService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}

	var cache *dataprocessing.SnapshotCache
	if cfg.Dataset.CacheEnabled {
		cache = dataprocessing.NewSnapshotCache(cfg.Dataset.CacheTTL)
	}

	logger.Info("DashboardService initialized",
		slog.String("sources_dir", paths.SourcesDir),
		slog.Int("configured_sources", len(cfg.Dataset.Sources)),
		slog.Bool("cache_enabled", cfg.Dataset.CacheEnabled))

	registry := dataset.DefaultRegistry()
	return &DashboardService{
		config:    cfg,
		paths:     paths,
		registry:  registry,
		loader:    dataprocessing.NewLoader(registry, cache, logger),
		discovery: files.NewDiscovery(paths.SourcesDir),
		hub:       hub,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}, nil
}

// Loaded reports whether a snapshot has been published.
func (s *DashboardService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Summary returns the summary of the current snapshot.
func (s *DashboardService) Summary(ctx context.Context) (domain.DatasetSummary, error) {
	snap, err := s.current()
	if err != nil {
		return domain.DatasetSummary{}, err
	}
	return snap.summary, nil
}

// Catalog returns the filterable column catalog of the current snapshot.
func (s *DashboardService) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.catalog, nil
}

// Sources describes the source files the next load would read. It works
// before the first load so clients can see what is available.
func (s *DashboardService) Sources(ctx context.Context) ([]domain.SourceInfo, error) {
	paths, err := s.resolveSources()
	if err != nil {
		return nil, err
	}
	return dataprocessing.StatSources(paths)
}

// Reload rebuilds the snapshot from the current sources and publishes it.
// force bypasses the fingerprint cache. Only one reload runs at a time;
// a second concurrent attempt fails with ErrReloadInProgress.
func (s *DashboardService) Reload(ctx context.Context, force bool) (domain.DatasetSummary, error) {
	if !s.reloadMu.TryLock() {
		return domain.DatasetSummary{}, ErrReloadInProgress
	}
	defer s.reloadMu.Unlock()

	trigger := "reload"
	if !s.Loaded() {
		trigger = "initial"
	}

	paths, err := s.resolveSources()
	if err != nil {
		return domain.DatasetSummary{}, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, config.DatasetLoadTimeout)
	defer cancel()

	start := time.Now()
	snap, fromCache, err := s.loader.Load(loadCtx, paths, force)

	var rows int64
	if snap != nil {
		rows = int64(snap.Table.Rows())
	}
	infrastructure.RecordDatasetLoadMetrics(ctx, s.metrics, trigger, rows, time.Since(start), err)
	if err != nil {
		if s.hub != nil {
			s.hub.BroadcastError("RELOAD_FAILED", "Dataset reload failed, the previous snapshot is still live")
		}
		return domain.DatasetSummary{}, err
	}
	infrastructure.RecordCacheAccess(ctx, s.metrics, fromCache)

	summary := s.publish(snap, fromCache)

	s.logger.InfoContext(ctx, "dataset snapshot published",
		slog.String("snapshot_id", summary.SnapshotID),
		slog.String("trigger", trigger),
		slog.Int("rows", summary.Rows),
		slog.Int("columns", len(summary.Columns)),
		slog.Bool("from_cache", fromCache),
		slog.Bool("forced", force))
	return summary, nil
}

// Query applies the request's filter state and computes KPIs, aggregates
// and the optional preview over the resulting view.
func (s *DashboardService) Query(ctx context.Context, req *apiv1.QueryRequest) (*domain.QueryResult, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := validateFilterState(req.Filters); err != nil {
		return nil, err
	}

	start := time.Now()
	view, skipped := filters.Apply(snap.table, req.Filters)

	result := &domain.QueryResult{
		Rows:       view.Len(),
		KPIs:       analytics.BuildKPIs(view, s.registry),
		Aggregates: analytics.BuildAggregates(view, s.registry),
		Skipped:    skipped,
	}
	if req.Preview {
		result.Preview = analytics.BuildPreview(view, s.previewLimit(req.PreviewLimit))
	}

	infrastructure.RecordQueryMetrics(ctx, s.metrics, time.Since(start), int64(view.Len()), nil)

	s.logger.InfoContext(ctx, "query executed",
		slog.Int("predicates", len(req.Filters)),
		slog.Int("rows", view.Len()),
		slog.Int("skipped", len(skipped)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// Export streams the filtered view to w as CSV and returns the number of
// data records written.
func (s *DashboardService) Export(ctx context.Context, state domain.FilterState, w io.Writer) (int, error) {
	snap, err := s.current()
	if err != nil {
		return 0, err
	}
	if err := validateFilterState(state); err != nil {
		return 0, err
	}

	start := time.Now()
	view, skipped := filters.Apply(snap.table, state)

	cw := &countingWriter{w: w}
	rows, err := exporter.WriteView(cw, view, exporter.WriteOptions{BOM: s.config.Export.BOM})
	infrastructure.RecordExportMetrics(ctx, s.metrics, cw.n, time.Since(start), err)
	if err != nil {
		return rows, fmt.Errorf("write export: %w", err)
	}

	s.logger.InfoContext(ctx, "view exported",
		slog.Int("rows", rows),
		slog.Int64("bytes", cw.n),
		slog.Int("skipped", len(skipped)),
		slog.Duration("duration", time.Since(start)))
	return rows, nil
}

// ExportFilename returns the attachment filename for an export. A client
// supplied name is used as-is apart from ensuring the .csv extension;
// otherwise the configured prefix plus a UTC timestamp.
func (s *DashboardService) ExportFilename(requested string) string {
	if requested != "" {
		if !strings.HasSuffix(strings.ToLower(requested), ".csv") {
			requested += ".csv"
		}
		return requested
	}
	return fmt.Sprintf("%s_%s.csv", s.config.Export.FilenamePrefix, time.Now().UTC().Format("20060102_150405"))
}

// current returns the published snapshot, or ErrDatasetNotLoaded. The
// snapshot is immutable, so using it after the lock is released is safe.
func (s *DashboardService) current() (*snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrDatasetNotLoaded
	}
	return s.snap, nil
}

// publish builds the derived snapshot state and swaps it in, then tells
// connected clients to refetch.
func (s *DashboardService) publish(snap *dataprocessing.Snapshot, fromCache bool) domain.DatasetSummary {
	sources := make([]string, len(snap.Sources))
	for i, src := range snap.Sources {
		sources[i] = src.Path
	}

	summary := domain.DatasetSummary{
		SnapshotID:  uuid.New().String(),
		Sources:     sources,
		Fingerprint: snap.Fingerprint,
		Rows:        snap.Table.Rows(),
		Columns:     columnInfos(snap.Table, s.registry),
		Warnings:    snap.Warnings,
		LoadedAt:    snap.LoadedAt,
		FromCache:   fromCache,
	}

	s.mu.Lock()
	s.snap = &snapshot{
		table:   snap.Table,
		catalog: filters.BuildCatalog(snap.Table, s.registry),
		summary: summary,
	}
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Broadcast(events.TypeDatasetReloaded, summary)
	}
	return summary
}

// resolveSources returns the source file paths for the next load. Explicit
// config entries win; otherwise CSV and Excel files discovered under the
// sources directory are used in name order.
func (s *DashboardService) resolveSources() ([]string, error) {
	if configured := s.config.Dataset.Sources; len(configured) > 0 {
		resolved := make([]string, len(configured))
		for i, src := range configured {
			if filepath.IsAbs(src) {
				resolved[i] = src
			} else {
				resolved[i] = filepath.Join(s.paths.SourcesDir, src)
			}
		}
		return resolved, nil
	}

	found, err := s.discovery.FindSourceFiles(s.paths.SourcesDir)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}
	if len(found) == 0 {
		return nil, ErrNoSources
	}

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.Path
	}
	return paths, nil
}

// previewLimit clamps the requested preview size to the configured default
// and hard cap.
func (s *DashboardService) previewLimit(requested int) int {
	if requested <= 0 {
		if s.config.Dataset.PreviewLimit > 0 {
			return s.config.Dataset.PreviewLimit
		}
		return config.DefaultPreviewLimit
	}
	if requested > config.MaxPreviewLimit {
		return config.MaxPreviewLimit
	}
	return requested
}

// validateFilterState rejects structurally invalid predicates before the
// engine sees them. Unknown columns are not checked here; the engine skips
// and reports those.
func validateFilterState(state domain.FilterState) error {
	var fields map[string]string
	for col, pred := range state {
		if err := pred.Validate(); err != nil {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields[col] = err.Error()
		}
	}
	if fields != nil {
		return &FilterStateError{Fields: fields}
	}
	return nil
}

// columnInfos describes every table column, falling back to the raw name
// and the unknown role for columns outside the registry.
func columnInfos(t *dataset.Table, reg *dataset.Registry) []domain.ColumnInfo {
	infos := make([]domain.ColumnInfo, 0, t.Width())
	for i := 0; i < t.Width(); i++ {
		col := t.Column(i)
		info := domain.ColumnInfo{
			Name:  col.Name(),
			Label: col.Name(),
			Kind:  domain.ColumnKind(col.Kind().String()),
			Role:  domain.RoleUnknown,
		}
		if rc, ok := reg.Lookup(col.Name()); ok {
			info.Label = rc.Label
			info.Role = rc.ColumnRole()
			info.Derived = info.Role == domain.RoleDerived
		}
		infos = append(infos, info)
	}
	return infos
}

// countingWriter tracks bytes written through it for export metrics.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
