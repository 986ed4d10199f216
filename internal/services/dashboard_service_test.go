package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"udisecli/internal/config"
	apiv1 "udisecli/pkg/contracts/api/v1"
	"udisecli/pkg/contracts/domain"
)

// Two survey extracts joined on school_code. Derived columns come out as
// infra_score 4/0/2, toilet ratio 1.0/0.5/1.0 and cwsn_ready 1/0/1.
const schoolsCSV = `school_code,district,school_type,building_status,electricity_availability,internet,total_class_rooms
101,NORTH,Co-Ed,Government,1,1,10
102,SOUTH,Girls,Rented,2,2,6
103,NORTH,Co-Ed,Government,1,2,8
`

const facilitiesCSV = `school_code,library_availability,playground_available,availability_ramps,func_boys_cwsn_friendly,func_girls_cwsn_friendly,total_boys_toilet,total_girls_toilet,total_boys_func_toilet,total_girls_func_toilet
101,1,1,1,1,0,2,2,2,2
102,2,2,2,0,0,2,2,1,1
103,1,2,1,0,1,1,1,1,1
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newTestDashboardService builds a service over fresh fixture files. The
// config points at the fixtures with absolute paths so the executable
// relative sources directory never comes into play.
func newTestDashboardService(t *testing.T, hub WebSocketHub, mutate func(*config.Config)) *DashboardService {
	t.Helper()
	dir := t.TempDir()
	schools := writeSourceFile(t, dir, "schools.csv", schoolsCSV)
	facilities := writeSourceFile(t, dir, "facilities.csv", facilitiesCSV)

	cfg := config.Default()
	cfg.Dataset.Sources = []string{schools, facilities}
	cfg.Dataset.CacheEnabled = false
	if mutate != nil {
		mutate(cfg)
	}

	svc, err := NewDashboardService(cfg, hub, nil, discardLogger())
	require.NoError(t, err)
	return svc
}

func reload(t *testing.T, svc *DashboardService) domain.DatasetSummary {
	t.Helper()
	summary, err := svc.Reload(context.Background(), false)
	require.NoError(t, err)
	return summary
}

func findFlag(t *testing.T, flags []domain.FlagShare, column string) domain.FlagShare {
	t.Helper()
	for _, f := range flags {
		if f.Column == column {
			return f
		}
	}
	t.Fatalf("flag %q not in KPI report", column)
	return domain.FlagShare{}
}

func TestDashboardServiceRequiresSnapshot(t *testing.T) {
	svc := newTestDashboardService(t, nil, nil)
	ctx := context.Background()

	assert.False(t, svc.Loaded())

	_, err := svc.Summary(ctx)
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = svc.Catalog(ctx)
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = svc.Query(ctx, &apiv1.QueryRequest{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = svc.Export(ctx, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
}

func TestDashboardServiceReloadPublishesSnapshot(t *testing.T) {
	hub := new(MockWebSocketHub)
	var broadcast domain.DatasetSummary
	hub.On("Broadcast", "dataset:reloaded", mock.Anything).Run(func(args mock.Arguments) {
		broadcast = args.Get(1).(domain.DatasetSummary)
	}).Return()

	svc := newTestDashboardService(t, hub, nil)
	summary := reload(t, svc)

	assert.True(t, svc.Loaded())
	assert.NotEmpty(t, summary.SnapshotID)
	assert.NotEmpty(t, summary.Fingerprint)
	assert.Equal(t, 3, summary.Rows)
	assert.False(t, summary.FromCache)
	assert.False(t, summary.LoadedAt.IsZero())
	require.Len(t, summary.Sources, 2)
	assert.Equal(t, "schools.csv", filepath.Base(summary.Sources[0]))

	// Column descriptions carry registry labels and flag derived columns.
	byName := make(map[string]domain.ColumnInfo, len(summary.Columns))
	for _, col := range summary.Columns {
		byName[col.Name] = col
	}
	require.Contains(t, byName, "infra_score")
	assert.Equal(t, "Infra Score", byName["infra_score"].Label)
	assert.True(t, byName["infra_score"].Derived)
	assert.Equal(t, domain.RoleDerived, byName["infra_score"].Role)
	require.Contains(t, byName, "district")
	assert.Equal(t, "District", byName["district"].Label)
	assert.False(t, byName["district"].Derived)

	// Clients are told to refetch with the same summary Reload returned.
	hub.AssertExpectations(t)
	assert.Equal(t, summary.SnapshotID, broadcast.SnapshotID)
	assert.Equal(t, summary.Rows, broadcast.Rows)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.SnapshotID, got.SnapshotID)

	catalog, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, catalog)
	var district *domain.CatalogEntry
	for i := range catalog {
		if catalog[i].Column == "district" {
			district = &catalog[i]
		}
	}
	require.NotNil(t, district, "district should be filterable")
	assert.Equal(t, domain.PredicateMembership, district.Predicate)
	require.Len(t, district.Values, 2)
	assert.Equal(t, "NORTH", district.Values[0].Value)
	assert.Equal(t, 2, district.Values[0].Count)
}

func TestDashboardServiceReloadUsesCache(t *testing.T) {
	svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
		cfg.Dataset.CacheEnabled = true
	})
	ctx := context.Background()

	first, err := svc.Reload(ctx, false)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := svc.Reload(ctx, false)
	require.NoError(t, err)
	assert.True(t, second.FromCache, "unchanged sources should hit the fingerprint cache")
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID, "every publish gets its own snapshot id")
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	forced, err := svc.Reload(ctx, true)
	require.NoError(t, err)
	assert.False(t, forced.FromCache, "force must bypass the cache")
}

func TestDashboardServiceReloadConflict(t *testing.T) {
	svc := newTestDashboardService(t, nil, nil)

	svc.reloadMu.Lock()
	defer svc.reloadMu.Unlock()

	_, err := svc.Reload(context.Background(), false)
	assert.ErrorIs(t, err, ErrReloadInProgress)
}

func TestDashboardServiceReloadFailureBroadcast(t *testing.T) {
	hub := new(MockWebSocketHub)
	hub.On("BroadcastError", "RELOAD_FAILED", mock.Anything).Return()

	svc := newTestDashboardService(t, hub, func(cfg *config.Config) {
		cfg.Dataset.Sources = []string{filepath.Join(t.TempDir(), "missing.csv")}
	})

	_, err := svc.Reload(context.Background(), false)
	require.Error(t, err)
	assert.False(t, svc.Loaded(), "a failed reload must not publish a snapshot")
	hub.AssertExpectations(t)
}

func TestDashboardServiceQuery(t *testing.T) {
	svc := newTestDashboardService(t, nil, nil)
	reload(t, svc)
	ctx := context.Background()

	t.Run("membership filter", func(t *testing.T) {
		result, err := svc.Query(ctx, &apiv1.QueryRequest{
			Filters: domain.FilterState{"district": {In: []string{"NORTH"}}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Rows)
		assert.Equal(t, 2, result.KPIs.TotalSchools)
		assert.Empty(t, result.Skipped)
		assert.Nil(t, result.Preview)

		elec := findFlag(t, result.KPIs.Flags, "electricity_availability")
		require.True(t, elec.Pct.Valid)
		assert.Equal(t, 100.0, elec.Pct.Value)

		internet := findFlag(t, result.KPIs.Flags, "internet")
		require.True(t, internet.Pct.Valid)
		assert.Equal(t, 50.0, internet.Pct.Value)

		require.True(t, result.KPIs.AvgClassrooms.Valid)
		assert.Equal(t, 9.0, result.KPIs.AvgClassrooms.Value)
	})

	t.Run("unknown column is skipped not rejected", func(t *testing.T) {
		one := 1.0
		result, err := svc.Query(ctx, &apiv1.QueryRequest{
			Filters: domain.FilterState{"no_such_column": {Eq: &one}},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Rows)
		assert.Equal(t, []string{"no_such_column"}, result.Skipped)
	})

	t.Run("empty membership selects nothing", func(t *testing.T) {
		result, err := svc.Query(ctx, &apiv1.QueryRequest{
			Filters: domain.FilterState{"district": {In: []string{}}},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Rows)
		assert.Equal(t, 0, result.KPIs.TotalSchools)
		assert.False(t, result.KPIs.AvgClassrooms.Valid)
	})

	t.Run("malformed predicate", func(t *testing.T) {
		_, err := svc.Query(ctx, &apiv1.QueryRequest{
			Filters: domain.FilterState{"district": {}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFilterState)

		var ferr *FilterStateError
		require.ErrorAs(t, err, &ferr)
		assert.Contains(t, ferr.Fields, "district")
	})

	t.Run("preview", func(t *testing.T) {
		result, err := svc.Query(ctx, &apiv1.QueryRequest{Preview: true, PreviewLimit: 2})
		require.NoError(t, err)
		require.NotNil(t, result.Preview)
		assert.Equal(t, 3, result.Preview.Total)
		assert.Len(t, result.Preview.Rows, 2)
	})
}

func TestDashboardServicePreviewLimit(t *testing.T) {
	svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
		cfg.Dataset.PreviewLimit = 25
	})

	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{name: "zero takes the configured default", requested: 0, want: 25},
		{name: "negative takes the configured default", requested: -5, want: 25},
		{name: "in range is kept", requested: 3, want: 3},
		{name: "over the cap is clamped", requested: 9999, want: config.MaxPreviewLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.previewLimit(tt.requested))
		})
	}
}

func TestDashboardServiceExport(t *testing.T) {
	svc := newTestDashboardService(t, nil, nil)
	reload(t, svc)
	ctx := context.Background()

	t.Run("full view", func(t *testing.T) {
		var buf bytes.Buffer
		rows, err := svc.Export(ctx, nil, &buf)
		require.NoError(t, err)
		assert.Equal(t, 3, rows)

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "school_code,"), "header comes first without a BOM")
		assert.Contains(t, out, "102")
	})

	t.Run("filtered view", func(t *testing.T) {
		var buf bytes.Buffer
		rows, err := svc.Export(ctx, domain.FilterState{"district": {In: []string{"NORTH"}}}, &buf)
		require.NoError(t, err)
		assert.Equal(t, 2, rows)
		assert.NotContains(t, buf.String(), "102")
	})

	t.Run("malformed predicate", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := svc.Export(ctx, domain.FilterState{"district": {}}, &buf)
		assert.ErrorIs(t, err, ErrInvalidFilterState)
		assert.Zero(t, buf.Len(), "nothing may be written for a rejected request")
	})
}

func TestDashboardServiceExportBOM(t *testing.T) {
	svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
		cfg.Export.BOM = true
	})
	reload(t, svc)

	var buf bytes.Buffer
	_, err := svc.Export(context.Background(), nil, &buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
}

func TestDashboardServiceExportFilename(t *testing.T) {
	svc := newTestDashboardService(t, nil, nil)

	assert.Equal(t, "my_schools.csv", svc.ExportFilename("my_schools"))
	assert.Equal(t, "data.CSV", svc.ExportFilename("data.CSV"))

	generated := svc.ExportFilename("")
	assert.Regexp(t, `^schools_export_\d{8}_\d{6}\.csv$`, generated)
}

func TestDashboardServiceSources(t *testing.T) {
	t.Run("stats configured files before any load", func(t *testing.T) {
		svc := newTestDashboardService(t, nil, nil)
		infos, err := svc.Sources(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "csv", infos[0].Kind)
		assert.Equal(t, "schools.csv", filepath.Base(infos[0].Path))
		assert.Greater(t, infos[0].Size, int64(0))
	})

	t.Run("missing configured file", func(t *testing.T) {
		svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
			cfg.Dataset.Sources = append(cfg.Dataset.Sources, filepath.Join(t.TempDir(), "absent.csv"))
		})
		_, err := svc.Sources(context.Background())
		assert.ErrorIs(t, err, ErrMissingSource)
	})

	t.Run("relative names resolve against the sources dir", func(t *testing.T) {
		svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
			cfg.Dataset.Sources = []string{"schools.csv", "facilities.csv"}
		})
		dir := t.TempDir()
		writeSourceFile(t, dir, "schools.csv", schoolsCSV)
		writeSourceFile(t, dir, "facilities.csv", facilitiesCSV)
		svc.paths.SourcesDir = dir

		infos, err := svc.Sources(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, filepath.Join(dir, "schools.csv"), infos[0].Path)
	})

	t.Run("discovers files when nothing is configured", func(t *testing.T) {
		svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
			cfg.Dataset.Sources = nil
		})
		dir := t.TempDir()
		writeSourceFile(t, dir, "schools.csv", schoolsCSV)
		writeSourceFile(t, dir, "facilities.csv", facilitiesCSV)
		svc.paths.SourcesDir = dir

		infos, err := svc.Sources(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, 2)
		// Discovery is name ordered.
		assert.Equal(t, "facilities.csv", filepath.Base(infos[0].Path))
		assert.Equal(t, "schools.csv", filepath.Base(infos[1].Path))
	})

	t.Run("empty sources dir", func(t *testing.T) {
		svc := newTestDashboardService(t, nil, func(cfg *config.Config) {
			cfg.Dataset.Sources = nil
		})
		svc.paths.SourcesDir = t.TempDir()

		_, err := svc.Sources(context.Background())
		assert.ErrorIs(t, err, ErrNoSources)
	})
}

func TestValidateFilterState(t *testing.T) {
	min := 5.0
	max := 1.0
	state := domain.FilterState{
		"district": {In: []string{"NORTH"}},
		"alpha":    {},
		"beta":     {Range: &domain.NumRange{Min: &min, Max: &max}},
	}

	err := validateFilterState(state)
	require.Error(t, err)

	var ferr *FilterStateError
	require.True(t, errors.As(err, &ferr))
	require.Len(t, ferr.Fields, 2)
	assert.Contains(t, ferr.Fields["alpha"], "exactly one of")
	assert.Contains(t, ferr.Fields["beta"], "min exceeds max")
	assert.Equal(t, "invalid filter state: alpha, beta", err.Error())

	assert.NoError(t, validateFilterState(nil))
	assert.NoError(t, validateFilterState(domain.FilterState{"district": {In: []string{}}}))
}
