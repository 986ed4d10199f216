package dataprocessing

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoaderJoinTwoSources(t *testing.T) {
	dir := t.TempDir()
	schools := writeFile(t, dir, "schools.csv",
		"school_code,district,internet\n101,North,1\n102,South,2\n103,East,1\n")
	facilities := writeFile(t, dir, "facilities.csv",
		"school_code,library_availability,district\n103.0,1,Elsewhere\n101,2,Elsewhere\n")

	loader := NewLoader(nil, nil, discardLogger())
	snap, fromCache, err := loader.Load(context.Background(), []string{schools, facilities}, false)
	require.NoError(t, err)
	assert.False(t, fromCache)

	table := snap.Table
	// Inner join keeps 101 and 103, in base file order.
	require.Equal(t, 2, table.Rows())
	code, ok := table.Lookup("school_code")
	require.True(t, ok)
	assert.Equal(t, "101", code.String(0))
	assert.Equal(t, "103", code.String(1))

	lib, ok := table.Lookup("library_availability")
	require.True(t, ok)
	assert.Equal(t, 2.0, requireFloat(t, lib, 0))
	assert.Equal(t, 1.0, requireFloat(t, lib, 1))

	// The colliding district column keeps its base definition.
	district, ok := table.Lookup("district")
	require.True(t, ok)
	assert.Equal(t, "North", district.String(0))

	collision := false
	for _, w := range snap.Warnings {
		if w.Column == "district" && w.Source == "facilities.csv" {
			collision = true
			assert.Contains(t, w.Reason, "schools.csv")
		}
	}
	assert.True(t, collision, "column collision should be reported")

	// Derived columns ride along on every load.
	assert.True(t, table.HasColumn(ColInfraScore))
	assert.True(t, table.HasColumn(ColToiletRatio))
	assert.True(t, table.HasColumn(ColCWSNReady))
}

func TestLoaderJoinsExcelWithCSV(t *testing.T) {
	dir := t.TempDir()
	schools := writeFile(t, dir, "schools.csv",
		"school_code,district\n101,North\n102,South\n")

	xlsxPath := filepath.Join(dir, "facilities.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"school_code", "playground_available"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{102, 1}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{101, 2}))
	require.NoError(t, f.SaveAs(xlsxPath))

	loader := NewLoader(nil, nil, discardLogger())
	snap, _, err := loader.Load(context.Background(), []string{schools, xlsxPath}, false)
	require.NoError(t, err)

	require.Equal(t, 2, snap.Table.Rows())
	play, ok := snap.Table.Lookup("playground_available")
	require.True(t, ok)
	assert.Equal(t, 2.0, requireFloat(t, play, 0))
	assert.Equal(t, 1.0, requireFloat(t, play, 1))

	require.Len(t, snap.Sources, 2)
	assert.Equal(t, "csv", snap.Sources[0].Kind)
	assert.Equal(t, "excel", snap.Sources[1].Kind)
}

func TestLoaderNoSources(t *testing.T) {
	loader := NewLoader(nil, nil, discardLogger())
	_, _, err := loader.Load(context.Background(), nil, false)
	require.ErrorIs(t, err, ErrNoSources)
}

func TestLoaderMissingSource(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(nil, nil, discardLogger())
	_, _, err := loader.Load(context.Background(), []string{filepath.Join(dir, "absent.csv")}, false)
	require.ErrorIs(t, err, ErrMissingSource)
}

func TestLoaderMissingJoinKey(t *testing.T) {
	dir := t.TempDir()
	schools := writeFile(t, dir, "schools.csv", "school_code,district\n101,North\n")
	broken := writeFile(t, dir, "broken.csv", "code,internet\n101,1\n")

	loader := NewLoader(nil, nil, discardLogger())
	_, _, err := loader.Load(context.Background(), []string{schools, broken}, false)
	require.ErrorIs(t, err, ErrMissingJoinKey)
	assert.Contains(t, err.Error(), "broken.csv")
}

func TestLoaderDuplicateJoinKey(t *testing.T) {
	dir := t.TempDir()
	schools := writeFile(t, dir, "schools.csv",
		"school_code,district\n101,North\n101,South\n")

	loader := NewLoader(nil, nil, discardLogger())
	_, _, err := loader.Load(context.Background(), []string{schools}, false)
	require.ErrorIs(t, err, ErrDuplicateJoinKey)
	assert.Contains(t, err.Error(), "101")
}

func TestLoaderEmptyJoinKeyRowsDropped(t *testing.T) {
	dir := t.TempDir()
	schools := writeFile(t, dir, "schools.csv",
		"school_code,district\n101,North\n,Limbo\n102,South\n")

	loader := NewLoader(nil, nil, discardLogger())
	snap, _, err := loader.Load(context.Background(), []string{schools}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Table.Rows())
	dropped := false
	for _, w := range snap.Warnings {
		if w.Column == "school_code" && w.Source == "schools.csv" {
			dropped = true
			assert.Contains(t, w.Reason, "1 rows")
		}
	}
	assert.True(t, dropped, "empty key rows should be reported")
}

func TestLoaderCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schools.csv", "school_code,internet\n101,1\n")

	cache := NewSnapshotCache(time.Minute)
	loader := NewLoader(nil, cache, discardLogger())
	ctx := context.Background()

	first, fromCache, err := loader.Load(ctx, []string{path}, false)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, cache.Len())

	second, fromCache, err := loader.Load(ctx, []string{path}, false)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Same(t, first, second, "unchanged files must serve the memoized snapshot")

	// Changed bytes change the fingerprint and miss the cache.
	writeFile(t, dir, "schools.csv", "school_code,internet\n101,2\n")
	third, fromCache, err := loader.Load(ctx, []string{path}, false)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)

	// force reparses even when the fingerprint is cached.
	fourth, fromCache, err := loader.Load(ctx, []string{path}, true)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.NotSame(t, third, fourth)
}

func TestSnapshotCacheFlush(t *testing.T) {
	cache := NewSnapshotCache(0)
	snap := &Snapshot{Fingerprint: "abc"}

	cache.Set("abc", snap)
	got, ok := cache.Get("abc")
	require.True(t, ok)
	assert.Same(t, snap, got)

	cache.Flush()
	_, ok = cache.Get("abc")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}
