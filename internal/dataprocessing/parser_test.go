package dataprocessing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"udisecli/internal/dataset"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadSourceCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schools.csv",
		"\uFEFFSchool Code,District, Internet \n101,North,1\n102,South\n")

	src, err := ReadSource(path)
	require.NoError(t, err)

	assert.Equal(t, "schools.csv", src.Name)
	assert.Equal(t, []string{"school_code", "district", "internet"}, src.Header)
	require.Len(t, src.Records, 2)
	assert.Equal(t, []string{"101", "North", "1"}, src.Records[0])
	// Short rows are padded to header width.
	assert.Equal(t, []string{"102", "South", ""}, src.Records[1])
	assert.Empty(t, src.Warnings)
}

func TestReadSourceHeaderAnomalies(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "odd.csv",
		"school_code,,district,district\n101,x,North,East\n")

	src, err := ReadSource(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"school_code", "column_2", "district"}, src.Header)
	require.Len(t, src.Records, 1)
	// The duplicate keeps its first cell only.
	assert.Equal(t, []string{"101", "x", "North"}, src.Records[0])

	require.Len(t, src.Warnings, 2)
	assert.Equal(t, "blank header cell", src.Warnings[0].Reason)
	assert.Equal(t, "duplicate column skipped", src.Warnings[1].Reason)
	assert.Equal(t, "odd.csv", src.Warnings[1].Source)
}

func TestReadSourceExcel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facilities.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"school_code", "library_availability"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{101, 1}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{102, 2}))
	require.NoError(t, f.SaveAs(path))

	src, err := ReadSource(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"school_code", "library_availability"}, src.Header)
	require.Len(t, src.Records, 2)
	assert.Equal(t, []string{"101", "1"}, src.Records[0])
	assert.Equal(t, []string{"102", "2"}, src.Records[1])
}

func TestReadSourceUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schools.txt", "school_code\n101\n")

	_, err := ReadSource(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadSourceEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "")

	_, err := ReadSource(path)
	require.ErrorIs(t, err, ErrEmptySource)
}

func TestTypeColumnsRegistryKinds(t *testing.T) {
	header := []string{"school_code", "district", "internet"}
	records := [][]string{
		{"101", "North", "1"},
		{"102", "South", "x"},
		{"103", "", "NA"},
	}

	cols, warnings := typeColumns(header, []string{"a.csv", "a.csv", "a.csv"}, records, dataset.DefaultRegistry())
	require.Len(t, cols, 3)

	// school_code is registered as text even though every cell is a number.
	assert.Equal(t, dataset.KindText, cols[0].Kind())
	assert.Equal(t, "101", cols[0].String(0))

	assert.Equal(t, dataset.KindText, cols[1].Kind())
	assert.True(t, cols[1].IsMissing(2))

	assert.Equal(t, dataset.KindNumeric, cols[2].Kind())
	v, ok := cols[2].Float(0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.True(t, cols[2].IsMissing(1), "unparseable cell becomes missing")
	assert.True(t, cols[2].IsMissing(2), "NA token becomes missing")

	require.Len(t, warnings, 1)
	assert.Equal(t, "internet", warnings[0].Column)
	assert.Equal(t, "a.csv", warnings[0].Source)
	assert.Contains(t, warnings[0].Reason, "1 non-numeric")
}

func TestTypeColumnsInference(t *testing.T) {
	header := []string{"mystery_measure", "mystery_label"}
	records := [][]string{
		{"1", "alpha"},
		{"2", "beta"},
		{"3", "7"},
		{"4", "delta"},
		{"oops", "epsilon"},
	}

	cols, _ := typeColumns(header, nil, records, dataset.DefaultRegistry())
	require.Len(t, cols, 2)

	// Four of five non-missing values parse, right at the 80% bar.
	assert.Equal(t, dataset.KindNumeric, cols[0].Kind())
	assert.True(t, cols[0].IsMissing(4))

	assert.Equal(t, dataset.KindText, cols[1].Kind())
	assert.Equal(t, "7", cols[1].String(2))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"School Code", "school_code"},
		{"  Total   Class Rooms ", "total_class_rooms"},
		{"internet", "internet"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeName(tt.in), "normalizeName(%q)", tt.in)
	}
}
