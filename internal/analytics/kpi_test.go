package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

func mustTable(t *testing.T, cols ...*dataset.Column) *dataset.Table {
	t.Helper()
	table, err := dataset.NewTable(cols)
	require.NoError(t, err)
	return table
}

func numCol(name string, vals []float64, missing ...int) *dataset.Column {
	ok := make([]bool, len(vals))
	for i := range ok {
		ok[i] = true
	}
	for _, i := range missing {
		ok[i] = false
	}
	return dataset.NewNumericColumn(name, vals, ok)
}

func flagByColumn(t *testing.T, flags []domain.FlagShare, column string) domain.FlagShare {
	t.Helper()
	for _, f := range flags {
		if f.Column == column {
			return f
		}
	}
	t.Fatalf("no flag share for %s", column)
	return domain.FlagShare{}
}

func TestBuildKPIs(t *testing.T) {
	table := mustTable(t,
		numCol("electricity_availability", []float64{1, 1, 1}),
		numCol("internet", []float64{1, 2, 0}, 2),
		numCol("playground_available", []float64{2, 2, 2}),
		numCol("total_class_rooms", []float64{4, 6, 0}, 2),
	)
	view := dataset.AllRows(table)

	report := BuildKPIs(view, dataset.DefaultRegistry())

	assert.Equal(t, 3, report.TotalSchools)
	require.Len(t, report.Flags, 4)

	electricity := flagByColumn(t, report.Flags, "electricity_availability")
	assert.Equal(t, 100.0, electricity.Pct.Value)

	// One of three schools online; the school with a missing cell counts
	// against the share.
	internet := flagByColumn(t, report.Flags, "internet")
	require.True(t, internet.Pct.Valid)
	assert.Equal(t, 33.3, internet.Pct.Value)

	// Nobody has a playground: a real zero, not no-data.
	playground := flagByColumn(t, report.Flags, "playground_available")
	require.True(t, playground.Pct.Valid)
	assert.Equal(t, 0.0, playground.Pct.Value)

	// The library column is not in this table at all.
	library := flagByColumn(t, report.Flags, "library_availability")
	assert.False(t, library.Pct.Valid)

	require.True(t, report.AvgClassrooms.Valid)
	assert.Equal(t, 5.0, report.AvgClassrooms.Value)
}

func TestBuildKPIsEmptyView(t *testing.T) {
	table := mustTable(t,
		numCol("internet", []float64{1, 2}),
		numCol("total_class_rooms", []float64{4, 6}),
	)
	view := dataset.EmptyView(table)

	report := BuildKPIs(view, dataset.DefaultRegistry())

	assert.Equal(t, 0, report.TotalSchools)
	for _, f := range report.Flags {
		assert.False(t, f.Pct.Valid, "%s must be no-data on an empty view", f.Column)
	}
	assert.False(t, report.AvgClassrooms.Valid)

	// The wire form carries explicit nulls, never fabricated zeros.
	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"avg_classrooms":null`)
	assert.Contains(t, string(raw), `"pct":null`)
}

func TestBuildKPIsOnlyPositiveCodeCounts(t *testing.T) {
	// UDISE electricity code 3 means "yes, but not functional", so a
	// school reporting it has electricity on paper and not in practice.
	table := mustTable(t, numCol("electricity_availability", []float64{1, 2, 3}))

	report := BuildKPIs(dataset.AllRows(table), dataset.DefaultRegistry())

	electricity := flagByColumn(t, report.Flags, "electricity_availability")
	require.True(t, electricity.Pct.Valid)
	assert.Equal(t, 33.3, electricity.Pct.Value)
}

func TestBuildKPIsRoundsHalfAwayFromZero(t *testing.T) {
	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = 2
	}
	vals[0] = 1
	table := mustTable(t, numCol("internet", vals))

	report := BuildKPIs(dataset.AllRows(table), dataset.DefaultRegistry())

	// 1/16 is 6.25%, which rounds up to 6.3, not banker's 6.2.
	internet := flagByColumn(t, report.Flags, "internet")
	assert.Equal(t, 6.3, internet.Pct.Value)
}

func TestMeanSkipsMissingOnly(t *testing.T) {
	table := mustTable(t,
		numCol("total_class_rooms", []float64{3, 0, 0}, 1, 2),
	)

	report := BuildKPIs(dataset.AllRows(table), dataset.DefaultRegistry())
	require.True(t, report.AvgClassrooms.Valid)
	assert.Equal(t, 3.0, report.AvgClassrooms.Value)

	allMissing := mustTable(t,
		numCol("total_class_rooms", []float64{0, 0}, 0, 1),
	)
	report = BuildKPIs(dataset.AllRows(allMissing), dataset.DefaultRegistry())
	assert.False(t, report.AvgClassrooms.Valid)
}
