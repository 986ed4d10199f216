package filters

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

// fixtureTable is six schools with a few deliberately missing cells.
func fixtureTable(t *testing.T) *dataset.Table {
	t.Helper()
	return mustTable(t,
		dataset.NewTextColumn("school_code", []string{"101", "102", "103", "104", "105", "106"}),
		dataset.NewTextColumn("district", []string{"North", "South", "North", "", "East", "North"}),
		numCol("internet", []float64{1, 2, 0, 1, 1, 2}, 2),
		numCol("total_class_rooms", []float64{4, 8, 12, 0, 6, 3}, 3),
		dataset.NewTextColumn("notes", []string{"x", "", "", "", "", ""}),
	)
}

func selectedCodes(t *testing.T, view *dataset.View) []string {
	t.Helper()
	col, ok := view.Table().Lookup("school_code")
	require.True(t, ok)
	codes := make([]string, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		codes = append(codes, col.String(view.Row(i)))
	}
	return codes
}

func f64(v float64) *float64 { return &v }

func TestApplyEmptyState(t *testing.T) {
	table := fixtureTable(t)

	view, skipped := Apply(table, nil)
	assert.Equal(t, table.Rows(), view.Len())
	assert.Empty(t, skipped)

	view, skipped = Apply(table, domain.FilterState{})
	assert.Equal(t, table.Rows(), view.Len())
	assert.Empty(t, skipped)
}

func TestApplyMembership(t *testing.T) {
	table := fixtureTable(t)

	view, _ := Apply(table, domain.FilterState{
		"district": {In: []string{"North"}},
	})
	assert.Equal(t, []string{"101", "103", "106"}, selectedCodes(t, view))

	// A row with a missing district never matches, however wide the selection.
	view, _ = Apply(table, domain.FilterState{
		"district": {In: []string{"North", "South", "East"}},
	})
	assert.Equal(t, 5, view.Len())
}

func TestApplyEmptyInSelectsNothing(t *testing.T) {
	table := fixtureTable(t)

	view, skipped := Apply(table, domain.FilterState{
		"district": {In: []string{}},
	})
	assert.Equal(t, 0, view.Len())
	assert.Empty(t, skipped)
}

func TestApplyEquality(t *testing.T) {
	table := fixtureTable(t)

	view, _ := Apply(table, domain.FilterState{
		"internet": {Eq: f64(1)},
	})
	assert.Equal(t, []string{"101", "104", "105"}, selectedCodes(t, view))

	view, _ = Apply(table, domain.FilterState{
		"internet": {Eq: f64(2)},
	})
	assert.Equal(t, []string{"102", "106"}, selectedCodes(t, view))
}

func TestApplyRange(t *testing.T) {
	table := fixtureTable(t)

	tests := []struct {
		name string
		rng  domain.NumRange
		want []string
	}{
		{"both bounds inclusive", domain.NumRange{Min: f64(4), Max: f64(8)}, []string{"101", "102", "105"}},
		{"min only", domain.NumRange{Min: f64(6)}, []string{"102", "103", "105"}},
		{"max only", domain.NumRange{Max: f64(4)}, []string{"101", "106"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := tt.rng
			view, _ := Apply(table, domain.FilterState{
				"total_class_rooms": {Range: &rng},
			})
			assert.Equal(t, tt.want, selectedCodes(t, view))
		})
	}
}

func TestApplyConjunction(t *testing.T) {
	table := fixtureTable(t)

	view, skipped := Apply(table, domain.FilterState{
		"district":          {In: []string{"North"}},
		"internet":          {Eq: f64(2)},
		"total_class_rooms": {Range: &domain.NumRange{Max: f64(10)}},
	})
	assert.Empty(t, skipped)
	assert.Equal(t, []string{"106"}, selectedCodes(t, view))
}

func TestApplyDeterministic(t *testing.T) {
	table := fixtureTable(t)
	state := domain.FilterState{
		"district": {In: []string{"North"}},
		"internet": {Eq: f64(2)},
	}

	// The same state always selects the same rows, and the conjunction is
	// exactly the intersection of the per-predicate selections.
	first, _ := Apply(table, state)
	second, _ := Apply(table, state)
	assert.Equal(t, selectedCodes(t, first), selectedCodes(t, second))

	districtOnly, _ := Apply(table, domain.FilterState{"district": state["district"]})
	internetOnly, _ := Apply(table, domain.FilterState{"internet": state["internet"]})
	assert.Subset(t, selectedCodes(t, districtOnly), selectedCodes(t, first))
	assert.Subset(t, selectedCodes(t, internetOnly), selectedCodes(t, first))
	assert.Equal(t, []string{"106"}, selectedCodes(t, first))
}

func TestApplyUnknownColumnSkipped(t *testing.T) {
	table := fixtureTable(t)

	view, skipped := Apply(table, domain.FilterState{
		"district":     {In: []string{"North"}},
		"water_purity": {Eq: f64(1)},
	})
	assert.Equal(t, []string{"water_purity"}, skipped)
	assert.Equal(t, []string{"101", "103", "106"}, selectedCodes(t, view),
		"unknown columns must not restrict the view")
}

// TestApplyJSONStates pins the wire-level distinction between an omitted
// membership filter and an explicitly empty selection.
func TestApplyJSONStates(t *testing.T) {
	table := fixtureTable(t)

	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"no filters", `{}`, 6},
		{"omitted in is unrestricted", `{"internet":{"eq":1}}`, 3},
		{"empty in excludes all", `{"district":{"in":[]}}`, 0},
		{"populated in", `{"district":{"in":["North"]}}`, 3},
		{"range from json", `{"total_class_rooms":{"range":{"min":5}}}`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var state domain.FilterState
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &state))
			view, _ := Apply(table, state)
			assert.Equal(t, tt.want, view.Len())
		})
	}
}
