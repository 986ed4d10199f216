package filters

import (
	"sort"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// BuildCatalog lists the filterable columns of t in registry order together
// with their observed value domains. Registered columns absent from the
// table are left out, as are unregistered columns, which load and export
// but are never filterable.
func BuildCatalog(t *dataset.Table, reg *dataset.Registry) []domain.CatalogEntry {
	entries := make([]domain.CatalogEntry, 0)
	for i := range reg.Columns {
		rc := &reg.Columns[i]
		kind := rc.PredicateKind()
		if kind == domain.PredicateNone {
			continue
		}
		col, ok := t.Lookup(rc.Name)
		if !ok {
			continue
		}

		entry := domain.CatalogEntry{
			Column:    rc.Name,
			Label:     rc.Label,
			Kind:      rc.ColumnKind(),
			Role:      rc.ColumnRole(),
			Predicate: kind,
		}
		switch kind {
		case domain.PredicateMembership:
			entry.Values = observedValues(col)
		case domain.PredicateEquality:
			entry.Codes = observedCodes(col, rc)
		case domain.PredicateRange:
			entry.Min, entry.Max = observedBounds(col)
		}
		entries = append(entries, entry)
	}
	return entries
}

// observedValues returns the distinct non-missing values of a membership
// column with their row counts, sorted by value.
func observedValues(col *dataset.Column) []domain.ValueOption {
	counts := make(map[string]int)
	for row := 0; row < col.Len(); row++ {
		if col.IsMissing(row) {
			continue
		}
		counts[col.String(row)]++
	}
	values := make([]domain.ValueOption, 0, len(counts))
	for v, n := range counts {
		values = append(values, domain.ValueOption{Value: v, Count: n})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Value < values[j].Value })
	return values
}

// observedCodes lists the registry's code table with observed counts, so a
// control can show "No (0)" for codes nobody reports. Codes observed in the
// data but unknown to the registry are appended in numeric order with their
// canonical rendering as the label.
func observedCodes(col *dataset.Column, rc *dataset.RegistryColumn) []domain.CodeOption {
	counts := make(map[float64]int)
	for row := 0; row < col.Len(); row++ {
		if v, ok := col.Float(row); ok {
			counts[v]++
		}
	}

	codes := make([]domain.CodeOption, 0, len(rc.Codes))
	listed := make(map[float64]bool, len(rc.Codes))
	for _, ce := range rc.Codes {
		codes = append(codes, domain.CodeOption{Code: ce.Code, Label: ce.Label, Count: counts[ce.Code]})
		listed[ce.Code] = true
	}

	var extra []float64
	for v := range counts {
		if !listed[v] {
			extra = append(extra, v)
		}
	}
	sort.Float64s(extra)
	for _, v := range extra {
		codes = append(codes, domain.CodeOption{Code: v, Label: dataset.FormatFloat(v), Count: counts[v]})
	}
	return codes
}

func observedBounds(col *dataset.Column) (*float64, *float64) {
	var min, max float64
	found := false
	for row := 0; row < col.Len(); row++ {
		v, ok := col.Float(row)
		if !ok {
			continue
		}
		if !found {
			min, max = v, v
			found = true
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !found {
		return nil, nil
	}
	return &min, &max
}
