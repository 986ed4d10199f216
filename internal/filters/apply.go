// Package filters narrows dataset views by column predicates and discovers
// the filterable column catalog a client needs to render its controls.
package filters

import (
	"sort"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// Apply narrows the identity view of t to the rows satisfying every
// predicate in state. Predicates naming columns the table does not carry
// are skipped and reported by name; an empty or nil state selects all rows.
// Missing cells satisfy no predicate, so filtering on a column excludes the
// rows where it is blank.
func Apply(t *dataset.Table, state domain.FilterState) (*dataset.View, []string) {
	view := dataset.AllRows(t)
	if len(state) == 0 {
		return view, nil
	}

	// Conjunction is order independent, but the skip list should not depend
	// on map iteration order.
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	var skipped []string
	for _, name := range names {
		pred := state[name]
		if pred.Kind() == domain.PredicateNone {
			continue
		}
		col, ok := t.Lookup(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		view = narrowBy(view, col, pred)
	}
	return view, skipped
}

func narrowBy(v *dataset.View, col *dataset.Column, pred domain.Predicate) *dataset.View {
	switch pred.Kind() {
	case domain.PredicateMembership:
		if len(pred.In) == 0 {
			// An explicit empty selection excludes every row. Clients clear
			// a filter by omitting the column, not by sending [].
			return dataset.EmptyView(v.Table())
		}
		want := make(map[string]struct{}, len(pred.In))
		for _, s := range pred.In {
			want[s] = struct{}{}
		}
		return v.Narrow(func(row int) bool {
			if col.IsMissing(row) {
				return false
			}
			_, ok := want[col.String(row)]
			return ok
		})

	case domain.PredicateEquality:
		eq := *pred.Eq
		return v.Narrow(func(row int) bool {
			val, ok := col.Float(row)
			return ok && val == eq
		})

	case domain.PredicateRange:
		r := pred.Range
		return v.Narrow(func(row int) bool {
			val, ok := col.Float(row)
			if !ok {
				return false
			}
			if r.Min != nil && val < *r.Min {
				return false
			}
			if r.Max != nil && val > *r.Max {
				return false
			}
			return true
		})
	}
	return v
}
