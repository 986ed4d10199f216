package domain

import "errors"

// FilterState is the full set of active column predicates for a query.
// Keys are dataset column names; the effective filter is the conjunction
// of every entry. A column without an entry is unrestricted.
type FilterState map[string]Predicate

// Predicate is a single column-scoped condition. Exactly one of the three
// clauses must be set; Validate enforces this before the engine sees it.
//
// Membership carries a deliberate nil/empty distinction: a nil In slice
// (key omitted from JSON) means the clause is not a membership predicate,
// while an explicitly empty In ("in": []) selects nothing and therefore
// excludes every row. Clearing a filter in a client must omit the column
// entry entirely, not send an empty selection.
type Predicate struct {
	In    []string  `json:"in,omitempty"`
	Eq    *float64  `json:"eq,omitempty"`
	Range *NumRange `json:"range,omitempty"`
}

// NumRange is an inclusive numeric interval. A nil bound is open.
type NumRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Kind reports which predicate clause is set.
func (p Predicate) Kind() PredicateKind {
	switch {
	case p.In != nil:
		return PredicateMembership
	case p.Eq != nil:
		return PredicateEquality
	case p.Range != nil:
		return PredicateRange
	default:
		return PredicateNone
	}
}

// clauseCount counts the set clauses so validation can reject ambiguous
// predicates such as {"in": [...], "eq": 1}.
func (p Predicate) clauseCount() int {
	n := 0
	if p.In != nil {
		n++
	}
	if p.Eq != nil {
		n++
	}
	if p.Range != nil {
		n++
	}
	return n
}

// Valid reports whether exactly one clause is set and the clause itself is
// well formed (a range needs at least one bound and min <= max when both
// are present).
func (p Predicate) Valid() bool {
	return p.Validate() == nil
}

// Validate explains why the predicate is malformed, or returns nil.
func (p Predicate) Validate() error {
	switch n := p.clauseCount(); {
	case n == 0:
		return errors.New("exactly one of in, eq or range must be set")
	case n > 1:
		return errors.New("predicate sets more than one of in, eq and range")
	}
	if r := p.Range; r != nil {
		if r.Min == nil && r.Max == nil {
			return errors.New("range needs at least one bound")
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return errors.New("range min exceeds max")
		}
	}
	return nil
}

// PredicateKind enumerates the filter condition families a column can carry.
type PredicateKind string

const (
	PredicateNone       PredicateKind = "none"
	PredicateMembership PredicateKind = "membership"
	PredicateEquality   PredicateKind = "equality"
	PredicateRange      PredicateKind = "range"
)
