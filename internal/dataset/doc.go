// Package dataset holds the in-memory tabular model the dashboard core
// operates on: an immutable column-major Table built once per load, a
// zero-copy View selecting a subset of its rows, and the embedded column
// registry describing the survey columns the dashboard recognizes.
//
// # Model
//
// A Table stores each column either as text or as numeric values with
// per-cell validity. Missing cells are first-class: a numeric cell that
// failed to parse, or an empty text cell, is observable only as missing,
// never as 0 or "".
//
// A View is an ordered list of row indices into one Table. Filtering and
// aggregation never copy row data; they narrow or walk views.
//
// # Registry
//
// registry.yaml is the declarative catalog of recognized columns: storage
// kind, dashboard role, applicable filter predicate, and for coded
// facility flags the code-to-label mapping including which code counts as
// positive. Columns found in sources but absent from the registry still
// load and export; they are simply not filterable.
package dataset
