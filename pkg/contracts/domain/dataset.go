// Package domain contains the core domain models for the school
// infrastructure dashboard. These types serve as the Single Source of
// Truth (SSOT) for all layers of the application.
package domain

import "time"

// ColumnKind is the physical storage kind of a dataset column.
type ColumnKind string

const (
	ColumnText    ColumnKind = "text"
	ColumnNumeric ColumnKind = "numeric"
)

// ColumnRole describes what a registered column means to the dashboard.
type ColumnRole string

const (
	RoleIdentifier ColumnRole = "identifier"
	RoleGeography  ColumnRole = "geography"
	RoleCategory   ColumnRole = "category"
	RoleFacility   ColumnRole = "facility"
	RoleMeasure    ColumnRole = "measure"
	RoleDerived    ColumnRole = "derived"
	// RoleUnknown marks columns present in a source but absent from the
	// registry; they load and export but are not filterable.
	RoleUnknown ColumnRole = "unknown"
)

// ColumnInfo describes one column of the loaded table.
type ColumnInfo struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Kind    ColumnKind `json:"kind"`
	Role    ColumnRole `json:"role"`
	Derived bool       `json:"derived,omitempty"`
}

// SchemaWarning records a recovered schema anomaly: a registry column
// missing from the sources, a derived input absent, or a column collision
// between joined sources. Warnings never fail a load.
type SchemaWarning struct {
	Column string `json:"column"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason"`
}

// SourceInfo describes a tabular source file available to the loader.
type SourceInfo struct {
	Path     string    `json:"path"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// DatasetSummary describes the currently loaded dataset snapshot.
type DatasetSummary struct {
	SnapshotID  string          `json:"snapshot_id"`
	Sources     []string        `json:"sources"`
	Fingerprint string          `json:"fingerprint"`
	Rows        int             `json:"rows"`
	Columns     []ColumnInfo    `json:"columns"`
	Warnings    []SchemaWarning `json:"warnings,omitempty"`
	LoadedAt    time.Time       `json:"loaded_at"`
	FromCache   bool            `json:"from_cache"`
}

// CodeOption is one selectable code of an equality-filtered column, with
// the human label carried as data rather than parsed from display strings.
type CodeOption struct {
	Code  float64 `json:"code"`
	Label string  `json:"label"`
	Count int     `json:"count"`
}

// ValueOption is one selectable value of a membership-filtered column.
type ValueOption struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CatalogEntry is one filterable column as discovered from the loaded
// table: its predicate kind plus the observed value domain the UI needs to
// render the control. Columns carry exactly the fields their kind uses.
type CatalogEntry struct {
	Column    string        `json:"column"`
	Label     string        `json:"label"`
	Kind      ColumnKind    `json:"kind"`
	Role      ColumnRole    `json:"role"`
	Predicate PredicateKind `json:"predicate"`
	Values    []ValueOption `json:"values,omitempty"`
	Codes     []CodeOption  `json:"codes,omitempty"`
	Min       *float64      `json:"min,omitempty"`
	Max       *float64      `json:"max,omitempty"`
}
