// Package api contains API contract definitions for the school
// infrastructure dashboard. Version v1 represents the current stable API
// version.
package api

import (
	"udisecli/pkg/contracts/domain"
)

// QueryRequest asks for KPIs and aggregates over the view selected by
// Filters. An empty or nil Filters map selects the whole dataset.
type QueryRequest struct {
	Filters      domain.FilterState `json:"filters,omitempty" validate:"omitempty,dive,keys,columnname,endkeys"`
	Preview      bool               `json:"preview,omitempty"`
	PreviewLimit int                `json:"preview_limit,omitempty" validate:"omitempty,min=1,max=500"`
}

// ExportRequest asks for the filtered view as a CSV attachment.
type ExportRequest struct {
	Filters  domain.FilterState `json:"filters,omitempty" validate:"omitempty,dive,keys,columnname,endkeys"`
	Filename string             `json:"filename,omitempty" validate:"omitempty,max=128,filename"`
}

// ReloadRequest forces the dataset snapshot to be rebuilt from its sources.
// Force bypasses the fingerprint cache even when sources are unchanged.
type ReloadRequest struct {
	Force bool `json:"force,omitempty" query:"force"`
}
