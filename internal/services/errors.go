package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"udisecli/internal/dataprocessing"
)

// Dashboard service errors
var (
	// Dataset state errors
	ErrDatasetNotLoaded = errors.New("dataset not loaded")
	ErrReloadInProgress = errors.New("dataset reload already in progress")

	// Source errors, re-exported from the loader so callers can match on
	// this package alone
	ErrNoSources     = dataprocessing.ErrNoSources
	ErrMissingSource = dataprocessing.ErrMissingSource

	// Query errors
	ErrInvalidFilterState = errors.New("invalid filter state")

	// WebSocket errors
	ErrWebSocketUpgrade = errors.New("websocket upgrade failed")
)

// FilterStateError carries the per-column reasons a filter state failed
// validation. It unwraps to ErrInvalidFilterState so callers can match the
// family without inspecting fields.
type FilterStateError struct {
	Fields map[string]string
}

// Error lists the offending columns in sorted order.
func (e *FilterStateError) Error() string {
	cols := make([]string, 0, len(e.Fields))
	for col := range e.Fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return fmt.Sprintf("invalid filter state: %s", strings.Join(cols, ", "))
}

// Unwrap ties the error to the ErrInvalidFilterState sentinel.
func (e *FilterStateError) Unwrap() error {
	return ErrInvalidFilterState
}
