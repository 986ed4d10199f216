package dataprocessing

import "errors"

// Loader errors
var (
	// Source errors
	ErrNoSources         = errors.New("no source files configured")
	ErrMissingSource     = errors.New("source file not found")
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrEmptySource       = errors.New("source file has no header row")

	// Join errors
	ErrMissingJoinKey   = errors.New("join key column not found")
	ErrDuplicateJoinKey = errors.New("duplicate join key values")
)
