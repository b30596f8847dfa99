// Package errors defines all exported error sentinels for the recsplit library.
//
// This is the single source of truth for error values. Both the top-level
// recsplit package and internal codec packages import from here,
// ensuring errors.Is checks work across package boundaries.
package errors

import "errors"

// Configuration errors
var (
	ErrInvalidLeafSize   = errors.New("recsplit: leaf size out of range [1, 25]")
	ErrInvalidBucketSize = errors.New("recsplit: average bucket size out of range [4, 65536]")
	ErrInvalidChunkSize  = errors.New("recsplit: max chunk size must be positive")
	ErrInvalidWorkers    = errors.New("recsplit: worker count must be positive")
	ErrNilHash           = errors.New("recsplit: universal hash is nil")
)

// Construction errors
var (
	ErrTooManyKeys         = errors.New("recsplit: key count exceeds maximum (2^32-1)")
	ErrDuplicateKey        = errors.New("recsplit: duplicate key detected")
	ErrNotMonotone         = errors.New("recsplit: sequence is not non-decreasing")
	ErrEmptySequence       = errors.New("recsplit: monotone list needs at least one value")
	ErrValueOutOfRange     = errors.New("recsplit: monotone list value exceeds 2^63-1")
	ErrBucketCountMismatch = errors.New("recsplit: bucket entry count mismatch")
)

// Description errors
var (
	ErrTruncatedDescription = errors.New("recsplit: description is truncated")
	ErrCorruptedDescription = errors.New("recsplit: description data is corrupted")
)
