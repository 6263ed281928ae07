package domain

import "errors"

// Validation errors surfaced synchronously to callers when a command is
// rejected at creation time. No partial state remains and no undo entry is
// created for a rejected action.
var (
	// ErrReservedRegion rejects editing, deleting, or moving the Empty region.
	ErrReservedRegion = errors.New("cannot edit reserved region")
	// ErrRegionNotFound rejects references to a region id that does not exist.
	ErrRegionNotFound = errors.New("region not found")
	// ErrInvalidGrid rejects grid descriptors with non-positive dimensions.
	ErrInvalidGrid = errors.New("grid dimensions must be positive")
)
