package interfaces

import "errors"

// Sentinel errors shared across implementations so callers can translate
// them to transport-level responses without string matching.
var (
	ErrNotFound           = errors.New("record not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
