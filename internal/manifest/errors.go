package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest format version is not supported.
	ErrIncompatibleVersion = errors.New("manifest: incompatible version")

	// ErrNotFound is returned when no CURRENT pointer exists.
	ErrNotFound = errors.New("manifest: not found")

	// ErrCorrupt is returned when a manifest or CURRENT pointer fails verification.
	ErrCorrupt = errors.New("manifest: corrupt")
)
