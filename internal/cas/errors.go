package cas

import "errors"

// Store errors.
var (
	// ErrEmptyDir is returned when no store directory is given.
	ErrEmptyDir = errors.New("store directory is empty")
)
