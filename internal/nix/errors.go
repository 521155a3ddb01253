package nix

import "errors"

// Nix errors.
var (
	// ErrRootReleased is returned when a rooted path is used after its GC root was released.
	ErrRootReleased = errors.New("gc root has been released")

	// ErrEmptyRootName is returned when a permanent root is requested without a name.
	ErrEmptyRootName = errors.New("root name is empty")

	// ErrNoRootsDir is returned when permanent roots are requested without a roots directory.
	ErrNoRootsDir = errors.New("roots directory is not configured")
)
