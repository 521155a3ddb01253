// Package watch describes the filesystem paths a build depends on.
package watch

import "fmt"

// Kind tells a file watcher how deep to observe a path.
type Kind int

const (
	// Single watches the path itself. For a directory that is its listing only.
	Single Kind = iota
	// Recursive watches the path and its whole subtree.
	Recursive
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Recursive:
		return "recursive"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry is a path a watcher must observe to notice changes to the build input.
type Entry struct {
	Kind Kind
	Path string
}

// NewSingle returns a listing-only watch entry.
func NewSingle(path string) Entry {
	return Entry{Kind: Single, Path: path}
}

// NewRecursive returns a subtree watch entry.
func NewRecursive(path string) Entry {
	return Entry{Kind: Recursive, Path: path}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.Path)
}
