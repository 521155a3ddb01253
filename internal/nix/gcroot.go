package nix

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// GcRootTempDir is a temporary directory holding an indirect GC root.
// Once it is closed the directory and the root inside are removed.
type GcRootTempDir struct {
	dir      string
	once     sync.Once
	released bool
	err      error
}

// NewGcRootTempDir creates a fresh temporary directory below parent
// (the system temp dir if parent is empty).
func NewGcRootTempDir(parent string) (*GcRootTempDir, error) {
	dir, err := os.MkdirTemp(parent, "nixtrace-gc-*")
	if err != nil {
		return nil, fmt.Errorf("creating gc root directory: %w", err)
	}
	return &GcRootTempDir{dir: dir}, nil
}

// ResultPath is the path passed to `--add-root` / `--out-link`.
func (g *GcRootTempDir) ResultPath() string {
	return filepath.Join(g.dir, "result")
}

// Released reports whether Close has been called.
func (g *GcRootTempDir) Released() bool {
	return g.released
}

// Close removes the directory and with it the GC root. It is safe to call
// more than once.
func (g *GcRootTempDir) Close() error {
	g.once.Do(func() {
		g.released = true
		g.err = os.RemoveAll(g.dir)
	})
	return g.err
}

// RootedPath is a realized store path together with the handle keeping it
// from being garbage collected.
//
// Callers keep the RootedPath open for as long as they use the path, or
// re-root it with Persist before closing.
type RootedPath struct {
	path   StorePath
	handle *GcRootTempDir
}

// NewRootedPath pairs path with the handle that roots it.
func NewRootedPath(path StorePath, handle *GcRootTempDir) *RootedPath {
	return &RootedPath{path: path, handle: handle}
}

// Path returns the store path while its root is alive.
func (r *RootedPath) Path() (StorePath, error) {
	if r.handle.Released() {
		return "", ErrRootReleased
	}
	return r.path, nil
}

// Persist registers a permanent root for the path under name and releases
// the ephemeral one. The permanent root is in place before the ephemeral
// root goes away.
func (r *RootedPath) Persist(roots *Roots, name string) (StorePath, error) {
	path, err := r.Path()
	if err != nil {
		return "", err
	}
	if _, err := roots.Add(name, path); err != nil {
		return "", err
	}
	if err := r.handle.Close(); err != nil {
		return "", fmt.Errorf("releasing ephemeral gc root: %w", err)
	}
	return path, nil
}

// Close releases the ephemeral root.
func (r *RootedPath) Close() error {
	return r.handle.Close()
}
