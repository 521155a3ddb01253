package nix

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Roots manages permanent GC roots. Each root is a symlink Dir/<name>
// pointing into the store, registered with the Nix garbage collector by an
// indirect symlink in GCRootsDir.
type Roots struct {
	// Dir holds the named root symlinks.
	Dir string
	// GCRootsDir is a directory the Nix GC scans for roots, usually
	// /nix/var/nix/gcroots/per-user/$USER. Empty disables registration.
	GCRootsDir string
}

// Add points Dir/name at path and registers it with the garbage collector.
// Existing roots of the same name are replaced atomically.
func (r *Roots) Add(name string, path StorePath) (string, error) {
	if r == nil || r.Dir == "" {
		return "", ErrNoRootsDir
	}
	if name == "" {
		return "", ErrEmptyRootName
	}
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating roots directory: %w", err)
	}

	link, err := filepath.Abs(filepath.Join(r.Dir, name))
	if err != nil {
		return "", fmt.Errorf("resolving root path: %w", err)
	}
	if err := replaceSymlink(string(path), link); err != nil {
		return "", fmt.Errorf("creating root %s: %w", name, err)
	}

	if r.GCRootsDir != "" {
		if err := os.MkdirAll(r.GCRootsDir, 0755); err != nil {
			return "", fmt.Errorf("creating gcroots directory: %w", err)
		}
		sum := sha256.Sum256([]byte(link))
		gcLink := filepath.Join(r.GCRootsDir, hex.EncodeToString(sum[:16])+"-"+name)
		if err := replaceSymlink(link, gcLink); err != nil {
			return "", fmt.Errorf("registering root %s: %w", name, err)
		}
	}
	return link, nil
}

func replaceSymlink(target, link string) error {
	tmp := link + ".tmp-" + uuid.New().String()
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
