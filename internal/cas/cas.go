// Package cas provides a content-addressable file store.
//
// Files are named by the SHA-256 of their content, so staging the same
// content twice yields the same path.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes content-addressed files below a directory.
type Store struct {
	dir string
}

// New creates the store directory if needed and returns a Store rooted there.
// dir is made absolute so returned paths can be passed to Nix directly.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving store directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute store directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileFromString stores content and returns the absolute path of the file.
func (s *Store) FileFromString(content string) (string, error) {
	return s.FileFromBytes([]byte(content))
}

// FileFromBytes stores content and returns the absolute path of the file.
// The file is written to a temporary name and renamed into place, so a
// reader never observes a partially written file.
func (s *Store) FileFromBytes(content []byte) (string, error) {
	sum := sha256.Sum256(content)
	path := filepath.Join(s.dir, hex.EncodeToString(sum[:]))

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("moving file into store: %w", err)
	}
	return path, nil
}
