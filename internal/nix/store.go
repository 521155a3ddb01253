// Package nix wraps the pieces of Nix the build orchestrator talks to:
// store paths, GC roots, extra options and the realize step.
package nix

import (
	"path/filepath"
	"strings"
)

// DefaultStoreDir is the location of the Nix store on a standard install.
const DefaultStoreDir = "/nix/store"

// StorePath is a path inside the Nix store.
type StorePath string

func (p StorePath) String() string { return string(p) }

// DrvFile is a store path pointing at a .drv derivation file.
type DrvFile string

func (d DrvFile) String() string { return string(d) }

// NixFile is an absolute path to a Nix expression file.
type NixFile string

// NewNixFile makes path absolute.
func NewNixFile(path string) (NixFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return NixFile(abs), nil
}

func (f NixFile) String() string { return string(f) }

// IsValidStorePath checks if a string is a valid path in storeDir.
// Store paths have the form <storeDir>/<32 char hash>-<name>.
func IsValidStorePath(storeDir, path string) bool {
	if storeDir == "" {
		storeDir = DefaultStoreDir
	}
	prefix := strings.TrimSuffix(storeDir, "/") + "/"
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	remainder := strings.TrimPrefix(path, prefix)
	if len(remainder) < 34 { // 32 chars hash + dash + at least one name char
		return false
	}
	return remainder[32] == '-'
}
