package nix

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGcRootTempDir_CloseRemovesDirectory(t *testing.T) {
	g, err := NewGcRootTempDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewGcRootTempDir failed: %v", err)
	}
	dir := filepath.Dir(g.ResultPath())
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("gc root directory should exist: %v", err)
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("gc root directory should be removed, stat err = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestRootedPath_PathAfterClose(t *testing.T) {
	g, err := NewGcRootTempDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewGcRootTempDir failed: %v", err)
	}
	r := NewRootedPath("/nix/store/00000000000000000000000000000000-shell", g)

	if p, err := r.Path(); err != nil || p == "" {
		t.Fatalf("Path() = %q, %v", p, err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := r.Path(); !errors.Is(err, ErrRootReleased) {
		t.Errorf("Path() after Close error = %v, want ErrRootReleased", err)
	}
}

func TestRootedPath_Persist(t *testing.T) {
	tmp := t.TempDir()
	g, err := NewGcRootTempDir(tmp)
	if err != nil {
		t.Fatalf("NewGcRootTempDir failed: %v", err)
	}
	storePath := StorePath("/nix/store/00000000000000000000000000000000-shell")
	r := NewRootedPath(storePath, g)
	roots := &Roots{Dir: filepath.Join(tmp, "roots"), GCRootsDir: filepath.Join(tmp, "gcroots")}

	got, err := r.Persist(roots, "shell_gc_root")
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if got != storePath {
		t.Errorf("Persist() = %q, want %q", got, storePath)
	}
	if !g.Released() {
		t.Error("Persist should release the ephemeral root")
	}

	target, err := os.Readlink(filepath.Join(roots.Dir, "shell_gc_root"))
	if err != nil || target != string(storePath) {
		t.Errorf("root symlink = %q, %v", target, err)
	}
	entries, err := os.ReadDir(roots.GCRootsDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("gcroots entries = %v, %v", entries, err)
	}
}

func TestRoots_AddReplaces(t *testing.T) {
	roots := &Roots{Dir: t.TempDir()}

	if _, err := roots.Add("shell", "/nix/store/a"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	link, err := roots.Add("shell", "/nix/store/b")
	if err != nil {
		t.Fatalf("second Add failed: %v", err)
	}
	if target, _ := os.Readlink(link); target != "/nix/store/b" {
		t.Errorf("root points to %q, want /nix/store/b", target)
	}
}

func TestRoots_Errors(t *testing.T) {
	var none *Roots
	if _, err := none.Add("x", "/nix/store/a"); !errors.Is(err, ErrNoRootsDir) {
		t.Errorf("nil roots error = %v", err)
	}
	if _, err := (&Roots{Dir: t.TempDir()}).Add("", "/nix/store/a"); !errors.Is(err, ErrEmptyRootName) {
		t.Errorf("empty name error = %v", err)
	}
}

func TestIsValidStorePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/nix/store/zqxha3ax0w771jf25qdblakka83660gr-source", true},
		{"/nix/store/short-source", false},
		{"/tmp/zqxha3ax0w771jf25qdblakka83660gr-source", false},
		{"/nix/store/zqxha3ax0w771jf25qdblakka83660gr_source", false},
	}
	for _, tt := range tests {
		if got := IsValidStorePath("", tt.path); got != tt.want {
			t.Errorf("IsValidStorePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
