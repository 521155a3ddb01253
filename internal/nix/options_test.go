package nix

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOptionsArgs(t *testing.T) {
	opts := Options{
		Builders:     []string{"ssh://a", "ssh://b"},
		Substituters: []string{"https://cache.nixos.org"},
		Extra: map[string]string{
			"sandbox":  "true",
			"max-jobs": "4",
			"cores":    "2",
		},
	}

	want := []string{
		"--option", "builders", "ssh://a ssh://b",
		"--option", "substituters", "https://cache.nixos.org",
		"--option", "cores", "2",
		"--option", "max-jobs", "4",
		"--option", "sandbox", "true",
	}
	if got := opts.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestEmptyOptionsArgs(t *testing.T) {
	if got := EmptyOptions().Args(); len(got) != 0 {
		t.Errorf("Args() = %v, want none", got)
	}
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	content := `builders:
  - ssh://builder
substituters:
  - https://cache.nixos.org
extra:
  sandbox: "false"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing options: %v", err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}
	if !reflect.DeepEqual(opts.Builders, []string{"ssh://builder"}) {
		t.Errorf("Builders = %v", opts.Builders)
	}
	if opts.Extra["sandbox"] != "false" {
		t.Errorf("Extra = %v", opts.Extra)
	}
}

func TestLoadOptions_Missing(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadOptions should fail for a missing file")
	}
}
