package nix

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options are extra options passed through to every Nix invocation.
type Options struct {
	// Builders overrides the `builders` Nix option.
	Builders []string `yaml:"builders"`
	// Substituters overrides the `substituters` Nix option.
	Substituters []string `yaml:"substituters"`
	// Extra holds any other `--option name value` pairs.
	Extra map[string]string `yaml:"extra"`
}

// EmptyOptions returns options that add nothing to the command line.
func EmptyOptions() Options {
	return Options{}
}

// LoadOptions reads Options from a YAML file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading nix options: %w", err)
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parsing nix options: %w", err)
	}
	return opts, nil
}

// Args renders the options as Nix command line arguments.
// Extra options are emitted sorted by name, so the command line is stable.
func (o Options) Args() []string {
	var args []string
	if len(o.Builders) > 0 {
		args = append(args, "--option", "builders", strings.Join(o.Builders, " "))
	}
	if len(o.Substituters) > 0 {
		args = append(args, "--option", "substituters", strings.Join(o.Substituters, " "))
	}

	names := make([]string, 0, len(o.Extra))
	for name := range o.Extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--option", name, o.Extra[name])
	}
	return args
}
