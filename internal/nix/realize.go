package nix

import (
	"context"
	"log/slog"
	"os/exec"

	builderrors "github.com/narvanalabs/nixtrace/internal/builder/errors"
)

// Realizer builds a derivation and roots the result.
type Realizer interface {
	// Realize builds drv with opts and returns the output path rooted by a
	// fresh ephemeral GC root. Errors are builderrors.BuildError values.
	Realize(ctx context.Context, drv DrvFile, opts Options) (*RootedPath, error)
}

// BuildRealizer realizes derivations with nix-build.
type BuildRealizer struct {
	// Bin is the nix-build executable.
	Bin string
	// TempDir is the parent of the ephemeral GC root directories.
	TempDir string
	// StoreDir is the Nix store outputs must live in. Empty means
	// DefaultStoreDir.
	StoreDir string

	logger *slog.Logger
}

// NewBuildRealizer creates a BuildRealizer.
func NewBuildRealizer(bin, tempDir string, logger *slog.Logger) *BuildRealizer {
	if logger == nil {
		logger = slog.Default()
	}
	if bin == "" {
		bin = "nix-build"
	}
	return &BuildRealizer{Bin: bin, TempDir: tempDir, logger: logger}
}

// Realize runs `nix-build [opts] --out-link <tmp>/result <drv>`.
func (b *BuildRealizer) Realize(ctx context.Context, drv DrvFile, opts Options) (*RootedPath, error) {
	gcRoot, err := NewGcRootTempDir(b.TempDir)
	if err != nil {
		return nil, builderrors.NewIoError(err)
	}

	args := opts.Args()
	args = append(args, "--out-link", gcRoot.ResultPath(), drv.String())
	cmd := exec.Command(b.Bin, args...)

	b.logger.DebugContext(ctx, "nix-build", "command", builderrors.CommandLine(cmd))

	out, err := RunDrained(cmd,
		func(line []byte) StorePath { return StorePath(line) },
		func(line []byte) builderrors.LogLine { return builderrors.LogLine(line) },
	)
	if err != nil {
		gcRoot.Close()
		return nil, err
	}

	if !out.State.Success() {
		gcRoot.Close()
		return nil, builderrors.NewExitError(cmd, out.State, out.Stderr)
	}

	outputs := NonEmpty(out.Stdout)
	if len(outputs) != 1 {
		gcRoot.Close()
		return nil, builderrors.NewOutputError("expected exactly 1 build output from nix-build, got %d: %v", len(outputs), outputs)
	}
	path := outputs[0]
	if !IsValidStorePath(b.StoreDir, path.String()) {
		gcRoot.Close()
		return nil, builderrors.NewOutputError("nix-build returned %q, which is not a store path", path)
	}

	b.logger.DebugContext(ctx, "nix-build completed", "store_path", path)
	return NewRootedPath(path, gcRoot), nil
}
