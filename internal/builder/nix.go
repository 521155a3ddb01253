// Package builder runs instrumented Nix evaluations and builds.
//
// It does not build the Nix expression as-is. The expression is evaluated
// through logged-evaluation.nix, which wraps builtins so the evaluator
// reports every source file it reads, and nix-instantiate runs with -vv so
// it reports evaluated and copied files. Those reports become the watch
// list returned next to the build result.
package builder

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	builderrors "github.com/narvanalabs/nixtrace/internal/builder/errors"
	"github.com/narvanalabs/nixtrace/internal/metrics"
	"github.com/narvanalabs/nixtrace/internal/nix"
	"github.com/narvanalabs/nixtrace/internal/watch"
)

//go:embed logged-evaluation.nix
var loggedEvaluationNix string

// ContentStore stages files by content and returns a stable absolute path.
type ContentStore interface {
	FileFromString(content string) (string, error)
}

// RootedDrv is a derivation file kept alive by an ephemeral GC root.
// The path is only safe to use until Close.
type RootedDrv struct {
	Path     nix.DrvFile
	gcHandle *nix.GcRootTempDir
}

// Close releases the GC root of the derivation.
func (r *RootedDrv) Close() error {
	return r.gcHandle.Close()
}

// InstantiateOutput is the result of an instrumented nix-instantiate.
type InstantiateOutput struct {
	// ReferencedPaths are the files and directories the evaluation read.
	ReferencedPaths []watch.Entry
	// Output is the single derivation produced.
	Output *RootedDrv
}

// Instantiate evaluates nixFile with instrumentation and returns the
// derivation it produced together with every path the evaluation read.
//
// Failures are builderrors.BuildError values. A successful run that does
// not produce exactly one derivation means logged-evaluation.nix is broken
// and panics.
func (b *Builder) Instantiate(ctx context.Context, nixFile nix.NixFile, store ContentStore, opts nix.Options) (*InstantiateOutput, error) {
	return b.instantiate(ctx, b.logger, nixFile, store, opts)
}

func (b *Builder) instantiate(ctx context.Context, log *slog.Logger, nixFile nix.NixFile, store ContentStore, opts nix.Options) (out *InstantiateOutput, err error) {
	start := time.Now()
	defer func() {
		b.metrics.ObserveStepDuration(metrics.StepInstantiate, time.Since(start))
		if r := recover(); r != nil {
			b.metrics.IncStepOutcome(metrics.StepInstantiate, OutcomeContractViolation)
			panic(r)
		}
		b.metrics.IncStepOutcome(metrics.StepInstantiate, outcomeOf(err))
	}()

	script, err := store.FileFromString(loggedEvaluationNix)
	if err != nil {
		return nil, builderrors.NewIoError(err)
	}

	gcRoot, err := nix.NewGcRootTempDir(b.cfg.TempDir)
	if err != nil {
		return nil, builderrors.NewIoError(err)
	}
	keepRoot := false
	defer func() {
		if !keepRoot {
			gcRoot.Close()
		}
	}()

	cmd := exec.Command(b.cfg.NixInstantiate, instantiateArgs(nixFile, script, gcRoot.ResultPath(), b.cfg.RunTimeClosure, opts)...)
	log.DebugContext(ctx, "nix-instantiate", "command", builderrors.CommandLine(cmd))

	drained, err := nix.RunDrained(cmd,
		func(line []byte) nix.DrvFile { return nix.DrvFile(line) },
		ClassifyLine,
	)
	if err != nil {
		return nil, err
	}

	paths, logLines := FoldLogData(drained.Stderr)
	b.recordLogData(drained.Stderr, paths)

	if !drained.State.Success() {
		return nil, builderrors.NewExitError(cmd, drained.State, logLines)
	}

	products := nix.NonEmpty(drained.Stdout)
	var drv nix.DrvFile
	switch n := len(products); n {
	case 0:
		panic("logged-evaluation.nix did not return a build product")
	case 1:
		drv = products[0]
	default:
		panic(fmt.Sprintf("got more than one build product (%d) from logged-evaluation.nix: %q", n, products))
	}

	log.InfoContext(ctx, "nix-instantiate completed",
		"drv", drv,
		"watch_entries", len(paths),
		"duration", time.Since(start),
	)

	keepRoot = true
	return &InstantiateOutput{
		ReferencedPaths: paths,
		Output: &RootedDrv{
			Path:     drv,
			gcHandle: gcRoot,
		},
	}, nil
}

// instantiateArgs builds the nix-instantiate command line. Extra options
// go first so they stand out in traces.
func instantiateArgs(nixFile nix.NixFile, script, gcRootPath, runTimeClosure string, opts nix.Options) []string {
	// -vv makes nix print the `evaluating file` and `copied source` lines.
	args := []string{"-vv"}
	args = append(args, opts.Args()...)
	args = append(args,
		"--add-root", gcRootPath,
		"--indirect",
		"--argstr", "runTimeClosure", runTimeClosure,
		"--argstr", "src", nixFile.String(),
		"--", script,
	)
	return args
}

func (b *Builder) recordLogData(data []LogDatum, paths []watch.Entry) {
	counts := make(map[string]int)
	for _, d := range data {
		counts[logDatumClass(d)]++
	}
	for class, n := range counts {
		b.metrics.AddLogLines(class, n)
	}

	kinds := make(map[watch.Kind]int)
	for _, p := range paths {
		kinds[p.Kind]++
	}
	for kind, n := range kinds {
		b.metrics.AddWatchEntries(kind.String(), n)
	}
}

func logDatumClass(d LogDatum) string {
	switch d.(type) {
	case SourceFileEvaluated:
		return "source_file_evaluated"
	case CopiedToStore:
		return "copied_to_store"
	case ReadRecursively:
		return "read_recursively"
	case ReadDirectoryListing:
		return "read_directory_listing"
	case PlainText:
		return "plain_text"
	case UndecodableText:
		return "undecodable_text"
	default:
		panic(fmt.Sprintf("unhandled log datum %T", d))
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if be, ok := builderrors.AsBuildError(err); ok {
		return be.Code()
	}
	return builderrors.CodeSystemIO
}
