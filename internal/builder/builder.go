package builder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	builderrors "github.com/narvanalabs/nixtrace/internal/builder/errors"
	"github.com/narvanalabs/nixtrace/internal/metrics"
	"github.com/narvanalabs/nixtrace/internal/nix"
	"github.com/narvanalabs/nixtrace/internal/watch"
	"github.com/narvanalabs/nixtrace/pkg/logger"
)

// OutcomeContractViolation labels an instantiation whose instrumentation
// script returned the wrong number of derivations.
const OutcomeContractViolation = "CONTRACT_VIOLATION"

// Config holds configuration for the Builder.
type Config struct {
	// NixInstantiate is the nix-instantiate executable.
	NixInstantiate string
	// RunTimeClosure is passed to logged-evaluation.nix as runTimeClosure.
	RunTimeClosure string
	// TempDir is the parent of ephemeral GC root directories.
	TempDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NixInstantiate: "nix-instantiate",
	}
}

// Builder runs instrumented instantiations and hands the resulting
// derivation to a Realizer.
type Builder struct {
	cfg      Config
	realizer nix.Realizer
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewBuilder creates a new Builder. A nil recorder disables metrics.
func NewBuilder(cfg *Config, realizer nix.Realizer, recorder metrics.Recorder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.NixInstantiate == "" {
		c.NixInstantiate = "nix-instantiate"
	}
	return &Builder{
		cfg:      c,
		realizer: realizer,
		metrics:  recorder,
		logger:   logger,
	}
}

// RunResult is the result of a single instantiation and build.
type RunResult struct {
	// ReferencedPaths are all the paths identified during instantiation.
	ReferencedPaths []watch.Entry
	// Result is the realized build output and its GC root. The caller
	// closes it, or persists it, when done with the path.
	Result *nix.RootedPath
}

// Run instantiates nixFile with instrumentation and builds the resulting
// derivation. opts apply to both steps. The build is not attempted if
// instantiation fails.
func (b *Builder) Run(ctx context.Context, nixFile nix.NixFile, store ContentStore, opts nix.Options) (*RunResult, error) {
	if logger.InvocationIDFromContext(ctx) == "" {
		ctx = logger.ContextWithInvocationID(ctx, uuid.New().String())
	}
	ctx = logger.ContextWithNixFile(ctx, nixFile.String())
	log := (&logger.Logger{Logger: b.logger}).WithContext(ctx).Logger
	log.InfoContext(ctx, "starting instrumented build")

	inst, err := b.instantiate(ctx, log, nixFile, store, opts)
	if err != nil {
		logFailure(ctx, log, "instantiation failed", err)
		return nil, err
	}
	// The build output gets its own root; the derivation root is only
	// needed until then.
	defer inst.Output.Close()

	rooted, err := b.realize(ctx, inst.Output.Path, opts)
	if err != nil {
		logFailure(ctx, log.With("drv", inst.Output.Path), "build failed", err)
		return nil, err
	}

	log.InfoContext(ctx, "instrumented build completed",
		"drv", inst.Output.Path,
		"watch_entries", len(inst.ReferencedPaths),
	)
	return &RunResult{
		ReferencedPaths: inst.ReferencedPaths,
		Result:          rooted,
	}, nil
}

func (b *Builder) realize(ctx context.Context, drv nix.DrvFile, opts nix.Options) (rooted *nix.RootedPath, err error) {
	start := time.Now()
	defer func() {
		b.metrics.ObserveStepDuration(metrics.StepBuild, time.Since(start))
		b.metrics.IncStepOutcome(metrics.StepBuild, outcomeOf(err))
	}()
	return b.realizer.Realize(ctx, drv, opts)
}

func logFailure(ctx context.Context, log *slog.Logger, msg string, err error) {
	resp := builderrors.ToErrorResponse(err)
	log.WarnContext(ctx, msg,
		"error", err,
		"code", resp.Code,
		"category", resp.Category,
		"actionable", resp.Actionable,
	)
}
