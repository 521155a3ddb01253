package builder

import (
	"context"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/narvanalabs/nixtrace/internal/cas"
	"github.com/narvanalabs/nixtrace/internal/metrics"
	"github.com/narvanalabs/nixtrace/internal/nix"
	"github.com/narvanalabs/nixtrace/pkg/config"
	"github.com/narvanalabs/nixtrace/pkg/logger"
)

// Environment bundles a Builder with the store, options and roots it was
// configured with.
type Environment struct {
	Builder *Builder
	Store   *cas.Store
	Options nix.Options
	Roots   *nix.Roots
	Logger  *logger.Logger
}

// NewEnvironment wires a Builder from cfg. Metrics are registered with reg
// when it is non-nil. A nil log is built from cfg.LogLevel and cfg.LogJSON.
func NewEnvironment(cfg *config.Config, reg prom.Registerer, log *logger.Logger) (*Environment, error) {
	if log == nil {
		log = logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	}

	store, err := cas.New(cfg.CASDir)
	if err != nil {
		return nil, fmt.Errorf("opening content store: %w", err)
	}

	opts := nix.EmptyOptions()
	if cfg.Nix.OptionsFile != "" {
		opts, err = nix.LoadOptions(cfg.Nix.OptionsFile)
		if err != nil {
			return nil, err
		}
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if reg != nil {
		recorder = metrics.NewPrometheusRecorder(reg, cfg.MetricsNamespace)
	}

	realizer := nix.NewBuildRealizer(cfg.Nix.Build, cfg.TempDir, log.WithComponent("realizer").Logger)
	realizer.StoreDir = cfg.Nix.StoreDir
	b := NewBuilder(&Config{
		NixInstantiate: cfg.Nix.Instantiate,
		RunTimeClosure: cfg.RunTimeClosure,
		TempDir:        cfg.TempDir,
	}, realizer, recorder, log.WithComponent("builder").Logger)

	return &Environment{
		Builder: b,
		Store:   store,
		Options: opts,
		Roots:   &nix.Roots{Dir: cfg.RootsDir, GCRootsDir: cfg.GCRootsDir},
		Logger:  log,
	}, nil
}

// Build runs the instrumented build of nixFile with the environment's
// store and options.
func (e *Environment) Build(ctx context.Context, nixFile nix.NixFile) (*RunResult, error) {
	return e.Builder.Run(ctx, nixFile, e.Store, e.Options)
}
