// Package config provides environment-based configuration for the build orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for instrumented builds.
type Config struct {
	// Nix executables and pass-through options
	Nix NixConfig `yaml:"nix"`

	// RunTimeClosure is a Nix file describing the runtime dependencies
	// the instrumented shell needs. Empty builds the expression unmodified.
	RunTimeClosure string `yaml:"run_time_closure"`

	// TempDir is the parent of ephemeral GC root directories.
	TempDir string `yaml:"temp_dir"`

	// CASDir holds staged instrumentation scripts.
	CASDir string `yaml:"cas_dir"`

	// Permanent roots
	RootsDir   string `yaml:"roots_dir"`
	GCRootsDir string `yaml:"gc_roots_dir"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// MetricsNamespace prefixes every Prometheus metric name.
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// NixConfig holds Nix-specific configuration.
type NixConfig struct {
	Instantiate string `yaml:"instantiate"`
	Build       string `yaml:"build"`
	StoreDir    string `yaml:"store_dir"`
	// OptionsFile is a YAML file with extra Nix options.
	OptionsFile string `yaml:"options_file"`
}

// Load reads configuration from the YAML file named by NIXTRACE_CONFIG, if
// set, then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("NIXTRACE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration from the environment without a
// config file and without validation, useful for testing.
func LoadWithDefaults() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Nix.Instantiate == "" {
		return fmt.Errorf("NIXTRACE_NIX_INSTANTIATE is required")
	}
	if c.Nix.Build == "" {
		return fmt.Errorf("NIXTRACE_NIX_BUILD is required")
	}
	if c.CASDir == "" {
		return fmt.Errorf("NIXTRACE_CAS_DIR is required")
	}
	if c.RunTimeClosure != "" && !filepath.IsAbs(c.RunTimeClosure) {
		return fmt.Errorf("NIXTRACE_RUN_TIME_CLOSURE must be an absolute path, got %q", c.RunTimeClosure)
	}
	return nil
}

func defaults() *Config {
	cfg := &Config{
		Nix: NixConfig{
			Instantiate: "nix-instantiate",
			Build:       "nix-build",
			StoreDir:    "/nix/store",
		},
		TempDir:          os.TempDir(),
		LogLevel:         "info",
		MetricsNamespace: "nixtrace",
	}
	if dir, err := os.UserCacheDir(); err == nil {
		cfg.CASDir = filepath.Join(dir, "nixtrace", "cas")
		cfg.RootsDir = filepath.Join(dir, "nixtrace", "gc_roots")
	}
	if user := os.Getenv("USER"); user != "" {
		cfg.GCRootsDir = filepath.Join("/nix/var/nix/gcroots/per-user", user)
	}
	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Nix.Instantiate = getEnv("NIXTRACE_NIX_INSTANTIATE", c.Nix.Instantiate)
	c.Nix.Build = getEnv("NIXTRACE_NIX_BUILD", c.Nix.Build)
	c.Nix.StoreDir = getEnv("NIXTRACE_NIX_STORE_DIR", c.Nix.StoreDir)
	c.Nix.OptionsFile = getEnv("NIXTRACE_NIX_OPTIONS_FILE", c.Nix.OptionsFile)
	c.RunTimeClosure = getEnv("NIXTRACE_RUN_TIME_CLOSURE", c.RunTimeClosure)
	c.TempDir = getEnv("NIXTRACE_TEMP_DIR", c.TempDir)
	c.CASDir = getEnv("NIXTRACE_CAS_DIR", c.CASDir)
	c.RootsDir = getEnv("NIXTRACE_ROOTS_DIR", c.RootsDir)
	c.GCRootsDir = getEnv("NIXTRACE_GC_ROOTS_DIR", c.GCRootsDir)
	c.LogLevel = getEnv("NIXTRACE_LOG_LEVEL", c.LogLevel)
	c.LogJSON = getBoolEnv("NIXTRACE_LOG_JSON", c.LogJSON)
	c.MetricsNamespace = getEnv("NIXTRACE_METRICS_NAMESPACE", c.MetricsNamespace)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
