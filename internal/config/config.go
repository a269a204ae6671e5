// Package config provides configuration loading for idlesim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/logging"
	"github.com/talgya/idle-sim/internal/strategy"
	"gopkg.in/yaml.v3"
)

// DefaultDuration is the simulated time budget of a run.
const DefaultDuration = 10000000000.0

// Config contains all idlesim settings.
type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	API        APIConfig        `json:"api" yaml:"api"`
}

// SimulationConfig controls the runs themselves.
type SimulationConfig struct {
	// Duration is the simulated time budget.
	Duration float64 `json:"duration" yaml:"duration"`

	// Strategies lists the strategies used by compare, by registry name.
	Strategies []string `json:"strategies" yaml:"strategies"`

	// Strict makes a strategy choosing an item it cannot afford in time a
	// hard error instead of ending the run.
	Strict bool `json:"strict" yaml:"strict"`
}

// CatalogConfig selects and perturbs the item catalog.
type CatalogConfig struct {
	// Path is a YAML catalog file. Empty uses the built-in catalog.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Growth overrides the per-purchase cost multiplier. Zero keeps the
	// catalog's own value.
	Growth float64 `json:"growth,omitempty" yaml:"growth,omitempty"`

	// JitterSeed, when non-zero, perturbs starting costs with seeded noise.
	JitterSeed int64 `json:"jitter_seed,omitempty" yaml:"jitter_seed,omitempty"`

	// JitterAmplitude is the maximum relative cost change, in [0, 1).
	JitterAmplitude float64 `json:"jitter_amplitude" yaml:"jitter_amplitude"`
}

// StorageConfig configures the run archive.
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables the archive.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures log verbosity.
type LoggingConfig struct {
	// Level is "warn", "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port int `json:"port" yaml:"port"`

	// SimulatePerMinute limits POST /api/v1/simulate per client.
	SimulatePerMinute int `json:"simulate_per_minute" yaml:"simulate_per_minute"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Duration:   DefaultDuration,
			Strategies: []string{"cursor", "cheap", "expensive", "best"},
		},
		Catalog: CatalogConfig{
			JitterAmplitude: 0.1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		API: APIConfig{
			Port:              8080,
			SimulatePerMinute: 30,
		},
	}
}

// Load loads configuration from path, or from ~/.idlesim/config.yaml when
// path is empty and that file exists, then applies environment overrides.
// Order: defaults -> file -> environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(homeDir, ".idlesim", "config.yaml")
			if _, statErr := os.Stat(candidate); statErr == nil {
				path = candidate
			}
		}
	}

	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !(c.Simulation.Duration > 0) || math.IsInf(c.Simulation.Duration, 0) {
		return fmt.Errorf("duration must be positive and finite, got %g", c.Simulation.Duration)
	}
	for _, name := range c.Simulation.Strategies {
		if _, err := strategy.Lookup(name); err != nil {
			return err
		}
	}
	if g := c.Catalog.Growth; g != 0 && (!(g >= 1) || math.IsInf(g, 0)) {
		return fmt.Errorf("growth must be finite and at least 1, got %g", g)
	}
	if a := c.Catalog.JitterAmplitude; !(a >= 0 && a < 1) {
		return fmt.Errorf("jitter_amplitude must be in [0, 1), got %g", c.Catalog.JitterAmplitude)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.API.Port)
	}
	if c.API.SimulatePerMinute < 0 {
		return fmt.Errorf("simulate_per_minute must be non-negative, got %d", c.API.SimulatePerMinute)
	}
	return nil
}

// BuildCatalog returns the catalog described by the configuration.
func (c *Config) BuildCatalog() (*catalog.BuildInfo, error) {
	cat := catalog.Default()
	if c.Catalog.Path != "" {
		loaded, err := catalog.LoadFile(c.Catalog.Path)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	var err error
	if c.Catalog.Growth != 0 {
		if cat, err = cat.WithGrowth(c.Catalog.Growth); err != nil {
			return nil, err
		}
	}
	if c.Catalog.JitterSeed != 0 {
		if cat, err = catalog.Jitter(cat, c.Catalog.JitterSeed, c.Catalog.JitterAmplitude); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IDLESIM_DURATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.Duration = f
		}
	}

	if v := os.Getenv("IDLESIM_STRICT"); v != "" {
		cfg.Simulation.Strict = v == "true" || v == "1"
	}

	if v := os.Getenv("IDLESIM_CATALOG"); v != "" {
		cfg.Catalog.Path = v
	}

	if v := os.Getenv("IDLESIM_DB"); v != "" {
		cfg.Storage.Path = v
	}

	if v := os.Getenv("IDLESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("IDLESIM_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}
}
