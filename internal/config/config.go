// Package config loads the benchmark configuration authored by the
// encoding pipeline: render options, network shaping, server pacing, the
// engine matrix, and the test case list.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/paintbench/paintbench/pkg/convergence"
)

// RunsEnvVar overrides the configured run count when set to a positive
// integer. An explicit CLI flag still wins over it.
const RunsEnvVar = "PAINTBENCH_RUNS"

const defaultRuns = 5

// RenderConfig controls the harness document around the image element.
type RenderConfig struct {
	BG  string `yaml:"bg"`
	Fit string `yaml:"fit"`
}

// ServerConfig controls chunk pacing of the content server.
type ServerConfig struct {
	ChunkBytes   int `yaml:"chunkBytes"`
	ChunkDelayMs int `yaml:"chunkDelayMs"`
}

// NetworkConfig controls browser-side network emulation and the paced
// server. Throttle gates the browser-side emulation; server pacing is
// always on.
type NetworkConfig struct {
	Throttle bool         `yaml:"throttle"`
	Latency  int          `yaml:"latency"`
	DownKbps int          `yaml:"downKbps"`
	UpKbps   int          `yaml:"upKbps"`
	Server   ServerConfig `yaml:"server"`
}

// EngineConfig names one browser engine to benchmark. Bin is the path to
// the engine's executable; empty means the Rod-managed Chromium.
type EngineConfig struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Bin   string `yaml:"bin"`
}

// Config is the full benchmark configuration.
type Config struct {
	Render    RenderConfig           `yaml:"render"`
	Network   NetworkConfig          `yaml:"network"`
	Runs      int                    `yaml:"runs"`
	Engines   []EngineConfig         `yaml:"engines"`
	Tests     []convergence.TestCase `yaml:"tests"`
	Root      string                 `yaml:"root"`      // directory served by the paced server
	OutputDir string                 `yaml:"outputDir"` // where run artifacts are written
}

// Default returns the default configuration. Tests must come from a
// config file; everything else has a workable fallback.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			BG:  "#111",
			Fit: "contain",
		},
		Network: NetworkConfig{
			Server: ServerConfig{
				ChunkBytes:   16384,
				ChunkDelayMs: 60,
			},
		},
		Runs:      defaultRuns,
		Engines:   []EngineConfig{{ID: "chromium", Label: "Chromium"}},
		Root:      "testdata",
		OutputDir: "results",
	}
}

// Load reads configuration from a YAML file, merged over defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Tests))
	for _, tc := range c.Tests {
		if tc.ID == "" {
			return fmt.Errorf("test case with empty id (url %q)", tc.URL)
		}
		if seen[tc.ID] {
			return fmt.Errorf("duplicate test case id %q", tc.ID)
		}
		seen[tc.ID] = true
		if tc.URL == "" {
			return fmt.Errorf("test case %q has no url", tc.ID)
		}
	}
	for _, e := range c.Engines {
		if e.ID == "" {
			return fmt.Errorf("engine with empty id")
		}
	}
	return nil
}

// ResolveRuns applies the run-count precedence: explicit flag value (>0),
// then the environment override, then the config value, then the default.
func (c *Config) ResolveRuns(flagRuns int) int {
	if flagRuns > 0 {
		return flagRuns
	}
	if env := os.Getenv(RunsEnvVar); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			return n
		}
	}
	if c.Runs > 0 {
		return c.Runs
	}
	return defaultRuns
}
