// Package config loads Engine and store defaults: built-in defaults,
// overridden by an optional TOML file, overridden by environment
// variables.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/dshills/agentgraph-go/graph"
)

// Config is the root configuration document for cmd/graphrun and any
// other process that wants to assemble an Engine without wiring every
// Option by hand.
type Config struct {
	Store      StoreConfig      `toml:"store"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Anthropic  ProviderConfig   `toml:"anthropic"`
	OpenAI     ProviderConfig   `toml:"openai"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Tracing    TracingConfig    `toml:"tracing"`
}

// StoreConfig selects and configures a graph.CheckpointStore backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // "memory", "sqlite", or "mysql"
	Path    string `toml:"path"`    // sqlite file path
	DSN     string `toml:"dsn"`     // mysql DSN
}

// CheckpointConfig mirrors graph.CheckpointConfig in TOML-friendly form.
type CheckpointConfig struct {
	SaveEveryNNodes      int  `toml:"save_every_n_nodes"`
	SaveEveryNSeconds    int  `toml:"save_every_n_seconds"`
	SaveOnError          bool `toml:"save_on_error"`
	MaxCheckpointsPerRun int  `toml:"max_checkpoints_per_run"`
}

// ProviderConfig holds the credentials and default model for one LLM
// provider adapter.
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

type TracingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

// Default returns a Config with all defaults applied: an in-memory store
// and periodic checkpointing every 5 nodes or 30 seconds.
func Default() Config {
	return Config{
		Store: StoreConfig{Backend: "memory"},
		Checkpoint: CheckpointConfig{
			SaveEveryNNodes:      5,
			SaveEveryNSeconds:    30,
			SaveOnError:          true,
			MaxCheckpointsPerRun: 20,
		},
		Anthropic: ProviderConfig{Model: "claude-sonnet-4-5-20250929"},
		OpenAI:    ProviderConfig{Model: "gpt-4o"},
	}
}

// Load reads Config: defaults, then path (if it exists), then env vars.
// An empty path is not an error - the caller runs on defaults plus
// whatever environment variables are set.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if _, err := toml.Decode(string(data), &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	if v := os.Getenv("GRAPHRUN_ANTHROPIC_API_KEY"); v != "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("GRAPHRUN_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("GRAPHRUN_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("GRAPHRUN_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("GRAPHRUN_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	return cfg, nil
}

// GraphCheckpointConfig converts the TOML-friendly fields into a
// graph.CheckpointConfig.
func (c Config) GraphCheckpointConfig() graph.CheckpointConfig {
	return graph.CheckpointConfig{
		SaveEveryNNodes:      c.Checkpoint.SaveEveryNNodes,
		SaveEveryNSeconds:    c.Checkpoint.SaveEveryNSeconds,
		SaveOnError:          c.Checkpoint.SaveOnError,
		MaxCheckpointsPerRun: c.Checkpoint.MaxCheckpointsPerRun,
	}
}
