// Package config provides configuration management for the interpreter process.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"tlang/internal/logging"
)

// Config is the main process configuration.
type Config struct {
	// Version is the configuration schema version.
	Version string `json:"version"`

	// Pipeline contains pipeline engine settings.
	Pipeline PipelineConfig `json:"pipeline"`

	// Logging contains logging configuration.
	Logging logging.Config `json:"logging"`
}

// PipelineConfig contains pipeline-engine-related settings.
type PipelineConfig struct {
	// ArtifactRoot is the directory artifacts and logs are written under
	// (spec.md §6.2's "_pipeline/" by default).
	ArtifactRoot string `json:"artifact_root"`

	// Unsafe permits filesystem-touching builtins inside pipeline node
	// expressions when re-running in a sandbox that lacks nix-build
	// (spec.md §6.3, "run --unsafe").
	Unsafe bool `json:"unsafe"`

	// NixBuildPath is the nix-build executable to shell out to, if present
	// on PATH (spec.md §6.4). Empty means "search PATH".
	NixBuildPath string `json:"nix_build_path,omitempty"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Pipeline: PipelineConfig{
			ArtifactRoot: "_pipeline",
			Unsafe:       false,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, falling back to defaults if the file
// does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var globalConfig = Default()

// Get returns the global configuration.
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration.
func Set(cfg *Config) {
	globalConfig = cfg
}
