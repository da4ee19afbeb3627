package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`  // logrus level name
	LogFormat   string `yaml:"log_format"` // "text" or "json"
	MaxSessions int    `yaml:"max_sessions"`

	// Scene-generation service. An empty endpoint disables generation.
	GeneratorEndpoint string `yaml:"generator_endpoint"`
	GeneratorAPIKey   string `yaml:"generator_api_key"`

	// DefaultProject is an optional .jrblx path loaded as the starting
	// scene for new sessions. The built-in starter island is used when
	// empty.
	DefaultProject string `yaml:"default_project"`

	// DataDir is where saved projects live.
	DataDir string `yaml:"data_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:        8420,
		LogLevel:    "info",
		LogFormat:   "text",
		MaxSessions: 64,
		DataDir:     "./data",
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["port"] {
		cfg.Port = fromFile.Port
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	if !explicitFlags["log-format"] {
		cfg.LogFormat = fromFile.LogFormat
	}
	if !explicitFlags["max-sessions"] {
		cfg.MaxSessions = fromFile.MaxSessions
	}
	if !explicitFlags["generator-endpoint"] {
		cfg.GeneratorEndpoint = fromFile.GeneratorEndpoint
	}
	if !explicitFlags["generator-api-key"] {
		cfg.GeneratorAPIKey = fromFile.GeneratorAPIKey
	}
	if !explicitFlags["default-project"] {
		cfg.DefaultProject = fromFile.DefaultProject
	}
	if !explicitFlags["data-dir"] {
		cfg.DataDir = fromFile.DataDir
	}
}
