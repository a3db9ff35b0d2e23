// Package config loads the studyrun tool configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultWalkTimeoutSec bounds the measurement-file directory walk.
const DefaultWalkTimeoutSec = 30

// Config is the studyrun.yaml tool configuration. Repository and
// Destination, when set, override the values carried by the study file.
type Config struct {
	Repository  string `yaml:"repository"`
	Destination string `yaml:"destination"`

	WalkTimeoutSec int    `yaml:"walk_timeout_sec"`
	LogPrefix      string `yaml:"log_prefix"`

	DebounceMs int `yaml:"debounce_ms"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a studyrun.yaml file. Unknown fields are
// rejected.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(content)
}

// LoadBytes parses configuration from raw YAML.
func LoadBytes(content []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WalkTimeoutSec < 0 {
		return fmt.Errorf("walk_timeout_sec must be >= 0, got %d", c.WalkTimeoutSec)
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must be >= 0, got %d", c.DebounceMs)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.WalkTimeoutSec == 0 {
		c.WalkTimeoutSec = DefaultWalkTimeoutSec
	}
	if c.LogPrefix == "" {
		c.LogPrefix = "studyrun"
	}
	if c.DebounceMs == 0 {
		c.DebounceMs = 250
	}
}
