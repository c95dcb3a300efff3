// Package config loads boundary-layer configuration for the mdpress
// CLI and server from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrConfigInvalid  = errors.New("invalid config value")
)

// MaxConfigBytes limits config input to prevent memory exhaustion.
const MaxConfigBytes = 1 << 20

// Config holds everything the boundary layer injects into the core.
type Config struct {
	Template     string        `yaml:"template"`
	Page         PageConfig    `yaml:"page"`
	HeaderFooter bool          `yaml:"headerFooter"`
	DeadlineMs   int           `yaml:"overallDeadlineMs"`
	MaxEngines   int           `yaml:"maxConcurrentEngines"`
	Engines      EnginesConfig `yaml:"engines"`
	Listen       string        `yaml:"listen"`
}

// PageConfig mirrors the core page settings.
type PageConfig struct {
	Size        string  `yaml:"size"`
	Orientation string  `yaml:"orientation"`
	Margin      float64 `yaml:"margin"`
}

// EnginesConfig configures the degradation tiers.
type EnginesConfig struct {
	ExecPath  string `yaml:"execPath"`  // packaged renderer binary
	RemoteURL string `yaml:"remoteURL"` // remote render service endpoint
	Reject    bool   `yaml:"rejectWhenSaturated"`
}

// Default returns a config with production defaults.
func Default() *Config {
	return &Config{
		Template:   "document",
		DeadlineMs: 30_000,
		Listen:     ":8080",
	}
}

// Load reads and validates a YAML config file. A missing path returns
// ErrConfigNotFound so callers can fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if len(data) > MaxConfigBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigParse, len(data), MaxConfigBytes)
	}

	cfg := Default()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks bounds the core would reject anyway, so failures
// surface at startup instead of per request.
func (c *Config) Validate() error {
	if c.DeadlineMs < 0 {
		return fmt.Errorf("%w: overallDeadlineMs must be >= 0", ErrConfigInvalid)
	}
	if c.MaxEngines < 0 {
		return fmt.Errorf("%w: maxConcurrentEngines must be >= 0", ErrConfigInvalid)
	}
	if c.Page.Margin < 0 {
		return fmt.Errorf("%w: page margin must be >= 0", ErrConfigInvalid)
	}
	return nil
}
