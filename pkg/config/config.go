// Package config holds process configuration: defaults, an optional YAML
// file, and WEAVE_-prefixed environment variables, in ascending precedence.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultAllowedEventTypes is the stock allow-list; deployments admit new
// event categories through configuration alone.
var DefaultAllowedEventTypes = []string{
	"ocn.orca.decision.v1",
	"ocn.orca.explanation.v1",
	"ocn.weave.audit.v1",
}

// Config holds server configuration.
type Config struct {
	ListenAddr        string   `env:"LISTEN_ADDR" yaml:"listen_addr"`
	LogLevel          string   `env:"LOG_LEVEL" yaml:"log_level"`
	StorageBackend    string   `env:"STORAGE_BACKEND" yaml:"storage_backend"` // memory | sqlite | postgres
	DatabaseURL       string   `env:"DATABASE_URL" yaml:"database_url"`       // path for sqlite, DSN for postgres
	AllowedEventTypes []string `env:"ALLOWED_EVENT_TYPES" envSeparator:"," yaml:"allowed_event_types"`
}

// Default returns the stock configuration: durable sqlite in the working
// directory, info logging.
func Default() Config {
	return Config{
		ListenAddr:        ":8000",
		LogLevel:          "INFO",
		StorageBackend:    "sqlite",
		DatabaseURL:       "weave_receipts.db",
		AllowedEventTypes: DefaultAllowedEventTypes,
	}
}

// Load builds the effective configuration. When WEAVE_CONFIG_FILE names a
// YAML file it is layered over the defaults first; environment variables win
// over both.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("WEAVE_CONFIG_FILE"); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "WEAVE_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func loadFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
