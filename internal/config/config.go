// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration. All values come from
// LANGSEARCH_-prefixed environment variables with sensible local defaults.
type Config struct {
	// DataDir holds the SQLite database and the bleve index generations.
	DataDir string `envconfig:"DATA_DIR" default:"./data"`
	// BindAddr is the HTTP listen address for serve.
	BindAddr string `envconfig:"BIND_ADDR" default:"localhost:8095"`
	// Workers is the size of the index maintenance worker pool.
	Workers int `envconfig:"WORKERS" default:"4"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("langsearch", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// DBPath is the SQLite database location under DataDir.
func (c *Config) DBPath() string {
	return c.DataDir + "/langsearch.db"
}

// IndexPath is the bleve index root under DataDir.
func (c *Config) IndexPath() string {
	return c.DataDir + "/indices"
}
