// Package config loads server configuration from the environment.
package config

import "github.com/caarlos0/env/v11"

// Config holds all server-level settings. Domain configuration (the
// pool fee) lives in the settings store, not here.
type Config struct {
	Port              int      `env:"PORT" envDefault:"8080"`
	DBPath            string   `env:"DB_PATH" envDefault:"quitpool.db"`
	LifecycleSchedule string   `env:"LIFECYCLE_SCHEDULE" envDefault:"@hourly"`
	AllowedOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
	Debug             bool     `env:"DEBUG" envDefault:"false"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
