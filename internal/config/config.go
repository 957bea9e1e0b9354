// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the environment-driven settings for the yesno service
type Config struct {
	// Port is the TCP port the HTTP server listens on
	Port int

	// BaseURL, when set, is the externally visible base URL announced to
	// SSE clients. Required behind TLS-terminating proxies.
	BaseURL string

	// AllowOrigin is the CORS allow-origin value applied to every response
	AllowOrigin string

	// Environment names the deployment environment; "development" raises
	// log verbosity and nothing else
	Environment string
}

// Default returns the configuration used when the environment sets nothing
func Default() *Config {
	return &Config{
		Port:        8080,
		AllowOrigin: "*",
		Environment: "production",
	}
}

// Load reads configuration from the process environment, after loading a
// .env file when one is present.
func Load() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := getenv("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := getenv("CORS_ALLOW_ORIGIN"); v != "" {
		cfg.AllowOrigin = v
	}

	if v := getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	return cfg, nil
}

// IsDevelopment reports whether the environment name asks for debug logging
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
