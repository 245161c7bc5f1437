package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jackmoore7/coles-web-app/internal/store"
)

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
// The Cloudflare origin allow-list is only enforced in production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment normalises the provided value. Unknown values fall back
// to Development so the application can still start with sensible defaults.
func ParseEnvironment(v string) Environment {
	if Environment(v) == Production {
		return Production
	}
	return Development
}

// Config defines all configurable parameters for the server, sourced from
// environment variables (loaded from .env for local runs).
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	DB store.Config

	// Abuse gate
	BanMaxNotFound     int `envconfig:"BAN_MAX_NOT_FOUND" default:"1"`
	BanDurationSeconds int `envconfig:"BAN_DURATION_SECONDS" default:"86400"`

	// Snapshot cache
	CacheCutoffHour int `envconfig:"CACHE_CUTOFF_HOUR" default:"20"`

	// Query engine
	PageSize int `envconfig:"PAGE_SIZE" default:"20"`
}

// Load reads .env if present (not fatal if missing) and processes the
// environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environment returns the parsed deployment environment.
func (c Config) Environment() Environment {
	return ParseEnvironment(c.Env)
}

// BanDuration returns the configured ban window.
func (c Config) BanDuration() time.Duration {
	return time.Duration(c.BanDurationSeconds) * time.Second
}
