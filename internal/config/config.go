// Package config handles loading and parsing application configuration.
// The config file path comes from (in priority order):
//  1. The --config command-line flag (passed in by the caller)
//  2. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//
// With neither set, configuration is read from environment variables
// alone. A .env file in the working directory, when present, is loaded
// into the environment first.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/aanand-mishra/heroes-api/internal/storage/backend"
)

// Recognised values for Config.Env.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
//
// env-required:"true" means the app refuses to start if that value is
// missing — better to crash at boot than to silently use a wrong default.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	// DatabaseURL selects the storage backend and its connection target:
	// a SQLite path, sqlite://path, sqlite+gorm://path or postgres://...
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`

	// LogFile, when set, receives a rotated copy of the log output.
	LogFile string `yaml:"log_file" env:"LOG_FILE"`

	HTTPServer `yaml:"http_server"`
}

// HTTPServer holds settings specific to the HTTP server.
// Nested under http_server: in the YAML file.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-default:"localhost:8082"`

	// ConflictStatus is the status returned when a create collides with
	// an existing id. 404 is what clients of this API have always seen;
	// 409 is accepted for deployments that want the accurate code.
	ConflictStatus int `yaml:"conflict_status" env:"HTTP_CONFLICT_STATUS" env-default:"404"`

	// CORSOrigins lists the origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:"," env-default:"*"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Load reads, validates, and returns the application config.
// configPath may be empty, in which case CONFIG_PATH is consulted.
func Load(configPath string) (*Config, error) {
	// Ignore the error: a missing .env file is the normal case.
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if configPath != "" {
		// Verify the file exists before trying to read it, so the error
		// names the path instead of a cryptic "open: no such file".
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}

		// ReadConfig parses the YAML, then applies env overrides and
		// env-default / env-required constraints.
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDev, EnvStaging, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("env must be one of dev, staging, prod; got %q", c.Env))
	}

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url must not be empty"))
	} else if _, _, err := backend.Parse(c.DatabaseURL); err != nil {
		errs = append(errs, fmt.Errorf("database_url: %w", err))
	}

	if c.ConflictStatus != http.StatusNotFound && c.ConflictStatus != http.StatusConflict {
		errs = append(errs, fmt.Errorf("conflict_status must be 404 or 409; got %d", c.ConflictStatus))
	}

	if c.Addr == "" {
		errs = append(errs, errors.New("http_server.address must not be empty"))
	}

	return errors.Join(errs...)
}
