package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// DefaultConfigPath is read when no -config flag is given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-datasources.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (the API token) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// APIRoot is the feed-manager base URL every request path is joined onto.
	APIRoot string `yaml:"api_root" env:"API_ROOT" env-default:"http://localhost:8400"`

	// APIToken is sent as a bearer token when set.
	APIToken string `yaml:"-" env:"API_TOKEN"` // Secret - not in YAML

	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" env:"REQUEST_TIMEOUT_SECONDS" env-default:"30"`
	LogLevel              string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// PreviewLimit is the row limit used by preview commands when none is given.
	PreviewLimit int `yaml:"preview_limit" env:"PREVIEW_LIMIT" env-default:"10"`

	// Concurrency bounds the parallel schema fetches of dump-schemas.
	Concurrency int `yaml:"concurrency" env:"DUMP_CONCURRENCY" env-default:"4"`
}

// Load reads configuration from path with environment variable overrides.
// A .env file in the working directory is loaded first when present. A
// missing config file is not an error; defaults and environment apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(version, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.APIRoot = ResolveURLForDocker(cfg.APIRoot)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIRoot)
	if err != nil {
		return fmt.Errorf("api_root is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_root must be an absolute http(s) URL, got %q", c.APIRoot)
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.PreviewLimit <= 0 {
		return fmt.Errorf("preview_limit must be positive, got %d", c.PreviewLimit)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return level, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return level, nil
}

// IsLocal reports whether the client runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev"
}
