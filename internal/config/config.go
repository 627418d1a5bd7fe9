// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/cyp0633/calrest/server/recurrence"
	"github.com/joho/godotenv"
)

// Config holds the runtime settings of calrestd.
type Config struct {
	Addr              string        `env:"CALREST_ADDR" envDefault:":8080"`
	BaseURI           string        `env:"CALREST_BASE_URI" envDefault:"/api/rest/latest/"`
	Realm             string        `env:"CALREST_REALM" envDefault:"calrest"`
	FixturesFile      string        `env:"CALREST_FIXTURES"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"text"`
	RecurrenceProfile string        `env:"CALREST_RECURRENCE_PROFILE" envDefault:"default"`
	MaxBodyBytes      int           `env:"CALREST_MAX_BODY_BYTES" envDefault:"1048576"`
	ShutdownTimeout   time.Duration `env:"CALREST_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout time.Duration `env:"CALREST_READ_HEADER_TIMEOUT" envDefault:"5s"`
}

// Load reads the given .env files (a missing file is not an error when no
// file is named explicitly) and parses the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		// Load .env file first, but don't error if it doesn't exist.
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("error loading env files: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env cannot check by itself.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if !strings.HasPrefix(c.BaseURI, "/") {
		return fmt.Errorf("base URI %q must start with '/'", c.BaseURI)
	}
	if _, ok := recurrence.Profiles[c.RecurrenceProfile]; !ok {
		return fmt.Errorf("unknown recurrence profile %q", c.RecurrenceProfile)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Engine builds the recurrence engine for the configured profile.
func (c *Config) Engine() *recurrence.Engine {
	profile, ok := recurrence.Profiles[c.RecurrenceProfile]
	if !ok {
		profile = recurrence.DefaultEngineConfig
	}
	return recurrence.NewEngineWithConfig(profile)
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
