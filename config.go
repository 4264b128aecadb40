package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"local"`
	Addr   string `env:"ADDR" envDefault:"0.0.0.0:8080"`

	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	SaveBackend string `env:"SAVE_BACKEND" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`

	PlatformMode string `env:"PLATFORM_MODE" envDefault:"mock"`
	TuningPath   string `env:"TUNING_PATH"`

	TickInterval       time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	StreamInterval     time.Duration `env:"STREAM_INTERVAL" envDefault:"1s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	PresenceTimeout    time.Duration `env:"PRESENCE_TIMEOUT" envDefault:"45s"`
	AdTimeout          time.Duration `env:"AD_TIMEOUT" envDefault:"45s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	Timezone           string        `env:"TIMEZONE" envDefault:"Local"`

	EnableTelemetry bool `env:"ENABLE_TELEMETRY" envDefault:"true"`
	DevMode         bool `env:"DEV_MODE" envDefault:"false"`

	backend  SaveBackend
	platform PlatformMode
	location *time.Location
}

// LoadConfig reads the server configuration from the environment and
// rejects unknown enumerations and non-positive intervals.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	backend, err := ParseSaveBackend(strings.ToLower(strings.TrimSpace(c.SaveBackend)))
	if err != nil {
		return err
	}
	mode, err := ParsePlatformMode(strings.ToLower(strings.TrimSpace(c.PlatformMode)))
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	for name, d := range map[string]time.Duration{
		"TICK_INTERVAL":   c.TickInterval,
		"STREAM_INTERVAL": c.StreamInterval,
		"AD_TIMEOUT":      c.AdTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.PresenceTimeout < 0 {
		return fmt.Errorf("PRESENCE_TIMEOUT must not be negative, got %s", c.PresenceTimeout)
	}
	c.backend = backend
	c.platform = mode
	c.location = loc
	return nil
}

func (c Config) Backend() SaveBackend {
	return c.backend
}

func (c Config) Platform() PlatformMode {
	return c.platform
}

func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c Config) savesPath() string {
	if c.backend == SaveBackendFile {
		return filepath.Join(c.DataDir, "saves")
	}
	return filepath.Join(c.DataDir, "saves.db")
}

func (c Config) cloudDir() string {
	return filepath.Join(c.DataDir, "cloud")
}

func (c Config) telemetryDir() string {
	return filepath.Join(c.DataDir, "telemetry")
}
