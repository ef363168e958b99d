// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the stated service settings.
type Config struct {
	DBPath          string        `env:"STATED_DB" envDefault:"spiral_state.db"`
	Addr            string        `env:"STATED_ADDR" envDefault:"localhost:50061"`
	Slot            string        `env:"STATED_SLOT" envDefault:"process_state"`
	LogLevel        string        `env:"STATED_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"STATED_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Slot == "" {
		return Config{}, fmt.Errorf("STATED_SLOT must not be empty")
	}
	return cfg, nil
}

// NewLogger builds a production zap logger at the given level name.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
