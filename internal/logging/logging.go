// Package logging configures the process-wide zap logger. Components obtain a
// named child with Named and attach structured fields per call.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and encoding.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json or console
}

// New builds a logger without touching the globals.
func New(cfg Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Format, "console") {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Init replaces the zap globals and returns a func restoring the previous ones.
func Init(cfg Config) (func(), error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}
	restore := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		restore()
	}, nil
}

// Named returns a component logger derived from the current global logger.
func Named(component string) *zap.Logger {
	return zap.L().Named(component)
}
