// Package logging builds the structured loggers used across the CLI and
// engine.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Format  string // "text" or "json"
	Quiet   bool
	Verbose bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{Format: "text"}
}

// New creates a zap logger from the configuration. Quiet raises the
// threshold to error; verbose lowers it to debug.
func New(config *Config) (*zap.Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level := zapcore.InfoLevel
	if config.Quiet {
		level = zapcore.ErrorLevel
	} else if config.Verbose {
		level = zapcore.DebugLevel
	}

	var zapCfg zap.Config
	switch config.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "text", "":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format: %s", config.Format)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
