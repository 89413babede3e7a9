// Package logging provides zap logger helpers and the process-wide logger.
package logging

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DevelopmentEnv switches InitLogger to the development encoder when truthy.
const DevelopmentEnv = "TRENDING_LOGGING_DEVELOPMENT"

// L is the global logger. It discards everything until InitLogger runs.
var L = zap.NewNop()

// InitLogger replaces L with a configured logger. It runs before Viper is
// loaded, so the mode comes straight from the environment.
func InitLogger() {
	development, _ := strconv.ParseBool(os.Getenv(DevelopmentEnv))
	logger, err := New(development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return
	}
	L = logger
	zap.ReplaceGlobals(logger)
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
