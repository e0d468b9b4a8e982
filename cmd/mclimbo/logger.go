package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gstoney/mclimbo/config"
)

// newLogger builds the application logger from the logging section.
func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	logLvl, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Development = cfg.Logging.Development
	logConfig.Level = zap.NewAtomicLevelAt(logLvl)
	if cfg.Logging.File != "" {
		logConfig.OutputPaths = []string{cfg.Logging.File}
	}
	logConfig.DisableCaller = !cfg.Logging.IncludeCaller
	logConfig.DisableStacktrace = !cfg.Logging.Development

	logConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Logging.File != "" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return logger.Sugar(), nil
}
