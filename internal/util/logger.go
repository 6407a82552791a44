package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// InitLogger builds the process logger. JSON output in production, colored
// console output elsewhere. An unparsable level falls back to the config default.
func InitLogger(serviceName, env, level string) error {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		if parsed, err := zap.ParseAtomicLevel(level); err == nil {
			config.Level = parsed
		}
	}
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     env,
	}

	built, err := config.Build()
	if err != nil {
		return err
	}

	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
