// Package logger builds the zap loggers used across the service.
package logger

import (
	"fmt"

	"github.com/straye-as/production-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a JSON logger in production or when format is "json",
// and a colored console logger otherwise. Unknown levels mean info.
func NewLogger(cfg *config.LoggingConfig, app *config.AppConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if app.Environment == "production" || cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]interface{}{
		"app":         app.Name,
		"environment": app.Environment,
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s logger: %w", level, err)
	}
	return log, nil
}

func WithRequest(log *zap.Logger, method, path, requestID string) *zap.Logger {
	return log.With(
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
	)
}

// WithOperator tags log lines with the shop-floor operator; an empty ID leaves log unchanged
func WithOperator(log *zap.Logger, operatorID string) *zap.Logger {
	if operatorID == "" {
		return log
	}
	return log.With(zap.String("operator_id", operatorID))
}
