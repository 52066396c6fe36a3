package logger_test

import (
	"testing"

	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		logging   config.LoggingConfig
		env       string
		wantDebug bool
	}{
		{"development debug", config.LoggingConfig{Level: "debug", Format: "console"}, "development", true},
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, "development", false},
		{"production ignores format", config.LoggingConfig{Level: "warn", Format: "console"}, "production", false},
		{"invalid level falls back to info", config.LoggingConfig{Level: "loud"}, "development", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.NewLogger(&tt.logging, &config.AppConfig{Name: "production-api", Environment: tt.env})
			require.NoError(t, err)
			require.NotNil(t, log)
			assert.Equal(t, tt.wantDebug, log.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestWithRequestAndOperator(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.Same(t, base, logger.WithOperator(base, ""))

	logger.WithOperator(logger.WithRequest(base, "POST", "/api/v1/work-orders", "req-1"), "op-9").Info("entry recorded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/work-orders", fields["path"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "op-9", fields["operator_id"])
}
