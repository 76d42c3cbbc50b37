package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
)

func TestApplyLoggingConfigRetunesLevel(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	container := &Container{Logger: zap.NewNop(), LogLevel: level}

	cfg := config.Default()
	cfg.Logging.Level = "debug"
	container.ApplyLoggingConfig(cfg)

	assert.Equal(t, zapcore.DebugLevel, level.Level())
}

func TestApplyLoggingConfigIgnoresInvalidLevel(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	container := &Container{Logger: zap.NewNop(), LogLevel: level}

	cfg := config.Default()
	cfg.Logging.Level = "shouting"
	container.ApplyLoggingConfig(cfg)

	assert.Equal(t, zapcore.WarnLevel, level.Level())
}

func TestProvideLoggerSharesAtomicLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "info"

	level := provideLogLevel(cfg)
	logger, err := provideLogger(cfg, level)
	assert.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
