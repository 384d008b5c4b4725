package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_EnvironmentDefaults(t *testing.T) {
	prod := NewLogger("production", "")
	require.NotNil(t, prod)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))

	dev := NewLogger("development", "")
	require.NotNil(t, dev)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_LevelOverride(t *testing.T) {
	// LOG_LEVEL перекрывает порог окружения в обе стороны
	verbose := NewLogger("production", "debug")
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))

	quiet := NewLogger("development", "error")
	assert.False(t, quiet.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewLogger_UnknownLevelIgnored(t *testing.T) {
	logger := NewLogger("production", "loud")
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
