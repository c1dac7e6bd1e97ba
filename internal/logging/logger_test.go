package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerWritesFile(t *testing.T) {

	require := require.New(t)

	file := filepath.Join(t.TempDir(), "gridfleet.log")
	logger := NewLogger(zap.InfoLevel, config.LogConfig{Format: "json", File: file, MaxSizeMB: 1})

	logger.Debug("hidden")
	logger.Info("fleet@default started", zap.Int("slaves", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(err)
	assert.Contains(t, string(data), "fleet@default started")
	assert.NotContains(t, string(data), "hidden")
}

func TestNewLoggerLevel(t *testing.T) {

	logger := NewLogger(zap.WarnLevel, config.LogConfig{Format: "console"})

	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}
