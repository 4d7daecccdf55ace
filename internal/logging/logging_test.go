package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/campusbourses/internal/model"
)

func TestNew_WritesToFileAtLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "campus.log")

	logger, err := New(model.LogConfig{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shown")
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_Development(t *testing.T) {
	logger, err := New(model.LogConfig{Level: "debug", Development: true, File: filepath.Join(t.TempDir(), "dev.log")})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(model.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
