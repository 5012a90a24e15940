package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New("", false)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = New("debug", true)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = New("loud", false)
	assert.Error(t, err)
}

func TestNewSlog_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewSlog(&buf, "warning", false)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("Chain reloaded", "records", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Chain reloaded")
	assert.Contains(t, out, "records=3")
	assert.NotContains(t, out, "\x1b[", "no color codes outside a terminal")
}

func TestNewSlog_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewSlog(&buf, "debug", true)
	require.NoError(t, err)

	logger.Debug("Mock chain written", "records", 25)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "Mock chain written", line["msg"])
	assert.Equal(t, float64(25), line["records"])
}

func TestNewSlog_Levels(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"trace": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"panic": slog.LevelError,
	} {
		got, err := slogLevel(level)
		require.NoError(t, err, level)
		assert.Equal(t, want, got, level)
	}

	_, err := NewSlog(&bytes.Buffer{}, "loud", false)
	assert.Error(t, err)
}

func TestPackageLogger(t *testing.T) {
	require.NotNil(t, Logger)
	assert.True(t, Logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, Logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestOrDefault(t *testing.T) {
	assert.NotNil(t, OrDefault(nil))

	logger := logrus.New()
	assert.Same(t, logger, OrDefault(logger))
}
