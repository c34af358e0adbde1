package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("backend slow", slog.String("panel", "month-table"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "backend slow", entry["msg"])
	assert.Equal(t, "month-table", entry["panel"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLogLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, logLevel(nil))
	assert.Equal(t, slog.LevelInfo, logLevel(&Config{LogLevel: "loud"}))
	assert.Equal(t, slog.LevelDebug, logLevel(&Config{LogLevel: "DEBUG"}))
}
