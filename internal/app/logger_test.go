package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger("info", "json", &out)
	logger.Info("ready", "root", "abtest")

	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "ready", record["msg"])
	assert.Equal(t, "abtest", record["root"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger("warn", "text", &out)

	logger.Info("dropped")
	assert.Empty(t, out.String())

	logger.Warn("kept")
	assert.Contains(t, out.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("whisper"))
}
