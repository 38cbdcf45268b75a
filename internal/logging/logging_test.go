package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel, "json", "")

	logger.Debug().Msg("hidden")
	logger.Info().Str("symbol", "BTC").Int("inserted", 3).Msg("feature run complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "BTC", entry["symbol"])
	assert.Equal(t, 3.0, entry["inserted"])
	assert.Equal(t, "feature run complete", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel, "console", "")

	logger.Warn().Str("symbol", "ETH").Msg("gap")
	assert.Contains(t, buf.String(), "gap")
	assert.Contains(t, buf.String(), "symbol=ETH")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info().Msg("hello")
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}
