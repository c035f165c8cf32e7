package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "warn")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Int("skipped", 2).Msg("malformed lines")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "foodbuzz", entry["service"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "malformed lines", entry["message"])
	assert.EqualValues(t, 2, entry["skipped"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "Local", "")
	require.NoError(t, err)

	logger.Info().Str("key", "2025W10").Msg("snapshot saved")
	assert.Contains(t, buf.String(), "snapshot saved")
	assert.Contains(t, buf.String(), "key=2025W10")
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "local", "loud")
	assert.Error(t, err)
}
