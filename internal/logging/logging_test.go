package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: "json", Output: &buf})

	log.Info().Msg("hidden")
	log.Warn().Str("origin", "firestore").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "firestore", entry["origin"])
	assert.Contains(t, entry, "time")
}

func TestNewUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "loud", Format: "json", Output: &buf})
	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Output: &buf})
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}
