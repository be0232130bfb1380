package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := SetupWithWriter(&buf, "debug", "json").With().Str("component", "auth_module").Logger()

	log.Info().Str("email", "a@example.com").Msg("registered")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "auth_module", entry["component"])
	assert.Equal(t, "registered", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	_ = SetupWithWriter(&buf, "loud", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
