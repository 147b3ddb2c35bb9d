package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWriter(&buf, false), "walker")
	logger.Debug("hidden")
	logger.Info("walked")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "walked", entry["msg"])
	assert.Equal(t, "walker", entry["component"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWriterVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, true)
	logger.Debug("chunk done")
	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "chunk done")
}

func TestComponentNil(t *testing.T) {
	assert.NotPanics(t, func() { Component(nil, "x").Info("dropped") })
}
