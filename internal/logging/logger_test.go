package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/blocksync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo)

	logger.Info("failed", "error", errors.New("boom"))
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), "err=boom")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewTee_WritesBothFormats(t *testing.T) {
	var text, lines bytes.Buffer
	logger := logging.NewTee(&text, &lines, slog.LevelInfo)

	logger.Warn("save failed", "doc_id", "d1", "error", errors.New("boom"))
	logger.Debug("hidden")

	assert.Contains(t, text.String(), "doc_id=d1")
	assert.Contains(t, text.String(), "err=boom")

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines.Bytes(), &record))
	assert.Equal(t, "save failed", record["msg"])
	assert.Equal(t, "boom", record["err"])
	assert.NotContains(t, lines.String(), "hidden")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
}
