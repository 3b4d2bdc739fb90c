package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum-admission/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LoggerConfig{Level: "info", Format: "json"}, &buf)

	l.Debug("hidden")
	l.Info("admission denied", "rule", "votes:create")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "admission denied", rec["msg"])
	assert.Equal(t, "votes:create", rec["rule"])
}

func TestNewWithWriter_LevelCanChangeAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LoggerConfig{Level: "error", Format: "json"}, &buf)

	l.Info("first")
	assert.Zero(t, buf.Len())

	l.Level.Set(slog.LevelDebug)
	l.Debug("second")
	assert.Contains(t, buf.String(), "second")
}

func TestNewWithWriter_ConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LoggerConfig{Format: "console"}, &buf)

	l.Warn("stats failed", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "stats failed")
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	l, err := New(config.LoggerConfig{Format: "json", OutputPath: path})
	require.NoError(t, err)

	l.Info("hello")
	require.NoError(t, l.Close())
}
