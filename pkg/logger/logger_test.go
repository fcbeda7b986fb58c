package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/logger"
)

// TestNewWithWriterJSON emits JSON with level filtering and caller info.
func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.Config{Format: "json"}, &buf, zerolog.InfoLevel)
	log.Debug().Msg("hidden")
	log.Info().Str("curve", "T1").Msg("reduced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is filtered out")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "reduced", entry["message"], "message")
	assert.Equal(t, "T1", entry["curve"], "field")
	assert.Contains(t, entry, "caller", "caller info")
	assert.Contains(t, entry, "time", "timestamp")
}

// TestNewWithWriterConsole renders human readable lines.
func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.Config{Format: "console"}, &buf, zerolog.DebugLevel)
	log.Warn().Msg("fallback reference")
	assert.Contains(t, buf.String(), "WRN", "console level tag")
	assert.Contains(t, buf.String(), "fallback reference", "message")
}

// TestNewFileOutput appends to a log file.
func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lcreduce.log")
	log, err := logger.New(logger.Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.Info().Msg("pass complete")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pass complete", "written to file")
}

// TestNewInvalid rejects unknown levels and unwritable paths.
func TestNewInvalid(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "loud"})
	assert.Error(t, err, "unknown level")

	_, err = logger.New(logger.Config{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err, "missing directory")
}
