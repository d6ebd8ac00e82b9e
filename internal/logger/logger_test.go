package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldLog(t *testing.T) {
	assert.True(t, shouldLog(LogLevelInfo, LogLevelError))
	assert.True(t, shouldLog(LogLevelInfo, LogLevelInfo))
	assert.False(t, shouldLog(LogLevelInfo, LogLevelDebug))
	assert.True(t, shouldLog(LogLevelTrace, LogLevelDebug))
	assert.True(t, shouldLog("verbose", LogLevelTrace), "unknown level must not hide messages")
}

func TestGlobalHelpersRespectLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	GlobalLogging = &LoggingConfig{Level: "WARN"}
	defer func() { GlobalLogging = nil }()

	LogInfo("hidden %d", 1)
	LogWarn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.False(t, IsDebugEnabled())
	assert.False(t, IsTraceEnabled())

	GlobalLogging = &LoggingConfig{Level: LogLevelTrace}
	assert.True(t, IsTraceEnabled())
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pv.log")
	cfg := &LoggingConfig{File: path}

	closeFn := Setup(cfg)
	LogInfo("to file")
	closeFn()
	defer func() { GlobalLogging = nil }()

	assert.Equal(t, LogLevelInfo, cfg.Level)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}

func TestMockLoggerRecordsFormattedLines(t *testing.T) {
	m := NewMockLogger()
	m.LogError("publish to %s failed", "commands/a")
	m.LogWarn("dropped")

	assert.Equal(t, []string{"publish to commands/a failed"}, m.Errors())
	assert.True(t, m.HasWarnMessage())

	m.Reset()
	assert.False(t, m.HasErrorMessage())
}
