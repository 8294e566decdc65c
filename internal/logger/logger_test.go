package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
}

func TestConsoleLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.now = fixedClock

	cl.LogInfo("Scan started")
	cl.LogWarn("Could not stat file")

	assert.Equal(t, "[14:05:07] [INFO] Scan started\n[14:05:07] [WARN] Could not stat file\n", buf.String())
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"}},
		{"info", []string{"[INFO]", "[WARN]", "[ERROR]"}},
		{"warning", []string{"[WARN]", "[ERROR]"}},
		{"error", []string{"[ERROR]"}},
		{"bogus", []string{"[INFO]", "[WARN]", "[ERROR]"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			cl := NewConsoleLogger(&buf, tt.level)
			cl.LogDebug("d")
			cl.LogInfo("i")
			cl.LogWarn("w")
			cl.LogError("e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, len(tt.want))
			for i, tag := range tt.want {
				assert.Contains(t, lines[i], tag)
			}
		})
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "debug")
	assert.NotPanics(t, func() { cl.LogError("nothing happens") })
}

func TestIsTerminalNonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, IsTerminal(nil))
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "SPOMigrationLog.txt")
	fl, err := NewFileLogger(path, "info")
	require.NoError(t, err)

	fl.LogDebug("hidden")
	fl.LogInfo("Scan path: /data")
	fl.LogWarn("Access denied: /data/private")
	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())

	// writes after close are dropped
	fl.LogError("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} - INFO - Scan path: /data$`, lines[0])
	assert.Regexp(t, ` - WARNING - Access denied: /data/private$`, lines[1])
	assert.Equal(t, path, fl.Path())
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	l := Multi(NewConsoleLogger(&a, "info"), nil, NewConsoleLogger(&b, "error"))
	l.LogInfo("hello")
	l.LogError("boom")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, a.String(), "boom")
	assert.NotContains(t, b.String(), "hello")
	assert.Contains(t, b.String(), "boom")
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("WARNING"))
	assert.True(t, ValidLevel(" debug "))
	assert.False(t, ValidLevel("trace"))
}
