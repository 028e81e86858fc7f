package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetLevelFromEnv(t *testing.T) {
	t.Setenv("FEEDKIT_LOG_LEVEL", "trace")
	assert.Equal(t, LevelTrace, GetLevelFromEnv())
	t.Setenv("FEEDKIT_LOG_LEVEL", "ERROR")
	assert.Equal(t, LevelError, GetLevelFromEnv())
	t.Setenv("FEEDKIT_LOG_LEVEL", "bogus")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}

func TestConsoleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleWithSink(&buf, LevelWarn)
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "also shown")
}

func TestConsolePrefixAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleWithSink(&buf, LevelDebug)
	l = l.WithPrefix("cache").With(map[string]interface{}{"key": "a"})
	l.Info("hit")
	out := buf.String()
	assert.Contains(t, out, "cache hit")
	assert.Contains(t, out, "key=a")
}

func TestConsoleFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleWithSink(&buf, LevelDebug)
	l.Info("loaded %d items", 42)
	assert.Contains(t, buf.String(), "loaded 42 items")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	l := NewJSONWithSink(&buf, LevelDebug)
	l.(*jsonLogger).ts = &ts
	l.WithPrefix("loader").With(map[string]interface{}{"batch": 20}).Info("page loaded")

	var entry JSONLogEntry
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "page loaded", entry.Message)
	assert.Equal(t, "INFO", entry.Severity)
	assert.Equal(t, "loader", entry.Component)
	assert.Equal(t, float64(20), entry.Metadata["batch"])
	assert.True(t, entry.Timestamp.Equal(ts))
}

func TestJSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONWithSink(&buf, LevelError)
	l.Info("quiet")
	assert.Empty(t, strings.TrimSpace(buf.String()))
	l.Error("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestTestLoggerCapture(t *testing.T) {
	l := NewTestLogger()
	child := l.With(map[string]interface{}{"a": 1})
	child.Debug("one")
	l.Warn("two %s", "args")
	logs := l.Logs()
	assert.Len(t, logs, 2)
	assert.Equal(t, "DEBUG", logs[0].Severity)
	assert.Equal(t, "one", logs[0].Message)
	assert.Equal(t, "WARNING", logs[1].Severity)
}

func TestNoopLogger(t *testing.T) {
	l := NewNoop()
	l.With(map[string]interface{}{"x": 1}).WithPrefix("p").Info("dropped")
}
