package logger

import (
	"io"
	"os"
	"strings"
)

// LogLevel defines the level of logging
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// GetLevelFromEnv will look at the environment var `FEEDKIT_LOG_LEVEL` and convert it into the appropriate LogLevel
func GetLevelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("FEEDKIT_LOG_LEVEL")) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "none":
		return LevelNone
	default:
		return LevelInfo
	}
}

type Sink io.Writer

// Logger is an interface for logging
type Logger interface {
	// With will return a new logger using metadata as the base context
	With(metadata map[string]interface{}) Logger
	// WithPrefix will return a new logger with a prefix prepended to the message
	WithPrefix(prefix string) Logger
	// Trace level logging
	Trace(msg string, args ...interface{})
	// Debug level logging
	Debug(msg string, args ...interface{})
	// Info level logging
	Info(msg string, args ...interface{})
	// Warning level logging
	Warn(msg string, args ...interface{})
	// Error level logging
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

var _ Logger = (*noopLogger)(nil)

func (noopLogger) With(map[string]interface{}) Logger { return noopLogger{} }
func (noopLogger) WithPrefix(string) Logger           { return noopLogger{} }
func (noopLogger) Trace(string, ...interface{})       {}
func (noopLogger) Debug(string, ...interface{})       {}
func (noopLogger) Info(string, ...interface{})        {}
func (noopLogger) Warn(string, ...interface{})        {}
func (noopLogger) Error(string, ...interface{})       {}

// NewNoop returns a Logger that discards everything. Components that take an
// optional Logger default to this.
func NewNoop() Logger {
	return noopLogger{}
}
