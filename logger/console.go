package logger

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

const (
	Reset      = "\033[0m"
	Red        = "\033[31m"
	Green      = "\033[32m"
	Yellow     = "\033[33m"
	Blue       = "\033[34m"
	Gray       = "\033[1;90m"
	BlueBold   = "\033[34;1m"
	RedBold    = "\033[31;1m"
	YellowBold = "\033[33;1m"
	CyanBold   = "\033[36;1m"
)

type consoleLogger struct {
	prefixes []string
	metadata map[string]interface{}
	sink     Sink
	logLevel LogLevel
}

var _ Logger = (*consoleLogger)(nil)

func (c *consoleLogger) clone() *consoleLogger {
	prefixes := make([]string, len(c.prefixes))
	copy(prefixes, c.prefixes)
	metadata := make(map[string]interface{})
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &consoleLogger{
		prefixes: prefixes,
		metadata: metadata,
		sink:     c.sink,
		logLevel: c.logLevel,
	}
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if !slices.Contains(l.prefixes, prefix) {
		l.prefixes = append(l.prefixes, prefix)
	}
	return l
}

// With will return a new logger using metadata as the base context
func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	return l
}

func (c *consoleLogger) metadataSuffix() string {
	if len(c.metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c.metadata))
	for k := range c.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, c.metadata[k]))
	}
	return color(Gray) + sb.String() + color(Reset)
}

func (c *consoleLogger) write(level LogLevel, levelLabel, levelColor, msgColor, msg string, args ...interface{}) {
	if level < c.logLevel {
		return
	}
	var prefix string
	if len(c.prefixes) > 0 {
		prefix = strings.Join(c.prefixes, " ") + " "
	}
	body := msg
	if len(args) > 0 {
		body = fmt.Sprintf(msg, args...)
	}
	fmt.Fprintf(c.sink, "%s %s%-5s%s %s%s%s%s\n",
		time.Now().Format("15:04:05.000"),
		color(levelColor), levelLabel, color(Reset),
		color(msgColor), prefix+body, color(Reset),
		c.metadataSuffix(),
	)
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.write(LevelTrace, "TRACE", CyanBold, Gray, msg, args...)
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.write(LevelDebug, "DEBUG", BlueBold, Green, msg, args...)
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.write(LevelInfo, "INFO", YellowBold, Reset, msg, args...)
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.write(LevelWarn, "WARN", YellowBold, Yellow, msg, args...)
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.write(LevelError, "ERROR", RedBold, Red, msg, args...)
}

// NewConsole returns a Logger that writes colorized, human readable lines to
// stdout. Colors are suppressed when stdout is not a terminal.
func NewConsole(level LogLevel) Logger {
	return &consoleLogger{
		metadata: make(map[string]interface{}),
		sink:     os.Stdout,
		logLevel: level,
	}
}

// NewConsoleWithSink is NewConsole writing to an explicit sink, useful for
// capturing output in tests.
func NewConsoleWithSink(sink Sink, level LogLevel) Logger {
	return &consoleLogger{
		metadata: make(map[string]interface{}),
		sink:     sink,
		logLevel: level,
	}
}
