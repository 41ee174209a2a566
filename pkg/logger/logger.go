// Package logger provides the small leveled logging interface used across
// the library. Library code takes a Logger and defaults to Nop; binaries
// decide where lines go.
package logger

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Fields carries structured context for one log line.
type Fields map[string]any

// Logger is the logging interface used by the library.
type Logger interface {
	Log(level Level, msg string, fields Fields)
}

// Nop discards all log lines.
type Nop struct{}

func (Nop) Log(Level, string, Fields) {}

type writerLogger struct {
	w   io.Writer
	min Level
}

// NewWriterLogger builds a Logger that writes key=value lines at or above
// min to w.
func NewWriterLogger(w io.Writer, min Level) Logger {
	return writerLogger{w: w, min: min}
}

func (l writerLogger) Log(level Level, msg string, fields Fields) {
	if l.w == nil || level < l.min {
		return
	}
	var sb strings.Builder
	sb.WriteString(time.Now().Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(fmt.Sprintf("%-5s", level.String()))
	sb.WriteByte(' ')
	sb.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	sb.WriteByte('\n')
	_, _ = io.WriteString(l.w, sb.String())
}

// Debug logs at debug level when logger is non-nil.
func Debug(l Logger, msg string, fields Fields) { write(l, LevelDebug, msg, fields) }

// Info logs at info level when logger is non-nil.
func Info(l Logger, msg string, fields Fields) { write(l, LevelInfo, msg, fields) }

// Warn logs at warn level when logger is non-nil.
func Warn(l Logger, msg string, fields Fields) { write(l, LevelWarn, msg, fields) }

// Error logs at error level when logger is non-nil.
func Error(l Logger, msg string, fields Fields) { write(l, LevelError, msg, fields) }

func write(l Logger, level Level, msg string, fields Fields) {
	if l == nil {
		return
	}
	l.Log(level, msg, fields)
}
