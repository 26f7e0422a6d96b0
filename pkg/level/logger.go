package level

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug LogLevel = iota
	// LevelInfo is for general informational messages
	LevelInfo
	// LevelWarn is for warning messages
	LevelWarn
	// LevelError is for error messages
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
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

// ParseLogLevel parses a level name, case-insensitively. Unknown names map
// to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the interface for logging operations
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	// With returns a new logger with additional key-value pairs
	With(keyvals ...any) Logger
}

type writerLogger struct {
	mu       *sync.Mutex
	w        io.Writer
	minLevel LogLevel
	keyvals  []any
}

// NewLogger creates a new logger that writes to the given writer
func NewLogger(w io.Writer, minLevel LogLevel) Logger {
	return &writerLogger{
		mu:       &sync.Mutex{},
		w:        w,
		minLevel: minLevel,
	}
}

// NewStdLogger creates a new logger that writes to stderr
func NewStdLogger(minLevel LogLevel) Logger {
	return NewLogger(os.Stderr, minLevel)
}

func (l *writerLogger) Debug(msg string, keyvals ...any) { l.log(LevelDebug, msg, keyvals) }
func (l *writerLogger) Info(msg string, keyvals ...any)  { l.log(LevelInfo, msg, keyvals) }
func (l *writerLogger) Warn(msg string, keyvals ...any)  { l.log(LevelWarn, msg, keyvals) }
func (l *writerLogger) Error(msg string, keyvals ...any) { l.log(LevelError, msg, keyvals) }

func (l *writerLogger) With(keyvals ...any) Logger {
	merged := make([]any, 0, len(l.keyvals)+len(keyvals))
	merged = append(merged, l.keyvals...)
	merged = append(merged, keyvals...)
	return &writerLogger{
		mu:       l.mu,
		w:        l.w,
		minLevel: l.minLevel,
		keyvals:  merged,
	}
}

// log renders one line and writes it in a single call so concurrent
// loggers sharing a writer never interleave.
func (l *writerLogger) log(level LogLevel, msg string, keyvals []any) {
	if level < l.minLevel {
		return
	}

	var buf bytes.Buffer
	buf.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&buf, " [%s] %s", level, msg)
	writeKeyvals(&buf, l.keyvals)
	writeKeyvals(&buf, keyvals)
	buf.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(buf.Bytes())
}

func writeKeyvals(buf *bytes.Buffer, keyvals []any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(buf, " %v=%v", keyvals[i], keyvals[i+1])
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }

// NopLogger returns a logger that discards all messages
func NopLogger() Logger {
	return nopLogger{}
}
