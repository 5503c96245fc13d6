package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogToStderr as logging.file sends log lines to stderr instead of a file.
const LogToStderr = "-"

// LogLevel represents logging verbosity levels.
type LogLevel int

// Log level constants.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelDebug
)

// ParseLogLevel parses a log level string. Unknown values mean error.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelDebug:
		return "debug"
	default:
		return "error"
	}
}

// sink is the output shared by a logger and every logger derived from it.
type sink struct {
	mu     sync.Mutex
	level  LogLevel
	out    io.Writer
	mirror io.Writer
	closer io.Closer
	path   string
}

func (s *sink) write(level LogLevel, component, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.level == LogLevelOff || level > s.level {
		return
	}
	if s.out == nil && s.mirror == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(strings.ToUpper(level.String()))
	sb.WriteString("] ")
	if component != "" {
		sb.WriteString(component)
		sb.WriteString(": ")
	}
	sb.WriteString(msg)
	sb.WriteByte('\n')
	line := sb.String()

	if s.out != nil {
		_, _ = io.WriteString(s.out, line)
	}
	if s.mirror != nil {
		_, _ = io.WriteString(s.mirror, line)
	}
}

// Logger writes leveled lines to the hdsweep log file or any writer. It
// satisfies discovery.Logger. Loggers returned by With share the parent's
// output and level.
type Logger struct {
	sink      *sink
	component string
}

// NewLogger creates a logger appending to filePath. Nothing is created on
// disk when the level is off or the path is empty.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	s := &sink{level: level, path: filePath}
	if level == LogLevelOff || filePath == "" {
		return &Logger{sink: s}, nil
	}

	s.path = ExpandHome(filePath)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, err
	}

	// #nosec G304 -- log file path is from validated config
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.out = f
	s.closer = f

	return &Logger{sink: s}, nil
}

// NewWriterLogger creates a logger writing to w.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return &Logger{sink: &sink{level: level, out: w}}
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{sink: &sink{level: LogLevelOff}}
}

// With returns a logger that tags its lines with component, nested under
// this logger's own component ("recover/BTC").
func (l *Logger) With(component string) *Logger {
	if l.component != "" {
		component = l.component + "/" + component
	}
	return &Logger{sink: l.sink, component: component}
}

// Mirror copies every emitted line to w as well, e.g. stderr under
// --verbose. A nil w stops mirroring.
func (l *Logger) Mirror(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.mirror = w
}

// Close closes the log file. Closing twice is a no-op.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.closer == nil {
		return nil
	}
	err := l.sink.closer.Close()
	l.sink.closer = nil
	l.sink.out = nil
	return err
}

// Path returns the log file path, or "" for writer loggers.
func (l *Logger) Path() string {
	return l.sink.path
}

// SetLevel changes the level for this logger and all loggers sharing its
// output.
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.sink.write(LogLevelDebug, l.component, fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.sink.write(LogLevelError, l.component, fmt.Sprintf(format, args...))
}
