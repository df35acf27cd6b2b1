// Package logging provides the leveled logger used across the service.
// Entries are either one JSON object per line (production) or a plain
// "[level] time msg k=v" line for development.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Fields carries structured context for one entry.
type Fields map[string]any

// Logger writes leveled, structured entries.
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
	json     bool
}

// Entry is the JSON shape of a log line.
type Entry struct {
	Level   Level  `json:"level"`
	Time    string `json:"time"`
	Message string `json:"msg"`
	Fields  Fields `json:"fields,omitempty"`
	Error   string `json:"error,omitempty"`
	Caller  string `json:"caller,omitempty"`
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// New creates a logger. format "json" selects JSON lines; anything else
// selects plain text.
func New(w io.Writer, level Level, format string) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		output:   w,
		minLevel: level,
		json:     strings.EqualFold(format, "json"),
	}
}

var defaultLogger = New(os.Stdout, LevelInfo, "text")

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the process-wide logger. Call it once at startup.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func (l *Logger) enabled(level Level) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// caller returns file:line of the frame skip levels up, file shortened to
// its base name.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if l == nil || !l.enabled(level) {
		return
	}

	entry := Entry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  caller(3),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " error=%q", entry.Error)
	}
	fmt.Fprintln(l.output, b.String())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields Fields) { l.log(LevelDebug, msg, fields, nil) }

// Info logs an info message
func (l *Logger) Info(msg string, fields Fields) { l.log(LevelInfo, msg, fields, nil) }

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields Fields) { l.log(LevelWarn, msg, fields, nil) }

// Error logs an error message
func (l *Logger) Error(msg string, fields Fields, err error) { l.log(LevelError, msg, fields, err) }

// Writer adapts the logger for stdlib consumers such as http.Server.ErrorLog.
func (l *Logger) Writer(level Level) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.log(level, strings.TrimRight(string(p), "\n"), nil, nil)
		return len(p), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Package-level helpers write to the default logger.

func Debug(msg string, fields Fields) { defaultLogger.log(LevelDebug, msg, fields, nil) }

func Info(msg string, fields Fields) { defaultLogger.log(LevelInfo, msg, fields, nil) }

func Warn(msg string, fields Fields) { defaultLogger.log(LevelWarn, msg, fields, nil) }

func Error(msg string, fields Fields, err error) { defaultLogger.log(LevelError, msg, fields, err) }

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID stores the request id on ctx.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

// RequestID returns the request id if present.
func RequestID(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}
