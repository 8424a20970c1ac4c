package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents log severity
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// ParseLevel maps a config value to a level. Unknown values are INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LogFormat selects the line layout
type LogFormat int

const (
	// FormatText writes "date [LEVEL] file:line msg k=v"
	FormatText LogFormat = iota
	// FormatJSON writes one object per line for log collectors
	FormatJSON
)

// ParseFormat maps a config value to a format. Anything but "json" is text.
func ParseFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is a structured logger with trace context support. Derived
// loggers share the output of their parent.
type Logger struct {
	out         *output
	minLevel    LogLevel
	format      LogFormat
	fields      map[string]interface{}
	serviceName string
}

type output struct {
	mu sync.Mutex
	l  *log.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger("weddingcard-server", LevelInfo, FormatText, os.Stdout)
)

// NewLogger creates a logger writing to w
func NewLogger(serviceName string, minLevel LogLevel, format LogFormat, w io.Writer) *Logger {
	return &Logger{
		out:         &output{l: log.New(w, "", 0)},
		minLevel:    minLevel,
		format:      format,
		fields:      make(map[string]interface{}),
		serviceName: serviceName,
	}
}

// Configure replaces the package logger used by the helpers below
func Configure(serviceName string, minLevel LogLevel, format LogFormat, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	l := NewLogger(serviceName, minLevel, format, w)
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// GetLogger returns the package logger
func GetLogger() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func (l *Logger) with(extra map[string]interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &Logger{
		out:         l.out,
		minLevel:    l.minLevel,
		format:      l.format,
		fields:      fields,
		serviceName: l.serviceName,
	}
}

// WithField returns a new logger with the field added
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(map[string]interface{}{key: value})
}

// WithFields returns a new logger with the fields added
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(fields)
}

// WithContext returns a new logger with trace context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return l.with(map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	})
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, msg) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, msg) }
func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

func (l *Logger) log(level LogLevel, msg string) {
	if level < l.minLevel {
		return
	}

	_, file, line, _ := runtime.Caller(2)
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}
	caller := fmt.Sprintf("%s:%d", file, line)
	now := time.Now()

	var text string
	if l.format == FormatJSON {
		text = l.jsonLine(now, level, caller, msg)
	} else {
		text = l.textLine(now, level, caller, msg)
	}

	l.out.mu.Lock()
	l.out.l.Println(text)
	l.out.mu.Unlock()
}

func (l *Logger) textLine(now time.Time, level LogLevel, caller, msg string) string {
	parts := make([]string, 0, len(l.fields))
	for k, v := range l.fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s %s", now.Format("2006/01/02 15:04:05"), level, caller, msg)
	if len(parts) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(parts, " "))
	}
	return b.String()
}

func (l *Logger) jsonLine(now time.Time, level LogLevel, caller, msg string) string {
	entry := make(map[string]interface{}, len(l.fields)+5)
	for k, v := range l.fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["time"] = now.UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["service"] = l.serviceName
	entry["caller"] = caller
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"level":"ERROR","msg":%q}`, "unencodable log fields: "+err.Error())
	}
	return string(data)
}

// Info logs through the configured logger
func Info(msg string) { GetLogger().log(LevelInfo, msg) }

// WithField returns a logger with the field
func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

// WithFields returns a logger with the fields
func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

// WithContext returns a logger with trace context
func WithContext(ctx context.Context) *Logger {
	return GetLogger().WithContext(ctx)
}

// Span attributes shared by the services

func EntryID(id string) attribute.KeyValue {
	return attribute.String("guestbook.entry_id", id)
}

func PhotoKey(key string) attribute.KeyValue {
	return attribute.String("photo.key", key)
}

func PhotoPrefix(prefix string) attribute.KeyValue {
	return attribute.String("photo.prefix", prefix)
}

func SessionID(id string) attribute.KeyValue {
	return attribute.String("timeline.session_id", id)
}

func Duration(d time.Duration) attribute.KeyValue {
	return attribute.Int64("duration_ms", d.Milliseconds())
}
