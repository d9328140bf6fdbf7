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

// ParseLevel maps a LOG_LEVEL value to a LogLevel, defaulting to info
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

// Format selects how log lines are rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Logger is a leveled logger that carries fields and trace context
type Logger struct {
	mu          sync.RWMutex
	out         *log.Logger
	minLevel    LogLevel
	format      Format
	fields      map[string]interface{}
	serviceName string
}

var defaultLogger *Logger
var loggerOnce sync.Once

// NewLogger creates a logger writing text lines to stdout
func NewLogger(serviceName string, minLevel LogLevel) *Logger {
	return &Logger{
		out:         log.New(os.Stdout, "", 0),
		minLevel:    minLevel,
		format:      FormatText,
		fields:      make(map[string]interface{}),
		serviceName: serviceName,
	}
}

// GetLogger returns the process-wide logger configured from SERVICE_NAME, LOG_LEVEL and LOG_FORMAT
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		serviceName := os.Getenv("SERVICE_NAME")
		if serviceName == "" {
			serviceName = "cattlebreed-server"
		}

		defaultLogger = NewLogger(serviceName, ParseLevel(os.Getenv("LOG_LEVEL")))
		if strings.EqualFold(os.Getenv("LOG_FORMAT"), string(FormatJSON)) {
			defaultLogger.format = FormatJSON
		}
	})
	return defaultLogger
}

// SetOutput redirects log output
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = log.New(w, "", 0)
}

// SetFormat switches between text and JSON lines
func (l *Logger) SetFormat(f Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = f
}

// SetLevel changes the minimum level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

func (l *Logger) derive(extra map[string]interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

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

// WithField returns a child logger with the field added
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(map[string]interface{}{key: value})
}

// WithFields returns a child logger with the fields added
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.derive(fields)
}

// WithError attaches err under the "error" key
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive(map[string]interface{}{"error": err.Error()})
}

// WithContext adds trace_id and span_id when ctx carries a valid span
func (l *Logger) WithContext(ctx context.Context) *Logger {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return l.derive(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}
	return l
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(msg string) { l.log(LevelInfo, msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(msg string) { l.log(LevelWarn, msg) }

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level LogLevel, msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.minLevel {
		return
	}

	now := time.Now()
	_, file, line, _ := runtime.Caller(2)
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}

	if l.format == FormatJSON {
		entry := make(map[string]interface{}, len(l.fields)+5)
		for k, v := range l.fields {
			entry[k] = v
		}
		entry["time"] = now.UTC().Format(time.RFC3339Nano)
		entry["level"] = level.String()
		entry["service"] = l.serviceName
		entry["caller"] = fmt.Sprintf("%s:%d", file, line)
		entry["msg"] = msg
		b, err := json.Marshal(entry)
		if err != nil {
			l.out.Printf(`{"level":"ERROR","msg":"log marshal failed: %v"}`, err)
			return
		}
		l.out.Println(string(b))
		return
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s:%d %s", now.Format("2006/01/02 15:04:05"), level.String(), file, line, msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
	}
	l.out.Println(sb.String())
}

// Package-level helpers delegating to GetLogger

func Debug(msg string) { GetLogger().Debug(msg) }

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

func Info(msg string) { GetLogger().Info(msg) }

func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

func Warn(msg string) { GetLogger().Warn(msg) }

func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

func Error(msg string) { GetLogger().Error(msg) }

func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

func WithContext(ctx context.Context) *Logger {
	return GetLogger().WithContext(ctx)
}

func WithError(err error) *Logger {
	return GetLogger().WithError(err)
}

// Span attribute helpers

func RecordID(id int64) attribute.KeyValue {
	return attribute.Int64("record.id", id)
}

func AnimalID(id string) attribute.KeyValue {
	return attribute.String("animal.id", id)
}

// MaskedPhone never puts a full phone number on a span
func MaskedPhone(masked string) attribute.KeyValue {
	return attribute.String("auth.phone_masked", masked)
}

func ExportFormat(format string) attribute.KeyValue {
	return attribute.String("export.format", format)
}

func Operation(op string) attribute.KeyValue {
	return attribute.String("operation", op)
}

func Duration(d time.Duration) attribute.KeyValue {
	return attribute.Int64("duration_ms", d.Milliseconds())
}
