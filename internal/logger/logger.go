// Package logger is the structured logging layer of iconscan. It wraps
// log/slog with module scoping: every package asks the global CentralLogger
// for a Logger named after itself and logs with typed fields.
//
//	log := logger.Global().Module("detector")
//	log.Debug("template matched", logger.String("template", name), logger.Int("candidates", n))
//
// Nested modules are joined with a dot ("ocr.neural"). Console records are
// plain text, file records are JSON.
package logger

import (
	"context"
	"time"
)

// LogLevel names a severity accepted in configuration
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const (
	errorKey   = "error"
	moduleKey  = "module"
	traceIDKey = "trace_id"
)

// Field is one structured key/value pair
type Field struct {
	Key   string
	Value any
}

// Logger is implemented by module loggers
type Logger interface {
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)

	// With returns a logger that adds fields to every record
	With(fields ...Field) Logger
	// WithContext adds the trace id stored in ctx, if any
	WithContext(ctx context.Context) Logger

	Flush() error
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Float64 values are rounded to 3 decimals when written
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

func Time(key string, value time.Time) Field { return Field{Key: key, Value: value} }

func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Error stores err's message under the "error" key
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey}
	}
	return Field{Key: errorKey, Value: err.Error()}
}
