package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging with a component field.
type Logger struct {
	base zerolog.Logger
}

// New creates a logger writing JSON lines to stdout at info level.
func New(component string) *Logger {
	return NewWithWriter(os.Stdout, component, "info")
}

// NewWithWriter is New with an explicit sink and level name.
func NewWithWriter(w io.Writer, component, level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.DurationFieldUnit = time.Millisecond
	l := zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Logger().
		Level(lvl)
	return &Logger{base: l}
}

// Nop discards everything. Used in tests and as a nil-safe default.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// With returns a child logger with an extra component suffix.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{base: l.base.With().Str("sub", component).Logger()}
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.base.Debug().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Info logs informational messages with optional key/value pairs.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.base.Info().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Warn logs warning messages with optional key/value pairs.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.base.Warn().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Error logs error messages with optional key/value pairs.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.base.Error().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(msg string, keyvals ...interface{}) {
	if l == nil {
		os.Exit(1)
	}
	l.base.Fatal().Fields(kvToMap(keyvals...)).Msg(msg)
}

// kvToMap converts a flat list of key/value pairs into a map for zerolog.
// Errors are rendered with their message so they survive JSON encoding.
func kvToMap(kv ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv)-1; i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, ok := kv[i+1].(error); ok && err != nil {
			fields[key] = err.Error()
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}
