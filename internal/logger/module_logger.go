package logger

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"
)

// moduleLogger is the Logger handed out by CentralLogger.Module and
// NewSlogLogger. Level filtering happens here, before attributes are built.
type moduleLogger struct {
	module   string
	logger   *slog.Logger
	level    slog.Level
	timezone *time.Location
	fields   []Field
}

func (m *moduleLogger) derive(module string, fields []Field) *moduleLogger {
	return &moduleLogger{
		module:   module,
		logger:   m.logger,
		level:    m.level,
		timezone: m.timezone,
		fields:   fields,
	}
}

// Module returns a child logger named "<parent>.<name>".
func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}
	if m.module != "" {
		name = m.module + "." + name
	}
	return m.derive(name, slices.Clone(m.fields))
}

// With returns a logger that adds fields to every entry.
func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}
	return m.derive(m.module, slices.Concat(m.fields, fields))
}

// WithContext adds the trace ID carried by ctx, if any.
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil {
		return nil
	}
	if ctx == nil {
		return m
	}
	traceID, _ := ctx.Value(TraceIDKey).(string)
	if traceID == "" {
		return m
	}
	return m.With(String(traceIDKey, traceID))
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.emit(traceLevelValue, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.emit(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.emit(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.emit(slog.LevelWarn, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.emit(slog.LevelError, msg, fields) }

// Log logs at a level chosen at runtime.
func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.emit(parseLogLevel(string(level)), msg, fields)
}

// Flush is a no-op; CentralLogger owns the file.
func (m *moduleLogger) Flush() error { return nil }

func (m *moduleLogger) emit(level slog.Level, msg string, fields []Field) {
	// errors always pass, whatever the module level
	if m == nil || (level < slog.LevelError && level < m.level) {
		return
	}

	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKey, m.module))
	}
	for _, f := range m.fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// fieldToAttr converts a Field. Floats are rounded to three decimals and
// durations to milliseconds.
func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case float32:
		return slog.Float64(f.Key, round3(float64(v)))
	case float64:
		return slog.Float64(f.Key, round3(v))
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
