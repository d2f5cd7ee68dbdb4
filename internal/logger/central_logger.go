package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "time/tzdata" // timezone database for minimal container images

	"github.com/tphakala/pokerwatch/internal/errors"
)

const (
	// traceLevelValue sits below slog.LevelDebug (-4)
	traceLevelValue = slog.Level(-8)

	logFilePermissions = 0o600
	logDirPermissions  = 0o700
)

var (
	global   *CentralLogger
	globalMu sync.Mutex
)

// SetGlobal installs cl as the process logger. cmd/root.go calls it once
// the configuration is loaded.
func SetGlobal(cl *CentralLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cl
}

// Global returns the process logger. Before SetGlobal it is an info level
// console logger, so packages may log during flag parsing and in tests.
func Global() *CentralLogger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		global = &CentralLogger{
			defaultLevel: slog.LevelInfo,
			timezone:     time.Local,
			levels:       map[string]slog.Level{},
			handler:      newTextHandler(os.Stdout, slog.LevelInfo),
		}
	}
	return global
}

type traceIDContextKey struct{}

// TraceIDKey carries a trace ID, typically a cycle ID, through a context.
var TraceIDKey = traceIDContextKey{}

// WithTraceID returns ctx carrying traceID for Logger.WithContext.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// CentralLogger owns the log outputs and hands out module loggers.
// Module levels are dotted paths: "api" also applies to "api.v1" unless
// "api.v1" has its own entry.
type CentralLogger struct {
	mu           sync.RWMutex
	handler      slog.Handler
	file         *os.File
	timezone     *time.Location
	defaultLevel slog.Level
	levels       map[string]slog.Level
}

// NewCentralLogger opens the outputs named by cfg.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
		tz = loc
	}

	cl := &CentralLogger{
		timezone:     tz,
		defaultLevel: parseLogLevel(cfg.DefaultLevel),
		levels:       make(map[string]slog.Level, len(cfg.ModuleLevels)),
	}
	for module, level := range cfg.ModuleLevels {
		cl.levels[module] = parseLogLevel(level)
	}

	if err := cl.openOutputs(cfg); err != nil {
		return nil, fmt.Errorf("failed to open log outputs: %w", err)
	}
	return cl, nil
}

// openOutputs builds a text handler for the console and a JSON handler for
// the log file. With neither enabled, text goes to stdout at the default
// level.
func (cl *CentralLogger) openOutputs(cfg *LoggingConfig) error {
	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, newTextHandler(os.Stdout, parseLogLevel(cfg.Console.Level)))
	}

	if out := cfg.FileOutput; out.Enabled {
		if dir := filepath.Dir(out.Path); dir != "." {
			if err := os.MkdirAll(dir, logDirPermissions); err != nil {
				return fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(out.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermissions)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cl.file = f
		handlers = append(handlers, newJSONHandler(f, parseLogLevel(out.Level), cl.timezone))
	}

	switch len(handlers) {
	case 0:
		cl.handler = newTextHandler(os.Stdout, cl.defaultLevel)
	case 1:
		cl.handler = handlers[0]
	default:
		cl.handler = newMultiWriterHandler(handlers...)
	}
	return nil
}

// Module returns a logger for the named module.
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return &moduleLogger{
		module:   name,
		logger:   slog.New(cl.handler),
		level:    cl.levelFor(name),
		timezone: cl.timezone,
	}
}

// levelFor walks name up its dotted path to the closest configured level.
func (cl *CentralLogger) levelFor(name string) slog.Level {
	for key := name; key != ""; {
		if level, ok := cl.levels[key]; ok {
			return level
		}
		i := strings.LastIndexByte(key, '.')
		if i < 0 {
			break
		}
		key = key[:i]
	}
	return cl.defaultLevel
}

// Flush syncs the log file, if any.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	if cl.file == nil {
		return nil
	}
	return cl.file.Sync()
}

// Close syncs and closes the log file. Console output is unaffected.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	err := errors.Join(cl.file.Sync(), cl.file.Close())
	cl.file = nil
	return err
}
