// Package logging provides config-driven categorized logging for gladebind.
// Every category is a named child of a single zap logger. Until Initialize is
// called all loggers are no-ops, so library code can log unconditionally.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and shutdown
	CategoryBindings Category = "bindings" // Module discovery, load contract, unload
	CategoryScripts  Category = "scripts"  // Script catalog scanning and execution
	CategoryBridge   Category = "bridge"   // Native type to foreign class mirroring
	CategoryRuntime  Category = "runtime"  // Embedded interpreters (yaegi, wazero)
	CategoryConsole  Category = "console"  // Interactive binding consoles
	CategoryWatcher  Category = "watcher"  // Script root watcher
	CategoryHost     Category = "host"     // Host widget/project operations
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type Options struct {
	Level       string          // debug, info, warn, error
	Format      string          // json, console
	OutputPaths []string        // zap sinks; empty means stderr
	Categories  map[string]bool // per-category toggles; missing means enabled
}

// Logger is a printf-style logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the root zap logger from opts. It may be called again to
// reconfigure; previously handed out category loggers are rebuilt lazily.
func Initialize(opts Options) error {
	cfg := zap.NewProductionConfig()
	if opts.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	root = l
	categories = opts.Categories
	loggers = make(map[Category]*Logger)
	return nil
}

// Replace swaps the root logger and returns a func restoring the previous one.
// Tests use it with zaptest/observer.
func Replace(l *zap.Logger) (restore func()) {
	mu.Lock()
	prevRoot, prevCats := root, categories
	root = l
	categories = nil
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	return func() {
		mu.Lock()
		root, categories = prevRoot, prevCats
		loggers = make(map[Category]*Logger)
		mu.Unlock()
	}
}

// Root returns the underlying zap logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Sync flushes buffered entries.
func Sync() {
	_ = Root().Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// IsCategoryEnabled reports whether a category produces output.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	base := root
	if !categoryEnabled(category) {
		base = zap.NewNop()
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Zap returns the structured zap logger behind l.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(args...)}
}

func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...any)      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...any) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...any)  { Get(CategoryBoot).Warn(format, args...) }

func Bindings(format string, args ...any)      { Get(CategoryBindings).Info(format, args...) }
func BindingsDebug(format string, args ...any) { Get(CategoryBindings).Debug(format, args...) }
func BindingsWarn(format string, args ...any)  { Get(CategoryBindings).Warn(format, args...) }
func BindingsError(format string, args ...any) { Get(CategoryBindings).Error(format, args...) }

func Scripts(format string, args ...any)      { Get(CategoryScripts).Info(format, args...) }
func ScriptsDebug(format string, args ...any) { Get(CategoryScripts).Debug(format, args...) }
func ScriptsWarn(format string, args ...any)  { Get(CategoryScripts).Warn(format, args...) }

func BridgeDebug(format string, args ...any) { Get(CategoryBridge).Debug(format, args...) }
func BridgeWarn(format string, args ...any)  { Get(CategoryBridge).Warn(format, args...) }

func Runtime(format string, args ...any)      { Get(CategoryRuntime).Info(format, args...) }
func RuntimeDebug(format string, args ...any) { Get(CategoryRuntime).Debug(format, args...) }
func RuntimeWarn(format string, args ...any)  { Get(CategoryRuntime).Warn(format, args...) }
func RuntimeError(format string, args ...any) { Get(CategoryRuntime).Error(format, args...) }

func ConsoleDebug(format string, args ...any) { Get(CategoryConsole).Debug(format, args...) }

func Watcher(format string, args ...any)      { Get(CategoryWatcher).Info(format, args...) }
func WatcherDebug(format string, args ...any) { Get(CategoryWatcher).Debug(format, args...) }
func WatcherError(format string, args ...any) { Get(CategoryWatcher).Error(format, args...) }

func HostDebug(format string, args ...any) { Get(CategoryHost).Debug(format, args...) }
