package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Leveled logger shared by the dashboard shell and eisctl.
// - package-level helpers (Debugf/Infof/Warnf/Errorf/Fatalf) over a zap SugaredLogger
// - Init(level) / InitFormat(level, format) reconfigure the global logger

var (
	mu    sync.RWMutex
	base  *zap.SugaredLogger = newSugared(zapcore.InfoLevel, "console", zapcore.Lock(os.Stdout))
	level                    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func parseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func newSugared(lvl zapcore.Level, format string, out zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	level.SetLevel(lvl)
	return zap.New(zapcore.NewCore(enc, out, level)).Sugar()
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info. Output format is left unchanged.
func Init(l string) {
	level.SetLevel(parseLevel(l))
}

// InitFormat rebuilds the global logger writing to stdout in the given
// format ("json" or "console").
func InitFormat(l, format string) {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	base = newSugared(parseLevel(l), format, zapcore.Lock(os.Stdout))
}

// Replace swaps the global logger; it returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	defer mu.Unlock()
	prev := base
	base = l.Sugar()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		base = prev
	}
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debugf(format string, v ...interface{}) { get().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { get().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { get().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { get().Errorf(format, v...) }

// Fatalf logs and exits with status 1.
func Fatalf(format string, v ...interface{}) {
	get().Errorf(format, v...)
	_ = get().Sync()
	os.Exit(1)
}

// With returns a child logger carrying structured key/value pairs.
func With(kv ...interface{}) *zap.SugaredLogger { return get().With(kv...) }

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	Info(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Sync flushes buffered entries.
func Sync() error { return get().Sync() }

// LevelString returns the current level as text.
func LevelString() string {
	switch level.Level() {
	case zapcore.DebugLevel:
		return "debug"
	case zapcore.WarnLevel:
		return "warn"
	case zapcore.ErrorLevel:
		return "error"
	case zapcore.FatalLevel:
		return "fatal"
	}
	return "info"
}
