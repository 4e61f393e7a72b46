// Package logger is a thin structured-logging facade over zap, built
// once at startup from the resolved configuration and threaded
// explicitly into every component constructor.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with the small, variadic
// key-value call surface the rest of the module uses.
type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New builds a Logger for level ("debug","info","warn","error") and
// environment ("development" uses a console encoder, anything else a
// JSON encoder suited to log aggregation).
func New(level, environment string) *Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{sugar: base.Sugar(), base: base}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

// Zap is the escape hatch for call sites that want a typed
// *zap.Logger directly (e.g. to satisfy a third-party constructor).
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes any buffered log entries. Call on shutdown.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
