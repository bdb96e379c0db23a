// Package logger builds the process-wide zap logger. Handlers receive
// the SugaredLogger by injection, never through a global.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger at info level. LOG_LEVEL accepts
// any zap level name (debug, warn, ...) to override it.
func New() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, _ := cfg.Build()
	return l.Sugar()
}
