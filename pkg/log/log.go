// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log wraps zap so every component constructs loggers the same
// way instead of reaching for *zap.Logger directly.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every component depends on.
type Logger = *zap.Logger

// New creates a production JSON logger at the given level ("debug", "info",
// "warn", "error").
func New(level string) Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NoOp returns a logger that discards everything, for tests.
func NoOp() Logger {
	return zap.NewNop()
}

// String and Error re-export the zap field constructors most used in this
// module so callers don't need a second zap import for the common case.
func String(key, val string) zap.Field { return zap.String(key, val) }
func Error(err error) zap.Field        { return zap.Error(err) }
func Int(key string, val int) zap.Field { return zap.Int(key, val) }
