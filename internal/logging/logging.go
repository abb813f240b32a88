// internal/logging/logging.go
//
// Package logging builds the zap loggers shared by every component.
//
// Production output is JSON on stderr. When a ring size is configured the
// same entries are also kept in memory so that recent activity can be read
// back over HTTP while debugging a deployment.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level    string
	Format   string // json or console
	RingSize int    // 0 disables the ring buffer
}

// New builds the process logger. The returned Ring is nil when disabled.
func New(opts Options) (*zap.Logger, *Ring, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if opts.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	if opts.RingSize <= 0 {
		return logger, nil, nil
	}

	ring := NewRing(opts.RingSize)
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, NewRingCore(ring, level))
	}))
	return logger, ring, nil
}

// NewRingLogger returns a logger that writes only to a fresh ring buffer.
// Tests use it to assert on warnings.
func NewRingLogger(capacity int) (*zap.Logger, *Ring) {
	ring := NewRing(capacity)
	return zap.New(NewRingCore(ring, zapcore.DebugLevel)), ring
}
