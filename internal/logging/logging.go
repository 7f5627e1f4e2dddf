// Package logging adapts zap to the core.Logger interface.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"placekit/internal/core"
)

// Config selects the level and encoding of the process logger.
type Config struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// New builds a production zap logger. Verbose forces debug level.
func New(cfg Config, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	switch cfg.Encoding {
	case "", "json":
	case "console":
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, fmt.Errorf("unknown log encoding %q", cfg.Encoding)
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Adapter implements core.Logger on a zap SugaredLogger.
type Adapter struct {
	s *zap.SugaredLogger
}

var _ core.Logger = (*Adapter)(nil)

// NewAdapter wraps l. A nil logger yields a no-op adapter.
func NewAdapter(l *zap.Logger) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Adapter{s: l.Sugar()}
}

// Named returns an adapter scoped under name.
func (a *Adapter) Named(name string) *Adapter {
	return &Adapter{s: a.s.Named(name)}
}

func (a *Adapter) Debug(msg string, kv ...any) { a.s.Debugw(msg, kv...) }
func (a *Adapter) Info(msg string, kv ...any)  { a.s.Infow(msg, kv...) }
func (a *Adapter) Warn(msg string, kv ...any)  { a.s.Warnw(msg, kv...) }
func (a *Adapter) Error(msg string, kv ...any) { a.s.Errorw(msg, kv...) }
