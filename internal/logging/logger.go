package logging

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger whose methods take a context and prepend the
// correlation fields found in it (trace, build, conversation, request).
type Logger struct {
	zap    *zap.Logger
	level  zap.AtomicLevel
	config *Config
}

// NewLogger builds a Logger from cfg, or from defaults when cfg is nil. The
// OTEL sink is attached only when output.otel is set and lp is non-nil.
func NewLogger(cfg *Config, lp log.LoggerProvider) (*Logger, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	lvl, _ := LevelFromString(cfg.Level)
	level := zap.NewAtomicLevelAt(lvl)

	core, err := buildCore(cfg, level, lp)
	if err != nil {
		return nil, err
	}

	z := zap.New(core, zapOptions(cfg)...)
	return &Logger{zap: z, level: level, config: cfg}, nil
}

func zapOptions(cfg *Config) []zap.Option {
	var opts []zap.Option
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Level != "" {
		st, _ := LevelFromString(cfg.Stacktrace.Level)
		opts = append(opts, zap.AddStacktrace(st))
	}
	if len(cfg.Fields) > 0 {
		static := make([]zap.Field, 0, len(cfg.Fields))
		for k, v := range cfg.Fields {
			static = append(static, zap.String(k, v))
		}
		opts = append(opts, zap.Fields(static...))
	}
	return opts
}

// NewNop discards everything. Components fall back to it when handed a nil
// logger.
func NewNop() *Logger {
	return &Logger{
		zap:    zap.NewNop(),
		level:  zap.NewAtomicLevelAt(zapcore.FatalLevel),
		config: NewDefaultConfig(),
	}
}

func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	ce := l.zap.Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(append(ContextFields(ctx), fields...)...)
}

// Trace logs per-record detail, such as each message parsed during a build.
func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

// With returns a child carrying fields on every entry. Children share the
// parent's level.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return l.derive(l.zap.With(fields...))
}

// Named returns a child whose logger name gains a ".name" segment.
func (l *Logger) Named(name string) *Logger {
	return l.derive(l.zap.Named(name))
}

func (l *Logger) derive(z *zap.Logger) *Logger {
	return &Logger{zap: z, level: l.level, config: l.config}
}

// SetLevel changes the level of l and every logger derived from it.
func (l *Logger) SetLevel(level string) error {
	lvl, err := LevelFromString(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. EINVAL and ENOTTY from syncing a terminal
// are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
