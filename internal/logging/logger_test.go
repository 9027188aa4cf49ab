package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/chatindex/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(nil, nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))

	require.NoError(t, logger.SetLevel("trace"))
	assert.True(t, logger.Enabled(TraceLevel))

	assert.Error(t, logger.SetLevel("loud"))
	_ = logger.Sync()
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_LevelsAndFields(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithBuildID(context.Background(), "b-123")
	ctx = WithConversationID(ctx, "conv-1")

	tl.Trace(ctx, "trace msg")
	tl.Debug(ctx, "debug msg")
	tl.Info(ctx, "info msg", zap.Int("n", 3))
	tl.Warn(ctx, "warn msg")
	tl.Error(ctx, "error msg")

	tl.AssertLogged(t, TraceLevel, "trace msg")
	tl.AssertLogged(t, zapcore.DebugLevel, "debug msg")
	tl.AssertLogged(t, zapcore.WarnLevel, "warn msg")
	tl.AssertLogged(t, zapcore.ErrorLevel, "error msg")
	tl.AssertField(t, "info msg", "build.id", "b-123")
	tl.AssertField(t, "info msg", "conversation.id", "conv-1")
	assert.Equal(t, 1, tl.Count(zapcore.InfoLevel, "info msg"))

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestLogger_With(t *testing.T) {
	tl := NewTestLogger()
	child := tl.With(zap.String("component", "indexer")).Named("build")
	child.Info(context.Background(), "child msg")
	tl.AssertField(t, "child msg", "component", "indexer")
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tl := NewTestLogger()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tl.Info(ctx, "traced")
	tl.AssertTraceCorrelation(t, "traced")
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace":   TraceLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := LevelFromString("verbose")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Level = "loud" }},
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"no outputs", func(c *Config) { c.Output.Stderr = false; c.Output.OTEL = false }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}

	require.NoError(t, NewDefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	assert.Panics(t, func() { WithBuildID(ctx, "") })

	// Invalid client or export ids are ignored.
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "bad id\n")))
	assert.Empty(t, ConversationIDFromContext(WithConversationID(ctx, "")))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Panics(t, func() { WithBuildID(ctx, strings.Repeat("b", 129)) })
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	tl := NewTestLogger()
	cfg := NewDefaultConfig().Sampling
	cfg.Levels = map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 2, Thereafter: 0},
	}
	logger := &Logger{zap: zap.New(newSampledCore(tl.zap.Core(), cfg)), level: tl.level, config: tl.config}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		logger.Info(ctx, "repeated info")
		logger.Error(ctx, "repeated error")
		logger.Debug(ctx, "repeated debug")
	}

	assert.Equal(t, 2, tl.Count(zapcore.InfoLevel, "repeated info"))
	assert.Equal(t, 10, tl.Count(zapcore.ErrorLevel, "repeated error"))
	assert.Equal(t, 10, tl.Count(zapcore.DebugLevel, "repeated debug"), "levels without a rate pass through")
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "retrying with api_key=sk-123"}, []zapcore.Field{
		zap.String("password", "hunter2"),
		zap.String("header", "Bearer abc.def"),
		zap.String("q", "why does Bearer tok.en fail"),
		zap.String("query", "pods"),
	})
	require.NoError(t, err)
	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "sk-123")
	assert.Contains(t, out, `"query":"pods"`)
	assert.Contains(t, out, `"q":"why does [REDACTED] fail"`, "only the match is masked")

	assert.Equal(t, "[REDACTED:4]", RedactedString("k", "abcd").String)
	assert.Equal(t, "[REDACTED:6]", Secret("token", config.Secret("s3cret")).String)
}
