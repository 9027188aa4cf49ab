package logging

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/chatindex/internal/config"
)

// Config is the logging section of config.yaml.
type Config struct {
	Level      string            `koanf:"level"`
	Format     string            `koanf:"format"` // console or json
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects sinks. There is no stdout sink: search results and
// tables own stdout.
type OutputConfig struct {
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig thins repeated entries per level within each Tick.
type SamplingConfig struct {
	Enabled bool                                  `koanf:"enabled"`
	Tick    config.Duration                       `koanf:"tick"`
	Levels  map[zapcore.Level]LevelSamplingConfig `koanf:"-"`
}

// LevelSamplingConfig keeps the first Initial entries with the same message
// per tick, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSamplingConfig struct {
	Initial    int `koanf:"initial"`
	Thereafter int `koanf:"thereafter"`
}

type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

type StacktraceConfig struct {
	Level string `koanf:"level"`
}

// RedactionConfig lists field names whose values are hidden and regular
// expressions masked inside any string value or message.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig logs human-readable info and above to stderr.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
		Output: OutputConfig{Stderr: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels:  DefaultLevelSamplingConfig(),
		},
		Caller:     CallerConfig{Skip: 1},
		Stacktrace: StacktraceConfig{Level: "error"},
		Fields:     map[string]string{"service": "chatindex"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// DefaultLevelSamplingConfig leaves trace nearly silent under load and keeps
// warnings mostly intact. Error and above bypass sampling entirely.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 1},
		zapcore.DebugLevel: {Initial: 10},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	levels := map[string]string{"level": c.Level}
	if c.Stacktrace.Level != "" {
		levels["stacktrace.level"] = c.Stacktrace.Level
	}
	for key, v := range levels {
		if _, err := LevelFromString(v); err != nil {
			return fmt.Errorf("%s %q: %w", key, v, err)
		}
	}

	switch {
	case c.Format != "console" && c.Format != "json":
		return fmt.Errorf("format %q: want console or json", c.Format)
	case !c.Output.Stderr && !c.Output.OTEL:
		return errors.New("no output enabled: set output.stderr or output.otel")
	case c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0:
		return errors.New("sampling.tick must be positive")
	case c.Caller.Enabled && c.Caller.Skip < 0:
		return fmt.Errorf("caller.skip %d is negative", c.Caller.Skip)
	}

	if c.Redaction.Enabled {
		if _, err := compilePatterns(c.Redaction.Patterns); err != nil {
			return err
		}
	}

	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("fields: %q=%q needs both a key and a value", k, v)
		}
	}
	return nil
}
