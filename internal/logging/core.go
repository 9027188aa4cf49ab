package logging

import (
	"errors"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// buildCore tees the enabled sinks and applies sampling on top. Redaction
// only covers the stderr sink; the OTEL bridge ships structured attributes
// to a collector the operator controls.
func buildCore(cfg *Config, level zapcore.LevelEnabler, lp log.LoggerProvider) (zapcore.Core, error) {
	var sinks []zapcore.Core

	if cfg.Output.Stderr {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}
	if cfg.Output.OTEL && lp != nil {
		bridge := otelzap.NewCore("chatindex", otelzap.WithLoggerProvider(lp))
		sinks = append(sinks, &levelFilterCore{Core: bridge, level: level})
	}

	switch len(sinks) {
	case 0:
		return nil, errors.New("no usable log output: output.otel needs telemetry enabled")
	case 1:
		return newSampledCore(sinks[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(sinks...), cfg.Sampling), nil
	}
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "json" {
		ec.EncodeLevel = levelEncoder(zapcore.LowercaseLevelEncoder, "trace")
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = levelEncoder(zapcore.LowercaseColorLevelEncoder, "\x1b[90mtrace\x1b[0m")
	return zapcore.NewConsoleEncoder(ec)
}

// levelEncoder names TraceLevel, which zap would print as "Level(-2)".
func levelEncoder(base zapcore.LevelEncoder, trace string) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if l == TraceLevel {
			enc.AppendString(trace)
			return
		}
		base(l, enc)
	}
}
