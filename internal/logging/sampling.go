package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling. Each level below Error
// gets its own sampler from cfg.Levels; Error and above are never sampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	levels := cfg.Levels
	if len(levels) == 0 {
		levels = DefaultLevelSamplingConfig()
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, level: zapcore.ErrorLevel},
	}
	for _, lvl := range []zapcore.Level{TraceLevel, zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel} {
		only := exactLevel(lvl)
		filtered := &levelFilterCore{Core: core, level: only}
		rate, ok := levels[lvl]
		if !ok {
			cores = append(cores, filtered)
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(filtered, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
	}
	return zapcore.NewTee(cores...)
}

func exactLevel(lvl zapcore.Level) zapcore.LevelEnabler {
	return zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l == lvl })
}

// levelFilterCore restricts a core to the levels its enabler accepts.
type levelFilterCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:  c.Core.With(fields),
		level: c.level,
	}
}
