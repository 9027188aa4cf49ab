package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for per-record detail such as
// every parsed message during a build. Value: -2 (Debug is -1, Info is 0).
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name. It accepts zap's names plus "trace"
// and "warning".
func LevelFromString(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "":
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
