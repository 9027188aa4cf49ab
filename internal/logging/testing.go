package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose output is captured in memory for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger that records every level, trace included.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			level:  zap.NewAtomicLevelAt(TraceLevel),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// All returns every captured entry in order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// Reset discards captured entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// matching returns entries at level whose message contains msg.
func (t *TestLogger) matching(level zapcore.Level, msg string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entries at level contain msg.
func (t *TestLogger) Count(level zapcore.Level, msg string) int {
	return len(t.matching(level, msg))
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if len(t.matching(level, msg)) > 0 {
		return
	}
	got := make([]string, 0, len(t.observed.All()))
	for _, e := range t.observed.All() {
		got = append(got, e.Level.String()+": "+e.Message)
	}
	tb.Errorf("no %s entry containing %q; captured: %v", level, msg, got)
}

// AssertField fails tb unless some entry with message msg carries key=want.
// Values compare as zap decodes them: integers are int64, durations
// time.Duration.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	var seen []any
	for _, e := range t.observed.FilterMessage(msg).All() {
		got, ok := e.ContextMap()[key]
		if !ok {
			continue
		}
		if reflect.DeepEqual(got, want) {
			return
		}
		seen = append(seen, got)
	}
	tb.Errorf("entry %q has no %s=%v (saw %v)", msg, key, want, seen)
}

// AssertTraceCorrelation fails tb unless an entry with message msg carries
// a trace_id.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if _, ok := e.ContextMap()["trace_id"]; ok {
			return
		}
	}
	tb.Errorf("entry %q has no trace_id", msg)
}
