package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry is an enabled Telemetry whose spans and metrics stay in
// memory. Pass the embedded *Telemetry to the component under test.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *sdkmetric.ManualReader
}

// NewTestTelemetry returns a TestTelemetry with nothing recorded yet.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	rec := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			cfg: cfg,
			tp:  trace.NewTracerProvider(trace.WithSpanProcessor(rec)),
			mp:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		SpanRecorder: rec,
		MetricReader: reader,
	}
}

// Spans returns the spans that have ended, oldest first.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, s := range t.Spans() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// AssertSpanExists fails tb unless a span called name has ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("no span %q; ended spans: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute fails tb unless span carries key=want. Integer
// attributes compare as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, span, key string, want any) {
	tb.Helper()
	s := t.SpanByName(span)
	if s == nil {
		tb.Fatalf("no span %q", span)
	}
	for _, kv := range s.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := kv.Value.AsInterface(); got != want {
			tb.Errorf("%s: %s = %v, want %v", span, key, got, want)
		}
		return
	}
	tb.Errorf("%s: no attribute %s", span, key)
}

// Sum collects once and adds up every data point of the int64 counter
// called name. An instrument that never recorded reads as 0.
func (t *TestTelemetry) Sum(tb testing.TB, name string) int64 {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.MetricReader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect: %v", err)
	}

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// SumWhere is Sum restricted to data points carrying attribute key=value.
func (t *TestTelemetry) SumWhere(tb testing.TB, name, key, value string) int64 {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.MetricReader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect: %v", err)
	}

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func (t *TestTelemetry) spanNames() []string {
	var names []string
	for _, s := range t.Spans() {
		names = append(names, s.Name())
	}
	return names
}
