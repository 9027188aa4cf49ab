package search

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/chatindex/internal/telemetry"
)

// InstrumentationName is the OTEL scope for search spans and instruments.
const InstrumentationName = "github.com/fyrsmithlabs/chatindex/internal/search"

// Metrics holds the search instruments.
type Metrics struct {
	searchesTotal metric.Int64Counter
	errorsTotal   metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.searchesTotal, err = meter.Int64Counter(
		"chatindex.search.queries.total",
		metric.WithDescription("Full-text searches executed"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	m.errorsTotal, err = meter.Int64Counter(
		"chatindex.search.errors.total",
		metric.WithDescription("Searches that failed, labeled by reason (invalid_query, internal)"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"chatindex.search.duration.seconds",
		metric.WithDescription("Search latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) record(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.searchesTotal.Add(ctx, 1)
	m.duration.Record(ctx, elapsed.Seconds())
	if err == nil {
		return
	}
	reason := "internal"
	if errors.Is(err, ErrInvalidQuery) {
		reason = "invalid_query"
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithTelemetry routes spans and metrics through tel instead of the global providers.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Searcher) error {
		if tel == nil {
			return nil
		}
		s.tracer = tel.Tracer(InstrumentationName)
		m, err := NewMetrics(tel.Meter(InstrumentationName))
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

func defaultInstruments() (trace.Tracer, *Metrics) {
	m, err := NewMetrics(otel.Meter(InstrumentationName))
	if err != nil {
		m = nil
	}
	return otel.Tracer(InstrumentationName), m
}
