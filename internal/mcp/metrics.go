package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/chatindex/internal/search"
)

// InstrumentationName is the OTEL scope for MCP instruments.
const InstrumentationName = "github.com/fyrsmithlabs/chatindex/internal/mcp"

// Metrics holds the MCP tool instruments.
type Metrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		"chatindex.mcp.tool.invocations.total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"chatindex.mcp.tool.duration.seconds",
		metric.WithDescription("Duration of MCP tool invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return nil, err
	}

	m.errors, err = meter.Int64Counter(
		"chatindex.mcp.tool.errors.total",
		metric.WithDescription("Total number of MCP tool errors by tool and reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordInvocation records one tool call.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("reason", categorizeError(err)),
		))
	}
}

func categorizeError(err error) string {
	switch {
	case errors.Is(err, search.ErrInvalidQuery), errors.Is(err, search.ErrInvalidDate), errors.Is(err, errInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, search.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
