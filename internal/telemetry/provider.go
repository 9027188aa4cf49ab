package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

const protocolHTTP = "http/protobuf"

// newResource describes the service. It is standalone rather than merged
// with resource.Default(), whose semconv schema URL differs.
func newResource(cfg *Config) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	), nil
}

// transport is the connection setup shared by the trace and metric exporters.
type transport struct {
	http     bool
	endpoint string      // host:port
	insecure bool        // plaintext
	tls      *tls.Config // nil uses system roots
}

func newTransport(cfg *Config) transport {
	t := transport{
		http:     cfg.Protocol == protocolHTTP,
		endpoint: cfg.Endpoint,
		insecure: cfg.Insecure,
	}
	if t.http {
		t.endpoint = stripScheme(cfg.Endpoint)
	}
	if !t.insecure && cfg.TLSSkipVerify {
		t.tls = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed collectors
	}
	return t
}

func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*trace.TracerProvider, error) {
	exporter, err := newSpanExporter(ctx, newTransport(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(newSampler(cfg.Sampling.Rate))),
	), nil
}

func newSpanExporter(ctx context.Context, t transport) (trace.SpanExporter, error) {
	if t.http {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.endpoint)}
		switch {
		case t.insecure:
			opts = append(opts, otlptracehttp.WithInsecure())
		case t.tls != nil:
			opts = append(opts, otlptracehttp.WithTLSClientConfig(t.tls))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}
	switch {
	case t.insecure:
		opts = append(opts, otlptracegrpc.WithInsecure())
	case t.tls != nil:
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(t.tls)))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// newSampler maps a 0..1 rate onto a root sampler.
func newSampler(rate float64) trace.Sampler {
	switch {
	case rate >= 1.0:
		return trace.AlwaysSample()
	case rate <= 0:
		return trace.NeverSample()
	default:
		return trace.TraceIDRatioBased(rate)
	}
}

// newMeterProvider returns nil when metrics export is disabled.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*metric.MeterProvider, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	exporter, err := newMetricExporter(ctx, newTransport(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	reader := metric.NewPeriodicReader(exporter,
		metric.WithInterval(cfg.Metrics.ExportInterval.Duration()))
	return metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)), nil
}

// cumulative is forced so Prometheus-compatible backends can ingest build
// and search counters whatever the environment prefers.
func cumulative(metric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func newMetricExporter(ctx context.Context, t transport) (metric.Exporter, error) {
	if t.http {
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(t.endpoint),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		switch {
		case t.insecure:
			opts = append(opts, otlpmetrichttp.WithInsecure())
		case t.tls != nil:
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(t.tls))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(t.endpoint),
		otlpmetricgrpc.WithTemporalitySelector(cumulative),
	}
	switch {
	case t.insecure:
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	case t.tls != nil:
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(t.tls)))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

// stripScheme removes http:// or https://; the HTTP exporters want host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
