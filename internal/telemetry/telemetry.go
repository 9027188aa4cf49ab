package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry holds the trace, metric and log providers of one chatindex
// process. A nil *Telemetry is valid and falls back to the global providers.
//
// Exporter setup failures are recorded as degraded reasons instead of being
// returned, so a build or search never fails because a collector is down.
type Telemetry struct {
	cfg *Config

	tp *trace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp log.LoggerProvider

	mu      sync.Mutex
	stopped bool
	reasons []string
}

// HealthStatus is a snapshot of provider state.
type HealthStatus struct {
	Healthy  bool
	Degraded bool
	Reasons  []string
}

// exporter is what both SDK providers have in common.
type exporter interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

type namedExporter struct {
	name string
	exporter
}

// New builds providers from cfg. A nil cfg means defaults, which leave
// telemetry disabled.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		t.setDegraded("resource: %v", err)
		return t, nil
	}

	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.setDegraded("tracer provider: %v", err)
	} else {
		t.tp = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.setDegraded("meter provider: %v", err)
	} else if mp != nil {
		t.mp = mp
		otel.SetMeterProvider(mp)
	}

	// The zap bridge writes to whatever provider the process has installed.
	t.lp = global.GetLoggerProvider()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return t, nil
}

// Tracer returns a tracer for the instrumentation scope name.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t != nil && t.tp != nil {
		return t.tp.Tracer(name, opts...)
	}
	return otel.GetTracerProvider().Tracer(name, opts...)
}

// Meter returns a meter for the instrumentation scope name.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t != nil && t.mp != nil {
		return t.mp.Meter(name, opts...)
	}
	return otel.GetMeterProvider().Meter(name, opts...)
}

// LoggerProvider feeds logging.NewLogger. It is nil when telemetry is off.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.lp
}

// SetLoggerProvider replaces the log provider.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t == nil {
		return
	}
	t.lp = lp
}

func (t *Telemetry) exporters() []namedExporter {
	var out []namedExporter
	if t.tp != nil {
		out = append(out, namedExporter{"trace", t.tp})
	}
	if t.mp != nil {
		out = append(out, namedExporter{"meter", t.mp})
	}
	return out
}

// ForceFlush exports everything still buffered.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, e := range t.exporters() {
		if err := e.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s flush: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers. shutdown.timeout bounds it when
// ctx has no deadline of its own.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.cfg != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Shutdown.Timeout.Duration())
		defer cancel()
	}

	var errs []error
	for _, e := range t.exporters() {
		if err := e.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", e.name, err))
		}
	}

	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return errors.Join(errs...)
}

// Health reports whether the providers are running and why they may be
// degraded. A nil instance is degraded.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Healthy:  !t.stopped,
		Degraded: len(t.reasons) > 0,
		Reasons:  append([]string(nil), t.reasons...),
	}
}

// IsEnabled is true while telemetry is configured on and not shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.cfg == nil || !t.cfg.Enabled {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

func (t *Telemetry) setDegraded(format string, args ...any) {
	t.mu.Lock()
	t.reasons = append(t.reasons, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}
