// Package instrumentation wires OpenTelemetry metrics and traces for the
// authorization proxy. When disabled, no-op providers keep the overhead at
// zero; when enabled, SDK providers are installed globally so the handler,
// flow engine, and storage layers pick them up through otel.Tracer and
// otel.Meter.
package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config holds instrumentation configuration.
type Config struct {
	// ServiceName names the service in telemetry, e.g. "mcp-auth-proxy"
	ServiceName string

	// ServiceVersion is the service version
	ServiceVersion string

	// Enabled installs SDK providers; false uses no-ops
	Enabled bool
}

// Instrumentation owns the telemetry providers.
type Instrumentation struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	shutdownFuncs  []func(context.Context) error
	shutdownOnce   sync.Once
}

// New creates the instrumentation. When enabled, the SDK providers are also
// registered as the global otel providers.
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = "mcp-auth-proxy"
	}

	inst := &Instrumentation{}

	if !config.Enabled {
		inst.tracerProvider = tracenoop.NewTracerProvider()
		inst.meterProvider = metricnoop.NewMeterProvider()
		return inst, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	inst.tracerProvider = tp
	inst.meterProvider = mp
	inst.shutdownFuncs = append(inst.shutdownFuncs, tp.Shutdown, mp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return inst, nil
}

// Shutdown flushes and stops the providers.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error
	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// Tracer returns a named tracer scoped under the module path.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer("github.com/giantswarm/mcp-auth-proxy/" + scope)
}

// Meter returns a named meter scoped under the module path.
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter("github.com/giantswarm/mcp-auth-proxy/" + scope)
}

// RecordError records an error on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks the span as successful.
func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}
