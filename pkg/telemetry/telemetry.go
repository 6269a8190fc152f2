// Package telemetry wires the runtime core into OpenTelemetry: one tracer
// for command spans and a small set of named instruments. Export goes over
// OTLP/HTTP; when no endpoint is configured (or exporter construction
// fails) the package degrades to no-op providers so the core keeps running.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
)

const instrumentationName = "github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000"

// Telemetry bundles the tracer and the named instruments the runtime core
// records against.
type Telemetry struct {
	Tracer trace.Tracer

	// CommandsHandled counts dispatched router commands (attrs: verb, ok).
	CommandsHandled metric.Int64Counter
	// EventsSent counts agent events delivered to the planner
	// (attrs: channel, type).
	EventsSent metric.Int64Counter
	// SnapshotDuration times perception snapshot builds
	// (attrs: reason, dimension).
	SnapshotDuration metric.Float64Histogram
	// SnapshotErrors counts failed snapshot builds.
	SnapshotErrors metric.Int64Counter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Setup builds the telemetry context. Failures never propagate: errors are
// logged and a no-op Telemetry is returned so the core keeps running.
func Setup(ctx context.Context, cfg config.OtelConfig) *Telemetry {
	if cfg.Endpoint == "" {
		slog.Info("Telemetry export disabled (no OTLP endpoint configured)")
		return Noop()
	}

	tel, err := setup(ctx, cfg)
	if err != nil {
		slog.Error("Telemetry startup failed; continuing without export", "error", err)
		return Noop()
	}
	slog.Info("Telemetry initialized",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"sampler_ratio", cfg.SamplerRatio)
	return tel
}

func setup(ctx context.Context, cfg config.OtelConfig) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace("mineflayer-agent"),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	ratio := cfg.SamplerRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1.0
	}

	traceExp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint+"/v1/traces"))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(traceExp),
	)

	metricExp, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(cfg.Endpoint+"/v1/metrics"))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)

	tel := &Telemetry{
		Tracer: tp.Tracer(instrumentationName),
		tp:     tp,
		mp:     mp,
	}
	if err := tel.createInstruments(mp.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return tel, nil
}

// Noop returns a Telemetry whose tracer and instruments record nothing.
// Used when export is disabled and by tests.
func Noop() *Telemetry {
	tel := &Telemetry{
		Tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	// The noop meter never fails instrument creation.
	_ = tel.createInstruments(metricnoop.NewMeterProvider().Meter(instrumentationName))
	return tel
}

func (t *Telemetry) createInstruments(meter metric.Meter) error {
	var err error
	if t.CommandsHandled, err = meter.Int64Counter("commands.handled",
		metric.WithDescription("Router commands dispatched to verb handlers")); err != nil {
		return fmt.Errorf("failed to create commands.handled: %w", err)
	}
	if t.EventsSent, err = meter.Int64Counter("agent.events.sent",
		metric.WithDescription("Agent events delivered to the planner")); err != nil {
		return fmt.Errorf("failed to create agent.events.sent: %w", err)
	}
	if t.SnapshotDuration, err = meter.Float64Histogram("perception.snapshot.duration",
		metric.WithDescription("Perception snapshot build duration"),
		metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create perception.snapshot.duration: %w", err)
	}
	if t.SnapshotErrors, err = meter.Int64Counter("perception.snapshot.errors",
		metric.WithDescription("Perception snapshot builds that failed")); err != nil {
		return fmt.Errorf("failed to create perception.snapshot.errors: %w", err)
	}
	return nil
}

// Shutdown flushes both providers. Safe to call on a no-op Telemetry.
func (t *Telemetry) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			slog.Error("Trace provider shutdown error", "error", err)
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			slog.Error("Meter provider shutdown error", "error", err)
		}
	}
}
