// Package telemetry carries the forum's traces and metrics. Request and
// upvote spans go to Jaeger when a collector is configured; the counters
// in Metrics are read by the Prometheus exporter behind /metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"betternews/internal/config"
)

const instrumentationName = "betternews"

// Init installs the global providers selected by cfg and returns a function
// that flushes them. With telemetry disabled the globals stay no-ops.
func Init(cfg config.TelemetryConfig, logger *zap.Logger) (func(), error) {
	if !cfg.Enabled {
		logger.Info("Telemetry disabled")
		return func() {}, nil
	}

	res := resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName))
	var stops []func(context.Context) error

	if cfg.JaegerURL != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
		if err != nil {
			return nil, fmt.Errorf("jaeger exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		stops = append(stops, tp.Shutdown)
	}

	if cfg.PrometheusEnabled {
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		mp := metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res))
		otel.SetMeterProvider(mp)
		stops = append(stops, mp.Shutdown)
	}

	// 只需要透传上游的 traceparent
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("Telemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.Bool("tracing", cfg.JaegerURL != ""),
		zap.Bool("metrics", cfg.PrometheusEnabled),
	)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, stop := range stops {
			errs = append(errs, stop(ctx))
		}
		if err := errors.Join(errs...); err != nil {
			logger.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}, nil
}

// StartSpan starts a span on the forum tracer. Before Init, or with tracing
// off, the span is a no-op.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}
