package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/janhq/jan-widget/internal/config"
)

const metricExportInterval = 30 * time.Second

// Shutdown flushes and stops the telemetry providers.
type Shutdown func(ctx context.Context) error

// Setup installs global tracer and meter providers. Spans and metrics are
// exported over OTLP/HTTP only when ENABLE_TRACING is set together with an
// endpoint; otherwise the providers record nothing.
func Setup(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Shutdown, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
			attribute.Bool("widget.tts_enabled", cfg.TTSEnabled),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.EnableTracing && cfg.OTLPEndpoint != "" {
		spans, metrics, err := newExporters(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		traceOpts = append(traceOpts,
			sdktrace.WithBatcher(spans),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSampleRatio))),
		)
		meterOpts = append(meterOpts,
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(metricExportInterval))),
		)
		log.Info().
			Str("endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.TraceSampleRatio).
			Msg("exporting traces and metrics")
	} else {
		log.Info().Msg("telemetry export disabled")
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}, nil
}

func newExporters(ctx context.Context, rawEndpoint string) (*otlptrace.Exporter, *otlpmetrichttp.Exporter, error) {
	endpoint, insecure := normalizeEndpoint(rawEndpoint)

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	spans, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return spans, metrics, nil
}

// normalizeEndpoint strips the scheme the OTLP HTTP exporters do not accept.
// A bare host:port is treated as plain HTTP.
func normalizeEndpoint(raw string) (endpoint string, insecure bool) {
	if rest, ok := strings.CutPrefix(raw, "https://"); ok {
		return strings.TrimRight(rest, "/"), false
	}
	return strings.TrimRight(strings.TrimPrefix(raw, "http://"), "/"), true
}
