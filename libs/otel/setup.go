package otelx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	Environment string
	// Endpoint is the collector's OTLP/gRPC host:port.
	Endpoint    string
	SampleRatio float64
	Timeout     time.Duration
}

// ConfigFromEnv reads the OTEL_* variables. An empty endpoint disables the
// exporter.
func ConfigFromEnv(serviceName string) (Config, error) {
	cfg := Config{
		ServiceName: serviceName,
		Version:     config.String("SERVICE_VERSION", "dev"),
		Environment: config.String("DEPLOY_ENV", "local"),
		Endpoint:    config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SampleRatio: 1,
	}
	cfg.Enabled = config.Bool("OTEL_ENABLED", true) && cfg.Endpoint != ""

	if raw := config.String("OTEL_SAMPLING_RATIO", ""); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			return Config{}, fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0,1] (got %q)", raw)
		}
		cfg.SampleRatio = f
	}
	timeout, err := config.Duration("OTEL_EXPORTER_TIMEOUT", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.Timeout = timeout
	return cfg, nil
}

// Setup installs the W3C propagators and, when enabled, a batching tracer
// provider exporting to cfg.Endpoint. The returned func flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("otel: endpoint is required when tracing is enabled")
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("otel: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
