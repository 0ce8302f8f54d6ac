package otel

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/csd-dev-tools/stonix"

// Handle carries the tracer of a run and flushes it on shutdown.
type Handle struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

// Noop returns a handle whose spans are discarded.
func Noop() *Handle {
	return &Handle{
		Tracer:   noop.NewTracerProvider().Tracer(tracerName),
		Shutdown: func(context.Context) error { return nil },
	}
}

// Init builds a tracer provider exporting over OTLP and installs it as the
// global provider. A disabled configuration yields Noop.
func Init(ctx context.Context, cfg Config, version string) (*Handle, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return Noop(), nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		switch cfg.Protocol {
		case ProtocolGRPC:
			endpoint = "localhost:4317"
		default:
			endpoint = "localhost:4318"
		}
	}

	hostname, _ := os.Hostname()
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
			semconv.HostName(hostname),
			semconv.TelemetrySDKLanguageGo,
			semconv.TelemetrySDKVersion(otel.Version()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpointURL(endpoint, cfg.Insecure))}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("otel: %s exporter: %w", cfg.Protocol, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Ratio())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Handle{
		Tracer:   tp.Tracer(tracerName),
		Shutdown: tp.Shutdown,
	}, nil
}

// InitWithProvider wraps an existing provider, for tests.
func InitWithProvider(tp trace.TracerProvider) *Handle {
	return &Handle{
		Tracer:   tp.Tracer(tracerName),
		Shutdown: func(context.Context) error { return nil },
	}
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, insecure bool) string {
	for _, p := range []string{"http://", "https://"} {
		if len(endpoint) >= len(p) && endpoint[:len(p)] == p {
			return endpoint
		}
	}
	if insecure {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}
