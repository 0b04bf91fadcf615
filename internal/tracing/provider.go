// Package tracing provides OpenTelemetry initialization and W3C trace context propagation.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/octail/internal/config"
)

const instrumentationName = "octail"

// Resource attribute keys describing the run a span belongs to.
const (
	RunIDKey  = attribute.Key("octail.run.id")
	TargetKey = attribute.Key("octail.target")
	BucketKey = attribute.Key("octail.bucket")
	RoleKey   = attribute.Key("octail.role")
)

// Option adds resource attributes to the provider.
type Option func(*[]attribute.KeyValue)

// WithRun tags every exported span with the run id, target and bucket.
func WithRun(runID, target, bucket string) Option {
	return func(attrs *[]attribute.KeyValue) {
		if runID != "" {
			*attrs = append(*attrs, RunIDKey.String(runID))
		}
		if target != "" {
			*attrs = append(*attrs, TargetKey.String(target))
		}
		if bucket != "" {
			*attrs = append(*attrs, BucketKey.String(bucket))
		}
	}
}

// WithRole names the process side, "client" or "server".
func WithRole(role string) Option {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, RoleKey.String(role))
	}
}

// Provider wraps the OTel TracerProvider used for per-call spans.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init creates an OTel TracerProvider exporting over OTLP. Without an
// endpoint, from cfg or OTEL_EXPORTER_OTLP_ENDPOINT, spans are not recorded.
func Init(ctx context.Context, cfg config.TracingConfig, opts ...Option) (*Provider, error) {
	if cfg.SampleRate < 0 || cfg.SampleRate > 1.0 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", cfg.SampleRate)
	}
	endpoint := resolveEndpoint(cfg)
	if endpoint == "" {
		return &Provider{}, nil
	}

	res, err := Resource(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	exporter, err := newExporter(ctx, cfg, endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.ShouldPropagate(),
	}, nil
}

// Resource describes the exporting process: service name, host and the
// attributes added by opts.
func Resource(ctx context.Context, cfg config.TracingConfig, opts ...Option) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName(cfg))}
	for _, opt := range opts {
		opt(&attrs)
	}
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	return res, nil
}

func resolveEndpoint(cfg config.TracingConfig) string {
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		return ep
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

func serviceName(cfg config.TracingConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return instrumentationName
}

// samplerFor maps a ratio to a sampler; 1 samples every call.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the configured tracer, or a no-op one when nothing is exported.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether workers inject traceparent headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

type exporterFunc func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFunc{
	"grpc": func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	},
	"http": func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	},
}

func newExporter(ctx context.Context, cfg config.TracingConfig, endpoint string) (sdktrace.SpanExporter, error) {
	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol == "" {
		protocol = "grpc"
	}
	build, ok := exporters[protocol]
	if !ok {
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", protocol)
	}
	return build(ctx, endpoint, cfg.Insecure)
}
