// Package otel installs the process-wide OpenTelemetry tracer provider and
// provides HTTP tracing middleware.
package otel

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterZipkin = "zipkin"
	ExporterNone   = "none"
)

// Config configures Initialize.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Exporter is one of stdout, zipkin or none. None still samples and
	// propagates trace context but exports nothing.
	Exporter string
	// Endpoint is the zipkin collector URL, e.g. http://localhost:9411/api/v2/spans.
	Endpoint string
	// SampleRate is the fraction of root spans sampled, 0 to 1.
	SampleRate float64

	// Writer receives stdout spans; os.Stdout when nil.
	Writer io.Writer
}

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// Initialize builds a tracer provider from cfg and installs it globally
// together with the W3C trace context propagator. A provider installed by an
// earlier call is shut down first.
func Initialize(ctx context.Context, cfg Config) error {
	if cfg.ServiceName == "" {
		return fmt.Errorf("otel: service name is required")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("otel: sample rate %v outside [0,1]", cfg.SampleRate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(newResource(cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return err
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	mu.Lock()
	previous := provider
	provider = tp
	mu.Unlock()

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if previous != nil {
		return previous.Shutdown(ctx)
	}
	return nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterZipkin:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("otel: zipkin exporter needs an endpoint")
		}
		return zipkin.New(cfg.Endpoint)
	case ExporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("otel: unknown exporter %q", cfg.Exporter)
	}
}

func newResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", cfg.Environment))
	}
	return resource.NewSchemaless(attrs...)
}

// IsInitialized reports whether Initialize installed a provider that has not been shut down.
func IsInitialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return provider != nil
}

// Shutdown flushes pending spans and releases the provider. It is a no-op
// when nothing was initialized.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
