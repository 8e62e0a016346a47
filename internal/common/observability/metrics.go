package observability

import (
	"context"
	"time"

	"catalog-bff/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	cycleCounter   otelmetric.Int64Counter
	cycleDuration  otelmetric.Float64Histogram
}

type options struct {
	registerer     promclient.Registerer
	spanProcessors []sdktrace.SpanProcessor
	global         bool
}

type Option func(*options)

// WithRegisterer sends exported metrics to reg instead of the default
// prometheus registry.
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanProcessor attaches a span processor to the tracer provider.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithoutGlobal leaves the otel global providers untouched.
func WithoutGlobal() Option {
	return func(o *options) { o.global = false }
}

func New(serviceName string, log logger.Logger, opts ...Option) *Observability {
	o := options{global: true}
	for _, opt := range opts {
		opt(&o)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	if o.global {
		otel.SetTracerProvider(tracerProvider)
	}

	obs := &Observability{
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
	}

	// Underscored names with unit and _total suffixes, matching the promauto
	// series exported next to them.
	exporterOpts := []prometheus.Option{
		prometheus.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	}
	if o.registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(o.registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{
			"error": err.Error(),
		})
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	if o.global {
		otel.SetMeterProvider(provider)
	}

	meter := provider.Meter(serviceName)

	cycleCounter, _ := meter.Int64Counter(
		"aggregation.cycles",
		otelmetric.WithDescription("Number of aggregation cycles by outcome"),
	)

	cycleDuration, _ := meter.Float64Histogram(
		"aggregation.duration",
		otelmetric.WithDescription("Aggregation cycle duration"),
		otelmetric.WithUnit("ms"),
	)

	obs.meterProvider = provider
	obs.cycleCounter = cycleCounter
	obs.cycleDuration = cycleDuration
	return obs
}

// Tracer returns the service tracer, or a no-op tracer on a nil receiver.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return o.tracer
}

// RecordCycle counts one finished aggregation cycle.
func (o *Observability) RecordCycle(ctx context.Context, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.cycleCounter != nil {
		o.cycleCounter.Add(ctx, 1, attrs)
	}
	if o.cycleDuration != nil {
		o.cycleDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
