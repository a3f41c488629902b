package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/automeet/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the automeet core.
type Metrics struct {
	limiterAcquire   metric.Int64Counter
	limiterWait      metric.Float64Histogram
	cacheLookup      metric.Int64Counter
	queueItems       metric.Int64Counter
	queueDepth       metric.Int64UpDownCounter
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
	streamEvents     metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.limiterAcquire, err = meter.Int64Counter("limiter.acquire.total",
		metric.WithDescription("Token acquisitions by limiter and outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating limiter.acquire.total counter: %w", err)
	}
	if m.limiterWait, err = meter.Float64Histogram("limiter.wait.duration",
		metric.WithDescription("Time spent blocked waiting for tokens"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating limiter.wait.duration histogram: %w", err)
	}
	if m.cacheLookup, err = meter.Int64Counter("cache.lookup.total",
		metric.WithDescription("Result cache lookups by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating cache.lookup.total counter: %w", err)
	}
	if m.queueItems, err = meter.Int64Counter("queue.items.total",
		metric.WithDescription("Work items handled by status"),
	); err != nil {
		return nil, fmt.Errorf("creating queue.items.total counter: %w", err)
	}
	if m.queueDepth, err = meter.Int64UpDownCounter("queue.depth",
		metric.WithDescription("Published work items not yet handled"),
	); err != nil {
		return nil, fmt.Errorf("creating queue.depth gauge: %w", err)
	}
	if m.providerCalls, err = meter.Int64Counter("provider.call.total",
		metric.WithDescription("External provider calls by status"),
	); err != nil {
		return nil, fmt.Errorf("creating provider.call.total counter: %w", err)
	}
	if m.providerDuration, err = meter.Float64Histogram("provider.call.duration",
		metric.WithDescription("Duration of external provider calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating provider.call.duration histogram: %w", err)
	}
	if m.streamEvents, err = meter.Int64Counter("stream.events.total",
		metric.WithDescription("Streaming recognition events by kind"),
	); err != nil {
		return nil, fmt.Errorf("creating stream.events.total counter: %w", err)
	}
	return &m, nil
}

// RecordLimiterAcquire records a token acquisition attempt. outcome is one of
// "granted", "denied" or "cancelled"; waited is zero for immediate grants.
func (m *Metrics) RecordLimiterAcquire(ctx context.Context, limiter, outcome string, waited time.Duration) {
	if m == nil {
		return
	}
	m.limiterAcquire.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter", limiter),
		attribute.String("outcome", outcome),
	))
	if waited > 0 {
		m.limiterWait.Record(ctx, waited.Seconds(), metric.WithAttributes(
			attribute.String("limiter", limiter),
		))
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookup.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("result", result),
	))
}

// RecordQueuePublished increments the queue depth.
func (m *Metrics) RecordQueuePublished(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

// RecordQueueHandled decrements the queue depth and counts the item by status.
func (m *Metrics) RecordQueueHandled(ctx context.Context, queue, status string) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, -1, metric.WithAttributes(attribute.String("queue", queue)))
	m.queueItems.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("status", status),
	))
}

// RecordProviderCall records one external provider invocation.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
	m.providerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
	))
}

// RecordStreamEvent counts a streaming event as "partial" or "final".
func (m *Metrics) RecordStreamEvent(ctx context.Context, final bool) {
	if m == nil {
		return
	}
	kind := "partial"
	if final {
		kind = "final"
	}
	m.streamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
