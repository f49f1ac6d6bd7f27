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

	"github.com/kbukum/etlkit/logger"
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
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
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

	readerOpts := []sdkmetric.PeriodicReaderOption{}
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

// Metrics holds the instruments recorded by batch steps and nested pipelines.
type Metrics struct {
	invocationTotal    metric.Int64Counter
	invocationDuration metric.Float64Histogram
	groupSize          metric.Int64Histogram
	stepTotal          metric.Int64Counter
	stepDuration       metric.Float64Histogram
	errorTotal         metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	invocationTotal, err := meter.Int64Counter("invocation.total",
		metric.WithDescription("Total number of sub-pipeline invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation.total counter: %w", err)
	}

	invocationDuration, err := meter.Float64Histogram("invocation.duration",
		metric.WithDescription("Duration of sub-pipeline invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocation.duration histogram: %w", err)
	}

	groupSize, err := meter.Int64Histogram("group.size",
		metric.WithDescription("Number of records handed to one invocation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating group.size histogram: %w", err)
	}

	stepTotal, err := meter.Int64Counter("step.total",
		metric.WithDescription("Total number of nested step executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.total counter: %w", err)
	}

	stepDuration, err := meter.Float64Histogram("step.duration",
		metric.WithDescription("Duration of nested step executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating step.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		invocationTotal:    invocationTotal,
		invocationDuration: invocationDuration,
		groupSize:          groupSize,
		stepTotal:          stepTotal,
		stepDuration:       stepDuration,
		errorTotal:         errorTotal,
	}, nil
}

// RecordInvocation records one completed sub-pipeline invocation.
func (m *Metrics) RecordInvocation(ctx context.Context, step, pipeline, status string, groupSize int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("pipeline", pipeline),
		attribute.String("status", status),
	)
	m.invocationTotal.Add(ctx, 1, attrs)
	m.invocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("pipeline", pipeline),
	))
	m.groupSize.Record(ctx, int64(groupSize), metric.WithAttributes(
		attribute.String("step", step),
	))
}

// RecordStep records one nested step execution.
func (m *Metrics) RecordStep(ctx context.Context, pipeline, step, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("step", step),
		attribute.String("status", status),
	)
	m.stepTotal.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("step", step),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
