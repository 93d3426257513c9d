package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpMeta identifies a guarded operation for telemetry purposes.
type OpMeta struct {
	Component string // "cache" or "pool"
	Op        string // operation name, e.g. "get", "acquire"
}

// SpanName returns the deterministic span name for this operation.
// Format: guard.<component>.<op>
func (m OpMeta) SpanName() string {
	return "guard." + m.Component + "." + m.Op
}

// Metrics records guarded operation outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one operation with its duration, error
	// status, and whether the fallback path served it.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error, fallback bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	totalCount    metric.Int64Counter
	errorCount    metric.Int64Counter
	fallbackCount metric.Int64Counter
	durationHist  metric.Float64Histogram
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"guard.ops.total",
		metric.WithDescription("Total number of guarded operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"guard.ops.errors",
		metric.WithDescription("Total number of guarded operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := meter.Int64Counter(
		"guard.ops.fallback",
		metric.WithDescription("Operations served by the degraded-mode fallback path"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"guard.ops.duration_ms",
		metric.WithDescription("Guarded operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		totalCount:    totalCount,
		errorCount:    errorCount,
		fallbackCount: fallbackCount,
		durationHist:  durationHist,
	}, nil
}

// RecordOperation records metrics for one guarded operation.
func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error, fallback bool) {
	attrs := []attribute.KeyValue{
		attribute.String("guard.component", meta.Component),
		attribute.String("guard.op", meta.Op),
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)

	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	if fallback {
		m.fallbackCount.Add(ctx, 1, opt)
	}

	durationMs := float64(duration.Microseconds()) / 1000.0
	m.durationHist.Record(ctx, durationMs, opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error, fallback bool) {
}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics { return &noopMetrics{} }
