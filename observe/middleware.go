package observe

import (
	"context"
	"time"
)

// Instrumentation bundles a tracer and metrics recorder for wrapping
// guarded operations.
type Instrumentation struct {
	tracer  Tracer
	metrics Metrics
}

// NewInstrumentation creates an Instrumentation from an Observer.
func NewInstrumentation(obs Observer) (*Instrumentation, error) {
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return &Instrumentation{
		tracer:  NewTracer(obs.Tracer()),
		metrics: metrics,
	}, nil
}

// NewInstrumentationWith creates an Instrumentation from explicit
// parts. Nil parts become no-ops.
func NewInstrumentationWith(tracer Tracer, metrics Metrics) *Instrumentation {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Instrumentation{tracer: tracer, metrics: metrics}
}

// Observe runs fn inside a span and records its outcome. fn reports
// whether the fallback path served the operation.
func (i *Instrumentation) Observe(ctx context.Context, meta OpMeta, fn func(context.Context) (bool, error)) error {
	ctx, span := i.tracer.StartSpan(ctx, meta)
	start := time.Now()

	fallback, err := fn(ctx)

	i.metrics.RecordOperation(ctx, meta, time.Since(start), err, fallback)
	i.tracer.EndSpan(span, err)
	return err
}
