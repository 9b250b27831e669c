package dml

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Artoria2e5/tensorflow-directml/internal/dml"

// TracingCounters is a snapshot of per-operation instrumentation counters.
type TracingCounters struct {
	Copies          uint64
	Fills           uint64
	Initializations uint64
	Executions      uint64
	Barriers        uint64
	Flushes         uint64
	Submissions     uint64
}

// tracing holds the fire-and-forget instrumentation for one execution
// context. Counter hooks are plain atomic increments; flushes additionally
// emit a span through the globally installed tracer provider, which is a
// no-op when none is configured. Nothing here may fail or block the hot
// path.
type tracing struct {
	tracer    trace.Tracer
	contextID attribute.KeyValue

	copies  atomic.Uint64
	fills   atomic.Uint64
	inits   atomic.Uint64
	execs   atomic.Uint64
	barrs   atomic.Uint64
	flushes atomic.Uint64
	submits atomic.Uint64
}

func newTracing(contextID uuid.UUID) *tracing {
	return &tracing{
		tracer:    otel.Tracer(tracerName),
		contextID: attribute.String("dml.context_id", contextID.String()),
	}
}

func (t *tracing) logCopyBufferRegion() { t.copies.Add(1) }

func (t *tracing) logFillBufferWithPattern() { t.fills.Add(1) }

func (t *tracing) logInitializeOperator() { t.inits.Add(1) }

func (t *tracing) logExecuteOperator() { t.execs.Add(1) }

func (t *tracing) logBarrier() { t.barrs.Add(1) }

func (t *tracing) logFlushRequested() { t.flushes.Add(1) }

// startSubmission opens a span around one worker-side flush of batchSize
// operations. The returned func ends the span, recording the outcome.
func (t *tracing) startSubmission(batchSize int) func(err error) {
	t.submits.Add(1)
	_, span := t.tracer.Start(context.Background(), "dml.flush",
		trace.WithAttributes(
			t.contextID,
			attribute.Int("dml.batch_size", batchSize),
		))
	return func(err error) {
		if err != nil {
			span.SetAttributes(attribute.String("dml.error", err.Error()))
		}
		span.End()
	}
}

func (t *tracing) counters() TracingCounters {
	return TracingCounters{
		Copies:          t.copies.Load(),
		Fills:           t.fills.Load(),
		Initializations: t.inits.Load(),
		Executions:      t.execs.Load(),
		Barriers:        t.barrs.Load(),
		Flushes:         t.flushes.Load(),
		Submissions:     t.submits.Load(),
	}
}
