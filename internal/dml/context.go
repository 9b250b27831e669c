package dml

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// batchedOp is one deferred operation, capturing everything needed to record
// it on the worker goroutine.
type batchedOp func()

// sharedState is the scheduler state shared between producer goroutines and
// the worker. It is reference-held by both the ExecutionContext handle and
// the worker goroutine, so tearing down the handle while the worker still
// runs detached is safe.
type sharedState struct {
	mu sync.Mutex

	// Double-buffered pending batches. Producers append to
	// batches[writeIndex]; the worker drains the other slot after a swap.
	// Swapping is an index flip, so the critical section stays O(1) no
	// matter how large the batch grew.
	batches    [2][]batchedOp
	writeIndex int

	flushRequested bool
	exitRequested  bool

	// nextFlushEvent completes when the next flush's submission retires.
	// Returned to producers as the tentative completion event for the work
	// they just enqueued.
	nextFlushEvent GpuEvent

	// status is the most recent worker-side flush failure, surfaced to the
	// next Flush caller. Recoverable failures are cleared once reported;
	// fatal ones stick.
	status error

	// wake nudges the worker when work is enqueued, a flush is requested,
	// or exit is requested. Buffered so producers never block on it.
	wake chan struct{}
}

func (s *sharedState) writeBatchLen() int {
	return len(s.batches[s.writeIndex])
}

func (s *sharedState) appendLocked(op batchedOp) {
	s.batches[s.writeIndex] = append(s.batches[s.writeIndex], op)
}

func (s *sharedState) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ExecutionContext batches GPU work from arbitrarily many goroutines and
// submits it from a single background worker. Enqueue calls are purely
// deferred: they append a closure, wake the worker, and return a tentative
// completion event; the worker swaps batches, records the drained operations
// in enqueue order, and submits them as one command list.
//
// All methods are safe for concurrent use.
type ExecutionContext struct {
	id      uuid.UUID
	shared  *sharedState
	engine  *executionEngine
	tracing *tracing
}

// NewExecutionContext creates an execution context over the given device and
// queue and starts its worker goroutine. ops records operator dispatches;
// zero fields of opts fall back to the environment and then the defaults.
func NewExecutionContext(device Device, queue SubmitQueue, ops OperatorRecorder, opts Options) (*ExecutionContext, error) {
	opts = opts.withDefaults()

	engine, err := newExecutionEngine(device, queue, ops)
	if err != nil {
		return nil, err
	}

	shared := &sharedState{wake: make(chan struct{}, 1)}
	shared.nextFlushEvent = engine.GetCurrentCompletionEvent()
	shared.nextFlushEvent.FenceValue++

	id := uuid.New()
	c := &ExecutionContext{
		id:      id,
		shared:  shared,
		engine:  engine,
		tracing: newTracing(id),
	}

	go c.workerLoop(opts.BatchFlushSize, opts.BatchFlushTime)

	return c, nil
}

// ID returns the context's instance identifier.
func (c *ExecutionContext) ID() uuid.UUID {
	return c.id
}

// Close requests worker exit and returns immediately; it never waits for the
// worker or for in-flight GPU work. Callers needing completion should Flush
// and wait on the returned event first.
func (c *ExecutionContext) Close() {
	s := c.shared
	s.mu.Lock()
	s.exitRequested = true
	s.signal()
	s.mu.Unlock()
}

// CopyBufferRegion enqueues a copy of byteCount bytes from src to dst. The
// returned event completes once a flush covering this operation occurs.
func (c *ExecutionContext) CopyBufferRegion(dst Buffer, dstOffset uint64, dstState ResourceState,
	src Buffer, srcOffset uint64, srcState ResourceState, byteCount uint64) GpuEvent {
	c.tracing.logCopyBufferRegion()

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(func() {
		c.engine.CopyBufferRegion(dst, dstOffset, dstState, src, srcOffset, srcState, byteCount)
	})
	s.signal()
	return s.nextFlushEvent
}

// FillBufferWithPattern enqueues a fill of dstSize bytes of dst at dstOffset
// with value repeated. See the alignment constraints on the engine method.
func (c *ExecutionContext) FillBufferWithPattern(dst Buffer, dstOffset, dstSize uint64, value []byte) GpuEvent {
	c.tracing.logFillBufferWithPattern()

	// The caller may reuse value after this call returns; the closure owns
	// a copy.
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(func() {
		c.engine.FillBufferWithPattern(dst, dstOffset, dstSize, valueCopy)
	})
	s.signal()
	return s.nextFlushEvent
}

// InitializeOperator enqueues one-time operator initialization. Ownership of
// bindings transfers into the call.
func (c *ExecutionContext) InitializeOperator(init OperatorInitializer, bindings BindingTable, heap DescriptorHeap) GpuEvent {
	c.tracing.logInitializeOperator()

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(func() {
		c.engine.InitializeOperator(init, bindings, heap)
	})
	s.signal()
	return s.nextFlushEvent
}

// ExecuteOperator enqueues a compiled operator dispatch. Ownership of
// bindings transfers into the call.
func (c *ExecutionContext) ExecuteOperator(op CompiledOperator, bindings BindingTable, heap DescriptorHeap) GpuEvent {
	c.tracing.logExecuteOperator()

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(func() {
		c.engine.ExecuteOperator(op, bindings, heap)
	})
	s.signal()
	return s.nextFlushEvent
}

// ResourceBarrier enqueues an explicit barrier sequence.
func (c *ExecutionContext) ResourceBarrier(barriers []Barrier) GpuEvent {
	c.tracing.logBarrier()

	// The caller's slice may not outlive the call.
	barriersCopy := make([]Barrier, len(barriers))
	copy(barriersCopy, barriers)

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(func() {
		c.engine.ResourceBarrier(barriersCopy)
	})
	s.signal()
	return s.nextFlushEvent
}

// UavBarrier enqueues a global unordered-access barrier.
func (c *ExecutionContext) UavBarrier() GpuEvent {
	c.tracing.logBarrier()

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(func() {
		c.engine.UavBarrier()
	})
	s.signal()
	return s.nextFlushEvent
}

// Flush asks the worker to submit the pending batch as soon as possible and
// returns the event that flush will signal. If the batch is empty the
// previous, already-satisfied event is returned instead: nothing new is
// pending, so promising a future flush would hand out an event that may
// never be reached.
//
// Flush is also where earlier submission failures surface. A recoverable
// failure is reported to exactly one caller and then cleared; a fatal one is
// reported to every caller from then on.
func (c *ExecutionContext) Flush() (GpuEvent, error) {
	c.tracing.logFlushRequested()

	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	event := s.nextFlushEvent
	if s.writeBatchLen() == 0 {
		event.FenceValue--
	}

	s.flushRequested = true
	s.signal()

	err := s.status
	if err != nil && !isFatalStatus(err) {
		s.status = nil
	}
	return event, err
}

// GetCurrentCompletionEvent returns the event covering the batch as of this
// call, with the same empty-batch adjustment as Flush.
func (c *ExecutionContext) GetCurrentCompletionEvent() GpuEvent {
	s := c.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	event := s.nextFlushEvent
	if s.writeBatchLen() == 0 {
		event.FenceValue--
	}
	return event
}

// TracingCounters returns a snapshot of the context's instrumentation
// counters.
func (c *ExecutionContext) TracingCounters() TracingCounters {
	return c.tracing.counters()
}

// workerLoop runs on the dedicated worker goroutine until exit is requested.
// The flush decision balances feeding the GPU promptly against submitting
// many tiny command lists: flush when explicitly asked, when the batch is
// large enough, or when a partial batch has aged past the time threshold.
func (c *ExecutionContext) workerLoop(flushSize int, flushTime time.Duration) {
	s := c.shared
	lastFlush := time.Now()

	for {
		s.mu.Lock()
		if s.exitRequested {
			s.mu.Unlock()
			return
		}

		if s.writeBatchLen() == 0 {
			// Wait for new work to be batched.
			s.mu.Unlock()
			<-s.wake
			continue
		}

		elapsed := time.Since(lastFlush)
		flush := s.flushRequested || s.writeBatchLen() >= flushSize || elapsed >= flushTime
		drainIndex := s.writeIndex
		if flush {
			// Swap so producers append to the other buffer, and bump the
			// flush event optimistically: events already handed out become
			// valid once the drain below ends in a submission.
			s.writeIndex = (s.writeIndex + 1) % 2
			s.nextFlushEvent.FenceValue++
		}
		s.flushRequested = false
		s.mu.Unlock()

		if !flush {
			// Partial batch: sleep out the remaining time-to-flush, waking
			// early for new work, a flush request, or exit.
			timer := time.NewTimer(flushTime - elapsed)
			select {
			case <-s.wake:
			case <-timer.C:
			}
			timer.Stop()
			continue
		}

		// Only the worker touches the drained slot until the next swap, so
		// no lock is held while the (potentially slow) recording and
		// submission run. Producers keep enqueueing concurrently.
		drained := s.batches[drainIndex]
		endSpan := c.tracing.startSubmission(len(drained))
		for _, op := range drained {
			op()
		}
		s.batches[drainIndex] = drained[:0]

		_, err := c.engine.Flush()
		endSpan(err)
		if err != nil {
			s.mu.Lock()
			s.status = err
			s.mu.Unlock()
		}
		lastFlush = time.Now()
	}
}
