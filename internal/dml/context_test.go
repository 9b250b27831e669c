package dml

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

// newTestContext builds an execution context over a simulated device. The
// default options disable the size and time triggers so tests exercise one
// trigger at a time.
func newTestContext(t *testing.T, opts Options) (*ExecutionContext, *MockDevice, *MockQueue) {
	t.Helper()

	if opts.BatchFlushSize == 0 {
		opts.BatchFlushSize = 1 << 20
	}
	if opts.BatchFlushTime == 0 {
		opts.BatchFlushTime = time.Hour
	}

	device := NewMockDevice()
	queue := device.NewMockQueue(QueueTypeDirect)
	ctx, err := NewExecutionContext(device, queue, &MockOperatorRecorder{}, opts)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	return ctx, device, queue
}

func enqueueCopy(ctx *ExecutionContext, seq uint64) GpuEvent {
	src := NewMockBuffer("src", 1024)
	dst := NewMockBuffer("dst", 1024)
	return ctx.CopyBufferRegion(dst, seq, ResourceStateCopyDest, src, 0, ResourceStateCopySource, 16)
}

func TestCompletionEventStableWithoutTriggers(t *testing.T) {
	ctx, _, queue := newTestContext(t, Options{})

	var events []GpuEvent
	for i := 0; i < 5; i++ {
		events = append(events, enqueueCopy(ctx, uint64(i)))
	}

	// No trigger is met, so the event must not advance between calls.
	first := ctx.GetCurrentCompletionEvent()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.FenceValue, ctx.GetCurrentCompletionEvent().FenceValue)
	}
	for _, ev := range events {
		assert.Equal(t, first.FenceValue, ev.FenceValue)
	}
	assert.Equal(t, 0, queue.SubmissionCount())
}

func TestEmptyBatchEventIsOneLess(t *testing.T) {
	ctx, _, _ := newTestContext(t, Options{})

	empty := ctx.GetCurrentCompletionEvent()
	pending := enqueueCopy(ctx, 0)

	assert.Equal(t, empty.FenceValue+1, pending.FenceValue)
	assert.Equal(t, pending.FenceValue, ctx.GetCurrentCompletionEvent().FenceValue)
}

func TestFlushEmptyBatchNeverSubmits(t *testing.T) {
	ctx, _, queue := newTestContext(t, Options{})

	before := ctx.GetCurrentCompletionEvent()

	ev1, err := ctx.Flush()
	require.NoError(t, err)
	ev2, err := ctx.Flush()
	require.NoError(t, err)

	// An empty flush returns the previous, already satisfied event rather
	// than promising a flush that will do nothing.
	assert.Equal(t, before.FenceValue, ev1.FenceValue)
	assert.Equal(t, before.FenceValue, ev2.FenceValue)
	assert.True(t, ev1.IsSignaled())

	assert.Never(t, func() bool { return queue.SubmissionCount() != 0 }, 100*time.Millisecond, tick)
}

func TestExplicitFlushCarriesWholeBatch(t *testing.T) {
	ctx, _, queue := newTestContext(t, Options{BatchFlushSize: 4})

	dst := NewMockBuffer("dst", 256)
	for i := 0; i < 3; i++ {
		ctx.FillBufferWithPattern(dst, uint64(i)*16, 16, []byte{byte(i)})
	}

	ev, err := ctx.Flush()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.FenceValue)

	require.Eventually(t, func() bool { return queue.SubmissionCount() == 1 }, waitFor, tick)
	require.Eventually(t, ev.IsSignaled, waitFor, tick)

	clears := queue.OperationsOfKind(CommandClear)
	assert.Len(t, clears, 3)
	assert.Never(t, func() bool { return queue.SubmissionCount() > 1 }, 100*time.Millisecond, tick)
}

func TestSizeTriggerFlushesAutomatically(t *testing.T) {
	ctx, _, queue := newTestContext(t, Options{BatchFlushSize: 4})

	for i := 0; i < 4; i++ {
		enqueueCopy(ctx, uint64(i))
	}

	// No explicit flush: reaching the size threshold must be enough.
	require.Eventually(t, func() bool { return queue.SubmissionCount() == 1 }, waitFor, tick)

	copies := queue.OperationsOfKind(CommandCopy)
	require.Len(t, copies, 4)
	for i, cmd := range copies {
		assert.Equal(t, uint64(i), cmd.DstOffset, "operations must stay in enqueue order")
	}

	// A fifth operation rides in a later flush once another trigger fires.
	enqueueCopy(ctx, 4)
	_, err := ctx.Flush()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return queue.SubmissionCount() == 2 }, waitFor, tick)

	copies = queue.OperationsOfKind(CommandCopy)
	require.Len(t, copies, 5)
	assert.Equal(t, uint64(4), copies[4].DstOffset)
}

func TestSizeTriggerDoesNotSplitBatch(t *testing.T) {
	ctx, _, queue := newTestContext(t, Options{BatchFlushSize: 8})

	for i := 0; i < 8; i++ {
		enqueueCopy(ctx, uint64(i))
	}

	require.Eventually(t, func() bool { return queue.SubmissionCount() >= 1 }, waitFor, tick)
	assert.Equal(t, 1, queue.SubmissionCount())

	copies := queue.OperationsOfKind(CommandCopy)
	require.Len(t, copies, 8)
	for i, cmd := range copies {
		assert.Equal(t, uint64(i), cmd.DstOffset)
	}
}

func TestTimeTriggerFlushesPartialBatch(t *testing.T) {
	ctx, _, queue := newTestContext(t, Options{BatchFlushSize: 1 << 20, BatchFlushTime: 20 * time.Millisecond})

	for i := 0; i < 3; i++ {
		enqueueCopy(ctx, uint64(i))
	}

	require.Eventually(t, func() bool { return queue.SubmissionCount() >= 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(queue.OperationsOfKind(CommandCopy)) == 3 }, waitFor, tick)

	copies := queue.OperationsOfKind(CommandCopy)
	for i, cmd := range copies {
		assert.Equal(t, uint64(i), cmd.DstOffset)
	}
}

func TestConcurrentProducersLoseNothing(t *testing.T) {
	const producers = 8
	const perProducer = 50

	ctx, _, queue := newTestContext(t, Options{BatchFlushSize: 16, BatchFlushTime: 5 * time.Millisecond})

	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				enqueueCopy(ctx, uint64(g*1000+i))
			}
		}(g)
	}
	wg.Wait()

	_, err := ctx.Flush()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(queue.OperationsOfKind(CommandCopy)) == producers*perProducer
	}, waitFor, tick)

	// Every operation appears exactly once, and each producer's operations
	// stay in its enqueue order.
	seen := make(map[uint64]bool)
	lastPerProducer := make(map[int]int)
	for g := 0; g < producers; g++ {
		lastPerProducer[g] = -1
	}
	for _, cmd := range queue.OperationsOfKind(CommandCopy) {
		require.False(t, seen[cmd.DstOffset], "operation %d submitted twice", cmd.DstOffset)
		seen[cmd.DstOffset] = true

		g := int(cmd.DstOffset) / 1000
		i := int(cmd.DstOffset) % 1000
		require.Greater(t, i, lastPerProducer[g], "producer %d operations reordered", g)
		lastPerProducer[g] = i
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestRecoverableCloseFailureIsReportedOnce(t *testing.T) {
	ctx, device, queue := newTestContext(t, Options{})

	enqueueCopy(ctx, 0)
	device.FailNextClose(ErrResourceExhausted)

	_, err := ctx.Flush()
	require.NoError(t, err, "the failure cannot be visible before the worker flushed")

	// The failure surfaces at a later Flush call, exactly once.
	require.Eventually(t, func() bool {
		_, err := ctx.Flush()
		return errors.Is(err, ErrResourceExhausted)
	}, waitFor, tick)

	_, err = ctx.Flush()
	assert.NoError(t, err, "a recoverable failure is cleared after being reported")

	// New work goes through normally afterwards.
	enqueueCopy(ctx, 1)
	_, err = ctx.Flush()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return queue.SubmissionCount() == 1 }, waitFor, tick)
}

func TestRepeatedRecoverableFailuresRecover(t *testing.T) {
	ctx, device, queue := newTestContext(t, Options{})

	// Two flush cycles in a row fail at close. Each failure must surface
	// through Flush and leave the worker able to run the next cycle.
	for round := 0; round < 2; round++ {
		device.FailNextClose(ErrResourceExhausted)
		enqueueCopy(ctx, uint64(round))

		require.Eventuallyf(t, func() bool {
			_, err := ctx.Flush()
			return errors.Is(err, ErrResourceExhausted)
		}, waitFor, tick, "failure of round %d never surfaced", round)
	}

	// The worker survived both failures and still submits new work.
	enqueueCopy(ctx, 99)
	require.Eventually(t, func() bool {
		_, err := ctx.Flush()
		return err == nil && queue.SubmissionCount() == 1
	}, waitFor, tick)

	copies := queue.OperationsOfKind(CommandCopy)
	require.Len(t, copies, 1)
	assert.Equal(t, uint64(99), copies[0].DstOffset)
}

func TestDeviceRemovalIsSticky(t *testing.T) {
	ctx, device, queue := newTestContext(t, Options{})

	enqueueCopy(ctx, 0)
	device.Remove(fmt.Errorf("simulated hang"))

	_, err := ctx.Flush()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := ctx.Flush()
		return errors.Is(err, ErrDeviceRemoved)
	}, waitFor, tick)

	// Fatal state never clears, recording is skipped, and completion events
	// stay monotonic.
	submitted := queue.SubmissionCount()
	var last uint64
	for i := 0; i < 5; i++ {
		ev := enqueueCopy(ctx, uint64(i))
		assert.GreaterOrEqual(t, ev.FenceValue, last)
		last = ev.FenceValue

		_, err := ctx.Flush()
		assert.ErrorIs(t, err, ErrDeviceRemoved)
	}

	assert.Never(t, func() bool { return queue.SubmissionCount() > submitted }, 100*time.Millisecond, tick)
}

func TestCloseDoesNotBlock(t *testing.T) {
	ctx, _, _ := newTestContext(t, Options{})

	enqueueCopy(ctx, 0)

	done := make(chan struct{})
	go func() {
		ctx.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on worker shutdown")
	}
}

func TestTracingCounters(t *testing.T) {
	ctx, _, _ := newTestContext(t, Options{})

	dst := NewMockBuffer("dst", 256)
	enqueueCopy(ctx, 0)
	enqueueCopy(ctx, 1)
	ctx.FillBufferWithPattern(dst, 0, 16, []byte{0xff})
	ctx.UavBarrier()
	_, err := ctx.Flush()
	require.NoError(t, err)

	counters := ctx.TracingCounters()
	assert.Equal(t, uint64(2), counters.Copies)
	assert.Equal(t, uint64(1), counters.Fills)
	assert.Equal(t, uint64(1), counters.Barriers)
	assert.Equal(t, uint64(1), counters.Flushes)
}
