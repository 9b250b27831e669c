package dml

import (
	"errors"
	"fmt"
)

// fillPatternSize is the width of a raw-buffer clear pattern in bytes.
const fillPatternSize = 16

// executionEngine owns exactly one open command list at a time and records
// operations onto it. It is driven exclusively by the worker goroutine, so it
// needs no locking of its own.
//
// Invariant: a command list is open and ready to record before and after
// every exported method, as long as status permits. Once status becomes
// fatal, recording is skipped and only status/event queries are served.
type executionEngine struct {
	device   Device
	queue    *CommandQueue
	descPool *descriptorPool
	ring     *allocatorRing
	recorder commandRecorder

	currentList CommandList
	// cachedLists recycles closed command lists FIFO so reopening rarely
	// allocates. A list enters the cache only after a successful close.
	cachedLists []CommandList
	// currentHeap caches the descriptor heap bound on currentList so
	// redundant SetDescriptorHeap calls are elided. Reset to nil whenever
	// the list is reopened.
	currentHeap DescriptorHeap

	// opsRecorded counts operations recorded into currentList since it was
	// opened. A list with zero operations is never submitted.
	opsRecorded int

	// status holds the last failure. Recoverable failures are cleared after
	// Flush reports them once; fatal ones stay forever.
	status error
}

func newExecutionEngine(device Device, rawQueue SubmitQueue, ops OperatorRecorder) (*executionEngine, error) {
	queue := NewCommandQueue(rawQueue)
	ring, err := newAllocatorRing(device, queue.Type(), queue.GetCurrentCompletionEvent())
	if err != nil {
		return nil, fmt.Errorf("dml: create allocator ring: %w", err)
	}

	e := &executionEngine{
		device:   device,
		queue:    queue,
		descPool: newDescriptorPool(device, defaultDescriptorPoolCapacity),
		ring:     ring,
		recorder: commandRecorder{ops: ops},
	}
	e.openCommandList()
	if e.status != nil {
		return nil, e.status
	}
	return e, nil
}

// CopyBufferRegion records a copy of byteCount bytes between two buffers.
func (e *executionEngine) CopyBufferRegion(dst Buffer, dstOffset uint64, dstState ResourceState,
	src Buffer, srcOffset uint64, srcState ResourceState, byteCount uint64) GpuEvent {
	if e.status != nil {
		return e.GetCurrentCompletionEvent()
	}

	e.recorder.copyBufferRegion(e.currentList, dst, dstOffset, dstState, src, srcOffset, srcState, byteCount)
	e.onCommandRecorded()
	return e.GetCurrentCompletionEvent()
}

// FillBufferWithPattern fills dstSize bytes of dst, starting at dstOffset,
// with value repeated. value is treated as raw bits; it must be at most 16
// bytes and divide 16 evenly, and the destination offset and size must be
// 4-byte aligned. Violations are programming errors and panic.
func (e *executionEngine) FillBufferWithPattern(dst Buffer, dstOffset, dstSize uint64, value []byte) GpuEvent {
	if e.status != nil {
		return e.GetCurrentCompletionEvent()
	}

	// The clear pattern is 16 bytes; no element type is larger than 128
	// bits, and every supported element size divides 16 evenly.
	if len(value) > fillPatternSize {
		panic(fmt.Sprintf("dml: fill value too large: %d bytes", len(value)))
	}
	if len(value) > 0 && fillPatternSize%len(value) != 0 {
		panic(fmt.Sprintf("dml: fill value size %d does not divide the %d-byte pattern", len(value), fillPatternSize))
	}
	if dstOffset%4 != 0 || dstSize%4 != 0 {
		panic("dml: fill offset and size must be 4-byte aligned")
	}

	var pattern [4]uint32
	if len(value) > 0 {
		var raw [fillPatternSize]byte
		for i := range raw {
			raw[i] = value[i%len(value)]
		}
		for i := range pattern {
			pattern[i] = uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		}
	}

	// The clear needs both a CPU-visible and a shader-visible view over the
	// destination; both live until the submission that carries them retires.
	doneEvent := e.queue.GetNextCompletionEvent()
	cpuView, err := e.descPool.AllocDescriptors(1, doneEvent, false)
	if err != nil {
		e.status = fmt.Errorf("dml: alloc descriptors: %w", err)
		return e.GetCurrentCompletionEvent()
	}
	gpuView, err := e.descPool.AllocDescriptors(1, doneEvent, true)
	if err != nil {
		e.status = fmt.Errorf("dml: alloc descriptors: %w", err)
		return e.GetCurrentCompletionEvent()
	}
	e.device.CreateRawBufferView(dst, dstOffset, dstSize, cpuView)
	e.device.CreateRawBufferView(dst, dstOffset, dstSize, gpuView)

	e.setDescriptorHeap(gpuView.Heap)
	e.recorder.clearBuffer(e.currentList, gpuView, cpuView, dst, pattern)
	e.onCommandRecorded()
	return e.GetCurrentCompletionEvent()
}

// InitializeOperator records one-time operator initialization.
func (e *executionEngine) InitializeOperator(init OperatorInitializer, bindings BindingTable, heap DescriptorHeap) GpuEvent {
	if e.status != nil {
		return e.GetCurrentCompletionEvent()
	}

	e.setDescriptorHeap(heap)

	// Barriers only matter if initialization writes anything: a persistent
	// resource output or temporary scratch.
	props := init.BindingProperties()
	withBarriers := props.PersistentResourceSize > 0 || props.TemporaryResourceSize > 0
	e.recorder.dispatch(e.currentList, init, bindings, withBarriers)
	e.onCommandRecorded()
	return e.GetCurrentCompletionEvent()
}

// ExecuteOperator records a compiled operator dispatch.
func (e *executionEngine) ExecuteOperator(op CompiledOperator, bindings BindingTable, heap DescriptorHeap) GpuEvent {
	if e.status != nil {
		return e.GetCurrentCompletionEvent()
	}

	e.setDescriptorHeap(heap)
	e.recorder.dispatch(e.currentList, op, bindings, true)
	e.onCommandRecorded()
	return e.GetCurrentCompletionEvent()
}

// ResourceBarrier records an explicit barrier sequence.
func (e *executionEngine) ResourceBarrier(barriers []Barrier) GpuEvent {
	if e.status != nil {
		return e.GetCurrentCompletionEvent()
	}

	e.currentList.ResourceBarrier(barriers)
	e.onCommandRecorded()
	return e.GetCurrentCompletionEvent()
}

// UavBarrier records a global unordered-access barrier.
func (e *executionEngine) UavBarrier() GpuEvent {
	if e.status != nil {
		return e.GetCurrentCompletionEvent()
	}

	e.currentList.ResourceBarrier([]Barrier{UAVBarrier()})
	e.onCommandRecorded()
	return e.GetCurrentCompletionEvent()
}

// Flush closes and submits the current command list if it recorded anything,
// then reopens a fresh one. With nothing recorded it is a no-op: empty
// command lists are never submitted. A recoverable failure is returned once
// and cleared; a fatal failure is returned forever.
func (e *executionEngine) Flush() (GpuEvent, error) {
	if e.opsRecorded == 0 {
		return e.GetCurrentCompletionEvent(), nil
	}

	e.closeCommandListAndExecute()

	if e.status != nil {
		err := e.status
		if !isFatalStatus(err) {
			e.status = nil
		}
		return e.GetCurrentCompletionEvent(), err
	}
	return e.GetCurrentCompletionEvent(), nil
}

// GetCurrentCompletionEvent returns the event covering everything recorded
// so far. Work recorded but not yet submitted completes on the *next* fence
// value, not the current one.
func (e *executionEngine) GetCurrentCompletionEvent() GpuEvent {
	event := e.queue.GetCurrentCompletionEvent()
	if e.opsRecorded != 0 {
		event.FenceValue++
	}
	return event
}

func (e *executionEngine) setDescriptorHeap(heap DescriptorHeap) {
	if heap != nil && heap != e.currentHeap {
		e.currentHeap = heap
		e.currentList.SetDescriptorHeap(heap)
	}
}

func (e *executionEngine) onCommandRecorded() {
	e.opsRecorded++
}

func (e *executionEngine) openCommandList() {
	alloc := e.ring.CurrentAllocator()

	if len(e.cachedLists) == 0 {
		list, err := e.device.CreateCommandList(e.queue.Type(), alloc)
		if err != nil {
			e.status = fmt.Errorf("dml: create command list: %w", err)
			return
		}
		e.currentList = list
	} else {
		list := e.cachedLists[0]
		e.cachedLists = e.cachedLists[1:]
		if err := list.Reset(alloc); err != nil {
			e.status = fmt.Errorf("dml: reset command list: %w", err)
			return
		}
		e.currentList = list
	}
}

func (e *executionEngine) closeCommandListAndExecute() {
	if e.status != nil {
		return
	}

	err := e.currentList.Close()
	switch {
	case errors.Is(err, ErrResourceExhausted):
		e.status = ErrResourceExhausted
	case err != nil:
		e.status = fmt.Errorf("dml: close command list: %w", err)
	default:
		if e.opsRecorded != 0 {
			e.queue.ExecuteCommandLists([]CommandList{e.currentList})
		}
		e.cachedLists = append(e.cachedLists, e.currentList)
	}

	e.currentList = nil
	e.opsRecorded = 0

	// The descriptor heap must be rebound the next time a list is opened.
	e.currentHeap = nil

	// Device removal trumps whatever happened at close time: it is the one
	// condition nothing can recover from.
	if reason := e.device.RemovedReason(); reason != nil {
		e.status = fmt.Errorf("%w: %v", ErrDeviceRemoved, reason)
		return
	}

	// Retire the allocator the closed list recorded against. The current
	// completion event covers its last submitted use: on a successful
	// submit that is the submission made just above, and on a failed close
	// nothing new was submitted, so the allocator is already idle. The
	// stamp must never name a fence value no submission carries, or the
	// ring would wait on it forever.
	if err := e.ring.AdvanceAllocator(e.queue.GetCurrentCompletionEvent()); err != nil && e.status == nil {
		e.status = fmt.Errorf("dml: advance command allocator: %w", err)
	}

	// Always keep a command list open and ready to record.
	e.openCommandList()
}
