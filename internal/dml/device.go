package dml

// This file defines the narrow device/driver surface the engine records
// against. Device and queue creation, capability queries, and operator
// compilation all happen outside this package; the engine only consumes the
// interfaces below.

// QueueType identifies the kind of command queue a command list targets.
type QueueType int

// Supported queue types.
const (
	QueueTypeDirect QueueType = iota
	QueueTypeCompute
	QueueTypeCopy
)

// String returns a human-readable queue type name.
func (t QueueType) String() string {
	switch t {
	case QueueTypeDirect:
		return "Direct"
	case QueueTypeCompute:
		return "Compute"
	case QueueTypeCopy:
		return "Copy"
	default:
		return "Unknown"
	}
}

// ResourceState is a bitmask describing how a buffer is currently usable on
// the GPU timeline. Transition barriers move a buffer between states.
type ResourceState uint32

// Resource states.
const (
	ResourceStateCommon          ResourceState = 0
	ResourceStateCopySource      ResourceState = 1 << 0
	ResourceStateCopyDest        ResourceState = 1 << 1
	ResourceStateUnorderedAccess ResourceState = 1 << 2
)

// BarrierKind discriminates the barrier variants a command list can record.
type BarrierKind int

// Barrier kinds.
const (
	// BarrierTransition moves Resource from Before to After.
	BarrierTransition BarrierKind = iota
	// BarrierAliasing orders accesses to physical memory shared between
	// placed resources. A nil Resource means "all resources".
	BarrierAliasing
	// BarrierUAV orders unordered-access writes against subsequent reads.
	// A nil Resource means "all UAV accesses".
	BarrierUAV
)

// Barrier is a synchronization declaration recorded onto a command list.
type Barrier struct {
	Kind     BarrierKind
	Resource Buffer
	Before   ResourceState
	After    ResourceState
}

// TransitionBarrier returns a barrier moving res from before to after.
func TransitionBarrier(res Buffer, before, after ResourceState) Barrier {
	return Barrier{Kind: BarrierTransition, Resource: res, Before: before, After: after}
}

// AliasingBarrier returns a global aliasing barrier.
func AliasingBarrier() Barrier {
	return Barrier{Kind: BarrierAliasing}
}

// UAVBarrier returns a global unordered-access barrier.
func UAVBarrier() Barrier {
	return Barrier{Kind: BarrierUAV}
}

// Buffer is a GPU buffer resource handle.
type Buffer interface {
	// SizeInBytes returns the buffer's allocation size.
	SizeInBytes() uint64
}

// CommandAllocator backs the recording storage of command lists. At most one
// open command list may record against an allocator at a time, and the
// allocator may only be reset once the GPU has finished executing every list
// recorded against it.
type CommandAllocator interface {
	Reset() error
}

// DescriptorHeap holds a contiguous array of resource descriptors. Heaps are
// compared by identity when deciding whether a command list rebind is needed.
type DescriptorHeap interface {
	// NumDescriptors returns the heap's capacity.
	NumDescriptors() int
}

// DescriptorRange is a span of descriptors allocated from a heap.
type DescriptorRange struct {
	Heap   DescriptorHeap
	Offset int
	Count  int
}

// CommandList records device-level commands for later submission.
//
// Recording methods do not return errors: a command list accumulates
// failures internally and surfaces them when it is closed, mirroring how
// command recording works on real drivers.
type CommandList interface {
	// Reset re-opens a previously closed list for recording against alloc.
	Reset(alloc CommandAllocator) error

	// Close ends recording. A closed list can be submitted exactly once
	// before being reset. Close reports resource exhaustion via
	// ErrResourceExhausted.
	Close() error

	CopyBufferRegion(dst Buffer, dstOffset uint64, src Buffer, srcOffset, byteCount uint64)

	// ClearBufferUint writes the 16-byte pattern repeatedly across the raw
	// buffer view described by gpuView/cpuView.
	ClearBufferUint(gpuView, cpuView DescriptorRange, dst Buffer, pattern [4]uint32)

	ResourceBarrier(barriers []Barrier)

	SetDescriptorHeap(heap DescriptorHeap)
}

// Fence is a monotonically increasing completion counter signaled by a queue.
type Fence interface {
	// CompletedValue returns the highest signaled value. Always cheap.
	CompletedValue() uint64

	// Wait blocks until CompletedValue() >= value.
	Wait(value uint64)
}

// SubmitQueue is the device-level command queue: raw submission and fence
// signaling. CommandQueue wraps it with completion-event bookkeeping.
type SubmitQueue interface {
	Type() QueueType

	// Submit enqueues closed command lists for execution in order.
	Submit(lists []CommandList)

	// Signal schedules the queue's fence to reach value once all previously
	// submitted work completes.
	Signal(value uint64)

	// Fence returns the fence this queue signals.
	Fence() Fence
}

// Device creates the objects the engine records with and reports device
// health.
type Device interface {
	CreateCommandAllocator(queueType QueueType) (CommandAllocator, error)
	CreateCommandList(queueType QueueType, alloc CommandAllocator) (CommandList, error)
	CreateDescriptorHeap(numDescriptors int, shaderVisible bool) (DescriptorHeap, error)

	// CreateRawBufferView writes a raw (4-byte word) buffer view descriptor
	// into dst. offset and size are in bytes and must be 4-byte aligned.
	CreateRawBufferView(buf Buffer, offset, size uint64, dst DescriptorRange)

	// RemovedReason returns nil while the device is healthy, or the
	// underlying reason once the device has been removed. Device removal is
	// permanent.
	RemovedReason() error
}

// BindingProperties describes the resources an operator binds while it
// executes.
type BindingProperties struct {
	PersistentResourceSize uint64
	TemporaryResourceSize  uint64
}

// Dispatchable is work an OperatorRecorder can record onto a command list:
// either a compiled operator or an operator initializer.
type Dispatchable interface {
	BindingProperties() BindingProperties
}

// CompiledOperator is a fully compiled operator ready for repeated execution.
type CompiledOperator interface {
	Dispatchable
}

// OperatorInitializer performs the one-time initialization of one or more
// compiled operators (e.g. preparing persistent resources).
type OperatorInitializer interface {
	Dispatchable
}

// BindingTable carries the vendor-specific resource bindings an operator
// needs. It is opaque to the engine; ownership transfers into the enqueue
// call that consumes it.
type BindingTable interface{}

// OperatorRecorder emits the vendor-specific dispatch command for an
// operator onto an open command list.
type OperatorRecorder interface {
	RecordDispatch(list CommandList, op Dispatchable, bindings BindingTable)
}
