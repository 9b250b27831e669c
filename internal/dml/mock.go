package dml

import (
	"fmt"
	"sync"
)

// Verify that the mock types satisfy the device surface.
var (
	_ Device           = (*MockDevice)(nil)
	_ SubmitQueue      = (*MockQueue)(nil)
	_ CommandList      = (*MockCommandList)(nil)
	_ Fence            = (*MockFence)(nil)
	_ OperatorRecorder = (*MockOperatorRecorder)(nil)
)

// CommandKind tags a recorded mock command.
type CommandKind string

// Recorded command kinds.
const (
	CommandCopy     CommandKind = "copy"
	CommandClear    CommandKind = "clear"
	CommandBarrier  CommandKind = "barrier"
	CommandSetHeap  CommandKind = "set_heap"
	CommandDispatch CommandKind = "dispatch"
)

// RecordedCommand is one command captured by a mock command list.
type RecordedCommand struct {
	Kind      CommandKind
	Dst, Src  Buffer
	DstOffset uint64
	SrcOffset uint64
	ByteCount uint64
	Pattern   [4]uint32
	Barriers  []Barrier
	Heap      DescriptorHeap
	Op        Dispatchable
}

// MockFence is an in-process fence. Signaling completes immediately, as if
// the GPU executed submissions instantly.
type MockFence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
}

// NewMockFence creates a fence with completed value 0.
func NewMockFence() *MockFence {
	f := &MockFence{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// CompletedValue returns the highest signaled value.
func (f *MockFence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait blocks until the fence reaches value.
func (f *MockFence) Wait(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value {
		f.cond.Wait()
	}
}

func (f *MockFence) signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	f.cond.Broadcast()
}

// MockBuffer is a plain buffer handle for tests and simulations.
type MockBuffer struct {
	Label string
	Size  uint64
}

// NewMockBuffer creates a labeled buffer handle of the given size.
func NewMockBuffer(label string, size uint64) *MockBuffer {
	return &MockBuffer{Label: label, Size: size}
}

// SizeInBytes returns the buffer size.
func (b *MockBuffer) SizeInBytes() uint64 {
	return b.Size
}

// MockDescriptorHeap is a descriptor heap handle with a capacity.
type MockDescriptorHeap struct {
	Capacity      int
	ShaderVisible bool
}

// NumDescriptors returns the heap capacity.
func (h *MockDescriptorHeap) NumDescriptors() int {
	return h.Capacity
}

// MockCommandAllocator counts its resets.
type MockCommandAllocator struct {
	mu     sync.Mutex
	resets int
}

// Reset resets the allocator.
func (a *MockCommandAllocator) Reset() error {
	a.mu.Lock()
	a.resets++
	a.mu.Unlock()
	return nil
}

// Resets returns how many times the allocator was reset.
func (a *MockCommandAllocator) Resets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

// MockCommandList records commands into a slice instead of driver memory.
type MockCommandList struct {
	device   *MockDevice
	commands []RecordedCommand
	open     bool
	resets   int
}

// Reset re-opens the list for recording.
func (l *MockCommandList) Reset(alloc CommandAllocator) error {
	if l.open {
		return fmt.Errorf("dml: reset of an open command list")
	}
	l.commands = l.commands[:0]
	l.open = true
	l.resets++
	return nil
}

// Close ends recording, honoring an injected close failure.
func (l *MockCommandList) Close() error {
	if !l.open {
		return fmt.Errorf("dml: close of a command list that is not open")
	}
	l.open = false
	if err := l.device.takeCloseError(); err != nil {
		return err
	}
	return nil
}

// CopyBufferRegion records a copy command.
func (l *MockCommandList) CopyBufferRegion(dst Buffer, dstOffset uint64, src Buffer, srcOffset, byteCount uint64) {
	l.commands = append(l.commands, RecordedCommand{
		Kind: CommandCopy, Dst: dst, Src: src,
		DstOffset: dstOffset, SrcOffset: srcOffset, ByteCount: byteCount,
	})
}

// ClearBufferUint records a pattern fill command.
func (l *MockCommandList) ClearBufferUint(gpuView, cpuView DescriptorRange, dst Buffer, pattern [4]uint32) {
	l.commands = append(l.commands, RecordedCommand{
		Kind: CommandClear, Dst: dst, Pattern: pattern, Heap: gpuView.Heap,
	})
}

// ResourceBarrier records a barrier command.
func (l *MockCommandList) ResourceBarrier(barriers []Barrier) {
	copied := make([]Barrier, len(barriers))
	copy(copied, barriers)
	l.commands = append(l.commands, RecordedCommand{Kind: CommandBarrier, Barriers: copied})
}

// SetDescriptorHeap records a heap binding command.
func (l *MockCommandList) SetDescriptorHeap(heap DescriptorHeap) {
	l.commands = append(l.commands, RecordedCommand{Kind: CommandSetHeap, Heap: heap})
}

// Commands returns the commands recorded since the last reset.
func (l *MockCommandList) Commands() []RecordedCommand {
	return l.commands
}

// MockDevice simulates the device surface: object creation always succeeds
// unless a failure is injected, and removal is permanent once triggered.
type MockDevice struct {
	mu sync.Mutex

	fence   *MockFence
	removed error

	nextCloseErr error

	listsCreated  int
	allocsCreated int
	heapsCreated  int
	viewsCreated  int
}

// NewMockDevice creates a healthy simulated device.
func NewMockDevice() *MockDevice {
	return &MockDevice{fence: NewMockFence()}
}

// CreateCommandAllocator creates a mock allocator.
func (d *MockDevice) CreateCommandAllocator(queueType QueueType) (CommandAllocator, error) {
	d.mu.Lock()
	d.allocsCreated++
	d.mu.Unlock()
	return &MockCommandAllocator{}, nil
}

// CreateCommandList creates an open mock command list.
func (d *MockDevice) CreateCommandList(queueType QueueType, alloc CommandAllocator) (CommandList, error) {
	d.mu.Lock()
	d.listsCreated++
	d.mu.Unlock()
	return &MockCommandList{device: d, open: true}, nil
}

// CreateDescriptorHeap creates a mock heap.
func (d *MockDevice) CreateDescriptorHeap(numDescriptors int, shaderVisible bool) (DescriptorHeap, error) {
	d.mu.Lock()
	d.heapsCreated++
	d.mu.Unlock()
	return &MockDescriptorHeap{Capacity: numDescriptors, ShaderVisible: shaderVisible}, nil
}

// CreateRawBufferView counts view creations; the mock has no descriptor
// memory to write.
func (d *MockDevice) CreateRawBufferView(buf Buffer, offset, size uint64, dst DescriptorRange) {
	d.mu.Lock()
	d.viewsCreated++
	d.mu.Unlock()
}

// RemovedReason returns the injected removal reason, if any.
func (d *MockDevice) RemovedReason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removed
}

// Remove marks the device as removed with the given reason.
func (d *MockDevice) Remove(reason error) {
	d.mu.Lock()
	d.removed = reason
	d.mu.Unlock()
}

// FailNextClose makes the next command list Close return err.
func (d *MockDevice) FailNextClose(err error) {
	d.mu.Lock()
	d.nextCloseErr = err
	d.mu.Unlock()
}

// ListsCreated returns how many command lists the device created.
func (d *MockDevice) ListsCreated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listsCreated
}

func (d *MockDevice) takeCloseError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.nextCloseErr
	d.nextCloseErr = nil
	return err
}

// NewMockQueue creates a submit queue on the device.
func (d *MockDevice) NewMockQueue(queueType QueueType) *MockQueue {
	return &MockQueue{device: d, queueType: queueType}
}

// MockQueue captures submissions and signals the device fence immediately,
// as if every submission executed the moment it arrived.
type MockQueue struct {
	device    *MockDevice
	queueType QueueType

	mu          sync.Mutex
	submissions [][]RecordedCommand
}

// Type returns the queue type.
func (q *MockQueue) Type() QueueType {
	return q.queueType
}

// Submit snapshots the recorded commands of each list, preserving order.
func (q *MockQueue) Submit(lists []CommandList) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, list := range lists {
		ml, ok := list.(*MockCommandList)
		if !ok {
			continue
		}
		snapshot := make([]RecordedCommand, len(ml.commands))
		copy(snapshot, ml.commands)
		q.submissions = append(q.submissions, snapshot)
	}
}

// Signal advances the device fence to value.
func (q *MockQueue) Signal(value uint64) {
	q.device.fence.signal(value)
}

// Fence returns the device fence.
func (q *MockQueue) Fence() Fence {
	return q.device.fence
}

// SubmissionCount returns how many command lists were submitted.
func (q *MockQueue) SubmissionCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.submissions)
}

// Submissions returns a copy of every submission's command snapshot.
func (q *MockQueue) Submissions() [][]RecordedCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]RecordedCommand, len(q.submissions))
	for i, s := range q.submissions {
		out[i] = append([]RecordedCommand(nil), s...)
	}
	return out
}

// OperationsOfKind returns every submitted command of the given kind, in
// submission order.
func (q *MockQueue) OperationsOfKind(kind CommandKind) []RecordedCommand {
	var out []RecordedCommand
	for _, s := range q.Submissions() {
		for _, cmd := range s {
			if cmd.Kind == kind {
				out = append(out, cmd)
			}
		}
	}
	return out
}

// MockOperator is a compiled operator / initializer stand-in.
type MockOperator struct {
	Name  string
	Props BindingProperties
}

// BindingProperties returns the operator's binding properties.
func (o *MockOperator) BindingProperties() BindingProperties {
	return o.Props
}

// MockBindingTable is an opaque binding table stand-in.
type MockBindingTable struct {
	Name string
}

// MockOperatorRecorder records dispatches as commands on the mock list.
type MockOperatorRecorder struct{}

// RecordDispatch appends a dispatch command to the list.
func (r *MockOperatorRecorder) RecordDispatch(list CommandList, op Dispatchable, bindings BindingTable) {
	if ml, ok := list.(*MockCommandList); ok {
		ml.commands = append(ml.commands, RecordedCommand{Kind: CommandDispatch, Op: op})
	}
}
