//go:build windows

// Package webgpu adapts a WebGPU device to the execution-context device
// surface. Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU
// bindings.
//
// WebGPU has no descriptor heaps, command allocators, or explicit resource
// states, so those parts of the surface are emulated: heaps become arrays of
// buffer-view slots, allocators are no-ops, and barriers rely on the
// implicit hazard tracking wgpu-native already performs. Fence completion is
// tracked on the CPU side and resolved by draining the queue.
package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/Artoria2e5/tensorflow-directml/internal/dml"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Verify that the adapter types satisfy the device surface.
var (
	_ dml.Device           = (*Device)(nil)
	_ dml.SubmitQueue      = (*Queue)(nil)
	_ dml.CommandList      = (*CommandList)(nil)
	_ dml.Fence            = (*Fence)(nil)
	_ dml.Buffer           = (*Buffer)(nil)
	_ dml.OperatorRecorder = (*Recorder)(nil)
)

// Device wraps a WebGPU device behind the execution-context device surface.
type Device struct {
	instance    *wgpu.Instance
	adapter     *wgpu.Adapter
	dev         *wgpu.Device
	queue       *wgpu.Queue
	adapterInfo *wgpu.AdapterInfo

	fence *Fence

	// syncSrc is a tiny scratch buffer copied into a staging buffer to
	// drain the queue; mapping the staging buffer blocks until every
	// submission before the copy has executed.
	syncSrc *wgpu.Buffer

	// Shader and pipeline cache
	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline

	lostMu sync.Mutex
	lost   error
}

// New creates a WebGPU-backed device.
// Returns an error if WebGPU is not available or initialization fails.
func New() (device *Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			device = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo := adapter.GetInfo()

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	d := &Device{
		instance:    instance,
		adapter:     adapter,
		dev:         dev,
		queue:       queue,
		adapterInfo: &adapterInfo,
		syncSrc: dev.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageCopySrc,
			Size:  4,
		}),
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}
	d.fence = &Fence{device: d}
	d.fence.cond = sync.NewCond(&d.fence.mu)

	return d, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// Name returns a human-readable adapter description.
func (d *Device) Name() string {
	if d.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", d.adapterInfo.Name, d.adapterInfo.VendorName)
	}
	return "WebGPU"
}

// Release releases all WebGPU resources.
// Must be called when the device is no longer needed.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.pipelines {
		p.Release()
	}
	d.pipelines = nil

	for _, s := range d.shaders {
		s.Release()
	}
	d.shaders = nil

	if d.syncSrc != nil {
		d.syncSrc.Release()
		d.syncSrc = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.dev != nil {
		d.dev.Release()
		d.dev = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// CreateCommandAllocator returns a no-op allocator. WebGPU command encoders
// own their backing memory, so there is nothing to pool or reset.
func (d *Device) CreateCommandAllocator(queueType dml.QueueType) (dml.CommandAllocator, error) {
	return noopAllocator{}, nil
}

// CreateCommandList creates an open command list backed by a command encoder.
func (d *Device) CreateCommandList(queueType dml.QueueType, alloc dml.CommandAllocator) (dml.CommandList, error) {
	return &CommandList{device: d, encoder: d.dev.CreateCommandEncoder(nil)}, nil
}

// CreateDescriptorHeap creates a heap of numDescriptors buffer-view slots.
func (d *Device) CreateDescriptorHeap(numDescriptors int, shaderVisible bool) (dml.DescriptorHeap, error) {
	return &DescriptorHeap{slots: make([]bufferView, numDescriptors), shaderVisible: shaderVisible}, nil
}

// CreateRawBufferView records a view of size bytes of buf at offset into the
// destination descriptor slot.
func (d *Device) CreateRawBufferView(buf dml.Buffer, offset, size uint64, dst dml.DescriptorRange) {
	heap, ok := dst.Heap.(*DescriptorHeap)
	if !ok {
		panic("webgpu: descriptor range does not belong to a webgpu heap")
	}
	b := buf.(*Buffer)
	heap.slots[dst.Offset] = bufferView{buffer: b.raw, size: b.size, viewOffset: offset, viewSize: size}
}

// RemovedReason returns the device-lost error, if one has been observed.
func (d *Device) RemovedReason() error {
	d.lostMu.Lock()
	defer d.lostMu.Unlock()
	return d.lost
}

// NewQueue returns a submit queue over the device's single WebGPU queue.
// The queue type is advisory; WebGPU does not distinguish engine classes.
func (d *Device) NewQueue(queueType dml.QueueType) *Queue {
	return &Queue{device: d, queueType: queueType}
}

// Poll drains the queue and publishes completion for everything signaled so
// far, advancing the fence's completed value without blocking callers that
// only inspect it.
func (d *Device) Poll() {
	d.fence.mu.Lock()
	target := d.fence.signaled
	d.fence.mu.Unlock()

	d.drain()
	d.fence.publish(target)
}

// drain blocks until every submission made so far has executed. Mapping a
// staging buffer is the one synchronization point the binding exposes.
func (d *Device) drain() {
	staging := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  4,
	})
	defer staging.Release()

	encoder := d.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(d.syncSrc, 0, staging, 0, 4)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(d.dev, wgpu.MapModeRead, 0, 4); err != nil {
		d.lostMu.Lock()
		if d.lost == nil {
			d.lost = fmt.Errorf("webgpu: queue drain failed: %w", err)
		}
		d.lostMu.Unlock()
		return
	}
	staging.Unmap()
}

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached by name.
func (d *Device) compileShader(name, code string) *wgpu.ShaderModule {
	d.mu.RLock()
	if shader, exists := d.shaders[name]; exists {
		d.mu.RUnlock()
		return shader
	}
	d.mu.RUnlock()

	shader := d.dev.CreateShaderModuleWGSL(code)

	d.mu.Lock()
	d.shaders[name] = shader
	d.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one
// with auto layout.
func (d *Device) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	d.mu.RLock()
	if pipeline, exists := d.pipelines[name]; exists {
		d.mu.RUnlock()
		return pipeline
	}
	d.mu.RUnlock()

	pipeline := d.dev.CreateComputePipelineSimple(nil, shader, "main")

	d.mu.Lock()
	d.pipelines[name] = pipeline
	d.mu.Unlock()

	return pipeline
}

// createUniformBuffer creates a uniform buffer with 16-byte aligned size and
// uploads data through a mapped-at-creation range.
func (d *Device) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// Fence tracks submission completion on the CPU. Signal records the value
// the most recent submission completes at; Wait blocks until that value is
// signaled and then drains the queue. The queue is in-order, so the drain
// retires everything signaled before it.
type Fence struct {
	device *Device

	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
	signaled  uint64
}

// CompletedValue returns the highest value known to have completed. It does
// not drain the queue; use Wait or Device.Poll to advance it.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait blocks until the fence reaches value. Waiting on a value that is
// never signaled blocks forever, like a hardware fence would. If the device
// is lost during the drain the wait completes anyway so callers can observe
// the removal through the device.
func (f *Fence) Wait(value uint64) {
	f.mu.Lock()
	// The submission carrying value may still be on its way to the queue;
	// draining before it is submitted would complete too early.
	for f.signaled < value && f.completed < value {
		f.cond.Wait()
	}
	done := f.completed >= value
	f.mu.Unlock()
	if done {
		return
	}

	f.device.drain()
	f.publish(value)
}

func (f *Fence) signalTo(value uint64) {
	f.mu.Lock()
	if value > f.signaled {
		f.signaled = value
	}
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *Fence) publish(value uint64) {
	f.mu.Lock()
	if value > f.completed {
		f.completed = value
	}
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Queue submits finished command lists to the WebGPU queue.
type Queue struct {
	device    *Device
	queueType dml.QueueType
}

// Type returns the advisory queue type.
func (q *Queue) Type() dml.QueueType {
	return q.queueType
}

// Submit sends each list's finished command buffer to the GPU, then releases
// the transient resources the lists accumulated. wgpu-native retains
// whatever a submission still references.
func (q *Queue) Submit(lists []dml.CommandList) {
	var cmds []*wgpu.CommandBuffer
	var retired []releasable
	for _, list := range lists {
		l, ok := list.(*CommandList)
		if !ok || l.finished == nil {
			continue
		}
		cmds = append(cmds, l.finished)
		l.finished = nil
		retired = append(retired, l.transients...)
		l.transients = nil
	}

	if len(cmds) > 0 {
		q.device.queue.Submit(cmds...)
	}
	for _, r := range retired {
		r.Release()
	}
}

// Signal records that everything submitted so far completes at value.
func (q *Queue) Signal(value uint64) {
	q.device.fence.signalTo(value)
}

// Fence returns the device fence.
func (q *Queue) Fence() dml.Fence {
	return q.device.fence
}
