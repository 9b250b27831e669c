//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/Artoria2e5/tensorflow-directml/internal/dml"
	"github.com/go-webgpu/webgpu/wgpu"
)

type releasable interface {
	Release()
}

// noopAllocator stands in for a command allocator. Encoder memory is owned
// and reclaimed by the encoder itself.
type noopAllocator struct{}

func (noopAllocator) Reset() error { return nil }

// bufferView is one descriptor slot: a byte range of a buffer.
type bufferView struct {
	buffer     *wgpu.Buffer
	size       uint64
	viewOffset uint64
	viewSize   uint64
}

// DescriptorHeap is an array of buffer-view slots. WebGPU binds buffers
// directly through bind groups, so the heap only carries view metadata from
// view creation to the dispatch that consumes it.
type DescriptorHeap struct {
	slots         []bufferView
	shaderVisible bool
}

// NumDescriptors returns the heap capacity.
func (h *DescriptorHeap) NumDescriptors() int {
	return len(h.slots)
}

// CommandList records GPU commands into a WebGPU command encoder. Close
// finishes the encoder into a command buffer; Reset starts a fresh one.
type CommandList struct {
	device   *Device
	encoder  *wgpu.CommandEncoder
	finished *wgpu.CommandBuffer

	// transients are resources created while recording that must outlive
	// recording but not the submission: uniform buffers and bind groups.
	// Released by the queue after submit.
	transients []releasable
}

// Reset re-opens the list with a fresh encoder.
func (l *CommandList) Reset(alloc dml.CommandAllocator) error {
	if l.encoder != nil {
		return fmt.Errorf("webgpu: reset of an open command list")
	}
	l.encoder = l.device.dev.CreateCommandEncoder(nil)
	l.finished = nil
	return nil
}

// Close finishes the encoder into a submittable command buffer.
func (l *CommandList) Close() error {
	if l.encoder == nil {
		return fmt.Errorf("webgpu: close of a command list that is not open")
	}
	l.finished = l.encoder.Finish(nil)
	l.encoder = nil
	return nil
}

// CopyBufferRegion records a byteCount-byte copy between two buffers.
func (l *CommandList) CopyBufferRegion(dst dml.Buffer, dstOffset uint64, src dml.Buffer, srcOffset, byteCount uint64) {
	l.encoder.CopyBufferToBuffer(src.(*Buffer).raw, srcOffset, dst.(*Buffer).raw, dstOffset, byteCount)
}

// ClearBufferUint fills the range described by gpuView with the 16-byte
// pattern, one u32 lane at a time. The CPU-side view has no WebGPU
// equivalent and is ignored. Storage bindings need 256-byte offset
// alignment, so the whole buffer is bound and the shader indexes from the
// view's first word.
func (l *CommandList) ClearBufferUint(gpuView, cpuView dml.DescriptorRange, dst dml.Buffer, pattern [4]uint32) {
	heap, ok := gpuView.Heap.(*DescriptorHeap)
	if !ok {
		panic("webgpu: descriptor range does not belong to a webgpu heap")
	}
	view := heap.slots[gpuView.Offset]

	params := make([]byte, 32)
	//nolint:gosec // G115: offsets and sizes are 4-byte aligned and bounded
	binary.LittleEndian.PutUint32(params[0:4], uint32(view.viewOffset/4))
	//nolint:gosec // G115: offsets and sizes are 4-byte aligned and bounded
	binary.LittleEndian.PutUint32(params[4:8], uint32(view.viewSize/4))
	for i, word := range pattern {
		binary.LittleEndian.PutUint32(params[16+i*4:16+i*4+4], word)
	}
	uniform := l.device.createUniformBuffer(params)

	shader := l.device.compileShader("fill_buffer", fillBufferShader)
	pipeline := l.device.getOrCreatePipeline("fill_buffer", shader)

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := l.device.dev.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, view.buffer, 0, view.size),
		wgpu.BufferBindingEntry(1, uniform, 0, 32),
	})

	computePass := l.encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	//nolint:gosec // G115: workgroup count is non-negative
	workgroups := uint32((view.viewSize/4 + fillWorkgroupSize - 1) / fillWorkgroupSize)
	computePass.DispatchWorkgroups(workgroups, 1, 1)
	computePass.End()

	l.transients = append(l.transients, uniform, bindGroup)
}

// ResourceBarrier is a no-op: wgpu-native inserts the equivalent hazards
// between passes automatically.
func (l *CommandList) ResourceBarrier(barriers []dml.Barrier) {}

// SetDescriptorHeap is a no-op: bindings travel in bind groups.
func (l *CommandList) SetDescriptorHeap(heap dml.DescriptorHeap) {}
