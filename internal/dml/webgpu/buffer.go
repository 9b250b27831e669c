//go:build windows

package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Buffer is a GPU storage buffer usable as a copy source, copy destination,
// and shader storage binding.
type Buffer struct {
	raw  *wgpu.Buffer
	size uint64
}

// CreateBuffer creates an uninitialized storage buffer of size bytes.
func (d *Device) CreateBuffer(size uint64) *Buffer {
	buffer := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	return &Buffer{raw: buffer, size: size}
}

// CreateBufferInit creates a storage buffer and uploads data into it.
func (d *Device) CreateBufferInit(data []byte) *Buffer {
	size := uint64(len(data))
	buffer := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return &Buffer{raw: buffer, size: size}
}

// SizeInBytes returns the buffer size.
func (b *Buffer) SizeInBytes() uint64 {
	return b.size
}

// Raw returns the underlying WebGPU buffer.
func (b *Buffer) Raw() *wgpu.Buffer {
	return b.raw
}

// Release frees the buffer. The caller must not use it afterwards.
func (b *Buffer) Release() {
	if b.raw != nil {
		b.raw.Release()
		b.raw = nil
	}
}

// ReadBuffer reads size bytes of buf starting at offset back to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly. The
// read drains the queue, so everything submitted before it is visible.
func (d *Device) ReadBuffer(buf *Buffer, offset, size uint64) ([]byte, error) {
	staging := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := d.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(buf.raw, offset, staging, 0, size)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(d.dev, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	staging.Unmap()

	return result, nil
}
