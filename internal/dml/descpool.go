package dml

// defaultDescriptorPoolCapacity is the size of freshly created heaps.
const defaultDescriptorPoolCapacity = 2048

type descriptorPoolHeap struct {
	heap          DescriptorHeap
	shaderVisible bool
	used          int
	// completionEvent covers the most recent allocation from this heap; the
	// heap's descriptors may be recycled once it signals.
	completionEvent GpuEvent
}

// descriptorPool hands out transient descriptor ranges tied to a completion
// event. A heap is recycled wholesale once the event covering its last
// allocation has signaled, so descriptors are never overwritten while the GPU
// may still read them.
//
// Owned by the worker goroutine; not safe for concurrent use.
type descriptorPool struct {
	device   Device
	capacity int
	heaps    []*descriptorPoolHeap
}

func newDescriptorPool(device Device, capacity int) *descriptorPool {
	return &descriptorPool{device: device, capacity: capacity}
}

// AllocDescriptors returns a range of count descriptors valid until
// doneEvent signals.
func (p *descriptorPool) AllocDescriptors(count int, doneEvent GpuEvent, shaderVisible bool) (DescriptorRange, error) {
	for _, h := range p.heaps {
		if h.shaderVisible != shaderVisible {
			continue
		}
		if h.used+count > h.heap.NumDescriptors() {
			// Full: recycle if the GPU has retired everything allocated
			// from it.
			if h.completionEvent.IsSignaled() {
				h.used = 0
			} else {
				continue
			}
		}
		r := DescriptorRange{Heap: h.heap, Offset: h.used, Count: count}
		h.used += count
		h.completionEvent = doneEvent
		return r, nil
	}

	capacity := p.capacity
	if count > capacity {
		capacity = count
	}
	heap, err := p.device.CreateDescriptorHeap(capacity, shaderVisible)
	if err != nil {
		return DescriptorRange{}, err
	}
	h := &descriptorPoolHeap{
		heap:            heap,
		shaderVisible:   shaderVisible,
		used:            count,
		completionEvent: doneEvent,
	}
	p.heaps = append(p.heaps, h)
	return DescriptorRange{Heap: heap, Offset: 0, Count: count}, nil
}

// HeapCount returns how many heaps the pool has created.
func (p *descriptorPool) HeapCount() int {
	return len(p.heaps)
}
