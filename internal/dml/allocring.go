package dml

// allocatorRingSize is how many command allocators rotate through the ring.
// Three allows two submissions in flight while a third list records.
const allocatorRingSize = 3

type allocatorRingEntry struct {
	alloc CommandAllocator
	// completionEvent marks when every list recorded against alloc has
	// finished executing; the allocator may only be reset after it signals.
	completionEvent GpuEvent
}

// allocatorRing rotates a fixed set of command allocators. The current
// allocator backs the open command list; it is advanced once per opened list,
// keyed by the completion event of the submission that will retire it.
type allocatorRing struct {
	entries [allocatorRingSize]allocatorRingEntry
	current int
}

func newAllocatorRing(device Device, queueType QueueType, initialEvent GpuEvent) (*allocatorRing, error) {
	r := &allocatorRing{}
	for i := range r.entries {
		alloc, err := device.CreateCommandAllocator(queueType)
		if err != nil {
			return nil, err
		}
		r.entries[i] = allocatorRingEntry{alloc: alloc, completionEvent: initialEvent}
	}
	return r, nil
}

// CurrentAllocator returns the allocator new command lists record against.
func (r *allocatorRing) CurrentAllocator() CommandAllocator {
	return r.entries[r.current].alloc
}

// AdvanceAllocator stamps the current allocator with the event that retires
// it and rotates to the next one, resetting it for reuse. Blocks if the next
// allocator's work is still in flight.
func (r *allocatorRing) AdvanceAllocator(doneEvent GpuEvent) error {
	r.entries[r.current].completionEvent = doneEvent
	r.current = (r.current + 1) % len(r.entries)

	next := &r.entries[r.current]
	next.completionEvent.Wait()
	return next.alloc.Reset()
}
