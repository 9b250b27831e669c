package dml

// commandRecorder records one logical GPU operation onto an open command
// list, wrapping it in the resource-state transitions it needs and the
// synchronization barriers that make its results visible to later work.
type commandRecorder struct {
	ops OperatorRecorder
}

// copyBufferRegion records a buffer copy. Buffers not already in the
// required copy states are transitioned in, and transitioned back afterwards
// so callers keep their declared states. Copies may write memory aliased by
// other resources, so the closing sequence includes an aliasing barrier.
func (r commandRecorder) copyBufferRegion(list CommandList,
	dst Buffer, dstOffset uint64, dstState ResourceState,
	src Buffer, srcOffset uint64, srcState ResourceState, byteCount uint64) {

	barriers := make([]Barrier, 0, 3)
	if dstState&ResourceStateCopyDest == 0 {
		barriers = append(barriers, TransitionBarrier(dst, dstState, ResourceStateCopyDest))
	}
	if srcState&ResourceStateCopySource == 0 {
		barriers = append(barriers, TransitionBarrier(src, srcState, ResourceStateCopySource))
	}
	if len(barriers) != 0 {
		list.ResourceBarrier(barriers)
	}

	list.CopyBufferRegion(dst, dstOffset, src, srcOffset, byteCount)

	// Undo the transitions, then barrier against aliased writes.
	for i := range barriers {
		barriers[i].Before, barriers[i].After = barriers[i].After, barriers[i].Before
	}
	barriers = append(barriers, AliasingBarrier())
	list.ResourceBarrier(barriers)
}

// clearBuffer records a pattern fill through a raw buffer view. Fills write
// through a UAV, so the closing sequence is a UAV barrier plus an aliasing
// barrier.
func (r commandRecorder) clearBuffer(list CommandList, gpuView, cpuView DescriptorRange, dst Buffer, pattern [4]uint32) {
	list.ClearBufferUint(gpuView, cpuView, dst, pattern)
	list.ResourceBarrier([]Barrier{UAVBarrier(), AliasingBarrier()})
}

// dispatch records an operator dispatch. withBarriers controls whether the
// closing UAV+aliasing pair is emitted: execution always writes outputs, but
// initialization only needs the barriers when it touches persistent or
// temporary resources.
func (r commandRecorder) dispatch(list CommandList, op Dispatchable, bindings BindingTable, withBarriers bool) {
	r.ops.RecordDispatch(list, op, bindings)
	if withBarriers {
		list.ResourceBarrier([]Barrier{UAVBarrier(), AliasingBarrier()})
	}
}
