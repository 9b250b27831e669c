package dml

// GpuEvent identifies a point in the history of work submitted to a command
// queue. The fence value increases by one for every submission, so for two
// events produced by the same queue, A happened before or at B iff
// A.FenceValue <= B.FenceValue. Comparing events across queues is undefined.
//
// GpuEvent is a value type: it is copied freely and never mutated after
// creation.
type GpuEvent struct {
	FenceValue uint64
	Fence      Fence
}

// IsSignaled reports whether the GPU has completed all work submitted up to
// and including this event. An event with no fence is always signaled.
func (e GpuEvent) IsSignaled() bool {
	if e.Fence == nil {
		return true
	}
	return e.Fence.CompletedValue() >= e.FenceValue
}

// Wait blocks until the event is signaled.
func (e GpuEvent) Wait() {
	if e.Fence == nil {
		return
	}
	e.Fence.Wait(e.FenceValue)
}
