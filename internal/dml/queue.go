package dml

// CommandQueue wraps a device-level SubmitQueue with completion-event
// bookkeeping: every ExecuteCommandLists call advances the fence by exactly
// one step, so completion events produced before a submission stay valid.
//
// CommandQueue is not safe for concurrent use. The execution engine owns it
// and drives it exclusively from the worker goroutine; the only producer-side
// access is GetCurrentCompletionEvent during construction, before the worker
// starts.
type CommandQueue struct {
	queue          SubmitQueue
	fence          Fence
	lastFenceValue uint64
}

// NewCommandQueue creates a queue wrapper around q. The fence starts at q's
// current completed value so that pre-existing work counts as signaled.
func NewCommandQueue(q SubmitQueue) *CommandQueue {
	fence := q.Fence()
	return &CommandQueue{
		queue:          q,
		fence:          fence,
		lastFenceValue: fence.CompletedValue(),
	}
}

// Type returns the queue's type.
func (q *CommandQueue) Type() QueueType {
	return q.queue.Type()
}

// ExecuteCommandLists submits lists for execution and schedules the fence to
// signal their completion.
func (q *CommandQueue) ExecuteCommandLists(lists []CommandList) {
	q.queue.Submit(lists)
	q.lastFenceValue++
	q.queue.Signal(q.lastFenceValue)
}

// GetCurrentCompletionEvent returns the event that completes when all work
// submitted so far has executed.
func (q *CommandQueue) GetCurrentCompletionEvent() GpuEvent {
	return GpuEvent{FenceValue: q.lastFenceValue, Fence: q.fence}
}

// GetNextCompletionEvent returns the event that the next submission will
// signal.
func (q *CommandQueue) GetNextCompletionEvent() GpuEvent {
	return GpuEvent{FenceValue: q.lastFenceValue + 1, Fence: q.fence}
}
