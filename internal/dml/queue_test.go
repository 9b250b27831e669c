package dml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueFenceAdvancesOncePerSubmission(t *testing.T) {
	device := NewMockDevice()
	raw := device.NewMockQueue(QueueTypeCompute)
	queue := NewCommandQueue(raw)

	assert.Equal(t, QueueTypeCompute, queue.Type())
	assert.Equal(t, uint64(0), queue.GetCurrentCompletionEvent().FenceValue)
	assert.Equal(t, uint64(1), queue.GetNextCompletionEvent().FenceValue)

	for i := 1; i <= 3; i++ {
		list, err := device.CreateCommandList(QueueTypeCompute, &MockCommandAllocator{})
		require.NoError(t, err)
		require.NoError(t, list.Close())

		queue.ExecuteCommandLists([]CommandList{list})
		assert.Equal(t, uint64(i), queue.GetCurrentCompletionEvent().FenceValue)
		assert.Equal(t, uint64(i+1), queue.GetNextCompletionEvent().FenceValue)
		assert.True(t, queue.GetCurrentCompletionEvent().IsSignaled())
		assert.False(t, queue.GetNextCompletionEvent().IsSignaled())
	}
}

func TestGpuEventOrderingAndSignaling(t *testing.T) {
	fence := NewMockFence()

	earlier := GpuEvent{FenceValue: 1, Fence: fence}
	later := GpuEvent{FenceValue: 2, Fence: fence}

	assert.False(t, earlier.IsSignaled())
	fence.signal(1)
	assert.True(t, earlier.IsSignaled())
	assert.False(t, later.IsSignaled())

	// Wait must return immediately once the value is reached.
	fence.signal(2)
	later.Wait()
	assert.True(t, later.IsSignaled())

	// An event without a fence counts as satisfied.
	assert.True(t, GpuEvent{FenceValue: 42}.IsSignaled())
	GpuEvent{FenceValue: 42}.Wait()
}
