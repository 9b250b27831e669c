package dml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorRingRotates(t *testing.T) {
	device := NewMockDevice()
	fence := device.fence

	ring, err := newAllocatorRing(device, QueueTypeDirect, GpuEvent{FenceValue: 0, Fence: fence})
	require.NoError(t, err)

	first := ring.CurrentAllocator()
	seen := map[CommandAllocator]bool{first: true}

	// One full rotation visits every allocator before reusing the first.
	for i := 1; i < allocatorRingSize; i++ {
		fence.signal(uint64(i))
		require.NoError(t, ring.AdvanceAllocator(GpuEvent{FenceValue: uint64(i), Fence: fence}))
		seen[ring.CurrentAllocator()] = true
	}
	assert.Len(t, seen, allocatorRingSize)

	fence.signal(uint64(allocatorRingSize))
	require.NoError(t, ring.AdvanceAllocator(GpuEvent{FenceValue: uint64(allocatorRingSize), Fence: fence}))
	assert.Equal(t, first, ring.CurrentAllocator())

	// Rotation resets the allocator it lands on.
	assert.Equal(t, 1, first.(*MockCommandAllocator).Resets())
}
