// Copyright 2025 The TensorFlow-DirectML Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dml_test

import (
	"testing"
	"time"

	"github.com/Artoria2e5/tensorflow-directml/dml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicSurfaceRoundTrip(t *testing.T) {
	device := dml.NewMockDevice()
	queue := device.NewMockQueue(dml.QueueTypeDirect)

	ctx, err := dml.NewExecutionContext(device, queue, &dml.MockOperatorRecorder{}, dml.Options{
		BatchFlushSize: 1 << 20,
		BatchFlushTime: time.Hour,
	})
	require.NoError(t, err)
	defer ctx.Close()

	src := dml.NewMockBuffer("src", 256)
	dst := dml.NewMockBuffer("dst", 256)

	ctx.CopyBufferRegion(dst, 0, dml.ResourceStateCopyDest, src, 0, dml.ResourceStateCopySource, 256)
	ctx.FillBufferWithPattern(src, 0, 16, []byte{0x7F})

	ev, err := ctx.Flush()
	require.NoError(t, err)
	ev.Wait()

	require.Eventually(t, func() bool {
		return queue.SubmissionCount() == 1
	}, 3*time.Second, 5*time.Millisecond)

	copies := queue.OperationsOfKind(dml.CommandCopy)
	require.Len(t, copies, 1)
	assert.Equal(t, uint64(256), copies[0].ByteCount)

	counters := ctx.TracingCounters()
	assert.Equal(t, uint64(1), counters.Copies)
	assert.Equal(t, uint64(1), counters.Fills)
}
