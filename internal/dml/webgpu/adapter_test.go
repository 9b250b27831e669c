//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/Artoria2e5/tensorflow-directml/internal/dml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	device, err := New()
	require.NoError(t, err)
	t.Cleanup(device.Release)
	return device
}

func newTestContext(t *testing.T, device *Device) *dml.ExecutionContext {
	t.Helper()
	queue := device.NewQueue(dml.QueueTypeDirect)
	ctx, err := dml.NewExecutionContext(device, queue, NewRecorder(device), dml.Options{
		BatchFlushSize: 1 << 20,
		BatchFlushTime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	return ctx
}

func TestAdapterFillAndCopyRoundTrip(t *testing.T) {
	device := newTestDevice(t)
	ctx := newTestContext(t, device)

	src := device.CreateBuffer(64)
	defer src.Release()
	dst := device.CreateBuffer(64)
	defer dst.Release()

	ctx.FillBufferWithPattern(src, 0, 64, []byte{0xAB})
	ctx.CopyBufferRegion(dst, 0, dml.ResourceStateCopyDest, src, 0, dml.ResourceStateCopySource, 64)

	ev, err := ctx.Flush()
	require.NoError(t, err)
	ev.Wait()

	data, err := device.ReadBuffer(dst, 0, 64)
	require.NoError(t, err)
	for i, b := range data {
		require.Equalf(t, byte(0xAB), b, "byte %d", i)
	}
}

func TestAdapterFillSubrange(t *testing.T) {
	device := newTestDevice(t)
	ctx := newTestContext(t, device)

	buf := device.CreateBuffer(64)
	defer buf.Release()

	ctx.FillBufferWithPattern(buf, 0, 64, []byte{0x00})
	ctx.FillBufferWithPattern(buf, 16, 32, []byte{0xFF})

	ev, err := ctx.Flush()
	require.NoError(t, err)
	ev.Wait()

	data, err := device.ReadBuffer(buf, 0, 64)
	require.NoError(t, err)
	for i, b := range data {
		want := byte(0x00)
		if i >= 16 && i < 48 {
			want = 0xFF
		}
		require.Equalf(t, want, b, "byte %d", i)
	}
}

func TestAdapterExecuteOperator(t *testing.T) {
	device := newTestDevice(t)
	ctx := newTestContext(t, device)

	const doubleShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < arrayLength(&input)) {
        output[gid.x] = input[gid.x] * 2.0;
    }
}
`

	values := make([]byte, 16*4)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(values[i*4:], math.Float32bits(float32(i)))
	}
	input := device.CreateBufferInit(values)
	defer input.Release()
	output := device.CreateBuffer(16 * 4)
	defer output.Release()

	op := &Operator{Name: "double_f32", Source: doubleShader, Workgroups: [3]uint32{1, 1, 1}}
	bindings := NewBindingTable().BindBuffer(0, input).BindBuffer(1, output)

	ctx.ExecuteOperator(op, bindings, nil)

	ev, err := ctx.Flush()
	require.NoError(t, err)
	ev.Wait()

	data, err := device.ReadBuffer(output, 0, 16*4)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		assert.Equalf(t, float32(i)*2, got, "element %d", i)
	}
}

func TestAdapterFencePublishesAfterWait(t *testing.T) {
	device := newTestDevice(t)
	ctx := newTestContext(t, device)

	buf := device.CreateBuffer(16)
	defer buf.Release()

	ctx.FillBufferWithPattern(buf, 0, 16, []byte{0x01})
	ev, err := ctx.Flush()
	require.NoError(t, err)

	ev.Wait()
	assert.True(t, ev.IsSignaled())
	assert.GreaterOrEqual(t, device.fence.CompletedValue(), ev.FenceValue)
}
