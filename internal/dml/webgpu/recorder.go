//go:build windows

package webgpu

import (
	"github.com/Artoria2e5/tensorflow-directml/internal/dml"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Operator is a compiled compute dispatch: a WGSL shader with a "main" entry
// point plus a fixed workgroup grid. The same value serves as an operator
// initializer when initialization work is expressed as a shader.
type Operator struct {
	// Name keys the shader and pipeline caches; it must be unique per
	// distinct Source.
	Name   string
	Source string

	// Workgroups is the dispatch grid.
	Workgroups [3]uint32

	// Props describe the operator's persistent and temporary resource
	// needs.
	Props dml.BindingProperties
}

// BindingProperties returns the operator's binding properties.
func (o *Operator) BindingProperties() dml.BindingProperties {
	return o.Props
}

// BindingTable is an ordered set of buffer bindings for group 0.
type BindingTable struct {
	entries []wgpu.BindGroupEntry
}

// NewBindingTable returns an empty binding table.
func NewBindingTable() *BindingTable {
	return &BindingTable{}
}

// BindBuffer appends buf as the binding at the given index and returns the
// table for chaining.
func (t *BindingTable) BindBuffer(binding uint32, buf *Buffer) *BindingTable {
	t.entries = append(t.entries, wgpu.BufferBindingEntry(binding, buf.raw, 0, buf.size))
	return t
}

// Recorder records operator dispatches as compute passes.
type Recorder struct {
	device *Device
}

// NewRecorder creates a recorder for the device.
func NewRecorder(device *Device) *Recorder {
	return &Recorder{device: device}
}

// RecordDispatch encodes one compute pass running op with the given
// bindings. op must be an *Operator and bindings a *BindingTable.
func (r *Recorder) RecordDispatch(list dml.CommandList, op dml.Dispatchable, bindings dml.BindingTable) {
	l, ok := list.(*CommandList)
	if !ok {
		panic("webgpu: dispatch onto a foreign command list")
	}
	wop, ok := op.(*Operator)
	if !ok {
		panic("webgpu: dispatch of a foreign operator")
	}
	table, ok := bindings.(*BindingTable)
	if !ok {
		panic("webgpu: dispatch with a foreign binding table")
	}

	shader := r.device.compileShader(wop.Name, wop.Source)
	pipeline := r.device.getOrCreatePipeline(wop.Name, shader)

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := r.device.dev.CreateBindGroupSimple(bindGroupLayout, table.entries)

	computePass := l.encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(wop.Workgroups[0], wop.Workgroups[1], wop.Workgroups[2])
	computePass.End()

	l.transients = append(l.transients, bindGroup)
}
