// Copyright 2025 The TensorFlow-DirectML Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dml

import (
	"github.com/Artoria2e5/tensorflow-directml/internal/dml"
)

// ExecutionContext batches GPU operations and submits them from a background
// worker. Safe for concurrent use.
type ExecutionContext = dml.ExecutionContext

// NewExecutionContext creates a context over device and queue and starts its
// worker. Close releases the worker; it never blocks on in-flight GPU work.
func NewExecutionContext(device Device, queue SubmitQueue, ops OperatorRecorder, opts Options) (*ExecutionContext, error) {
	return dml.NewExecutionContext(device, queue, ops, opts)
}

// Options configures the flush thresholds of an ExecutionContext.
type Options = dml.Options

// DefaultOptions returns the environment-derived configuration.
func DefaultOptions() Options {
	return dml.DefaultOptions()
}

// GpuEvent names a point on a fence timeline. It is signaled once the GPU
// reaches FenceValue.
type GpuEvent = dml.GpuEvent

// TracingCounters is a snapshot of the operation counters a context keeps.
type TracingCounters = dml.TracingCounters

// Device surface

// Device creates the GPU objects the execution context records with.
type Device = dml.Device

// SubmitQueue accepts closed command lists for execution.
type SubmitQueue = dml.SubmitQueue

// CommandList records GPU commands.
type CommandList = dml.CommandList

// CommandAllocator backs command list recording memory.
type CommandAllocator = dml.CommandAllocator

// Fence is a monotonic GPU completion counter.
type Fence = dml.Fence

// Buffer is a GPU buffer resource.
type Buffer = dml.Buffer

// DescriptorHeap holds descriptor slots.
type DescriptorHeap = dml.DescriptorHeap

// DescriptorRange is a contiguous span of descriptors within a heap.
type DescriptorRange = dml.DescriptorRange

// QueueType selects the engine class a queue runs on.
type QueueType = dml.QueueType

// Queue engine classes.
const (
	QueueTypeDirect  = dml.QueueTypeDirect
	QueueTypeCompute = dml.QueueTypeCompute
	QueueTypeCopy    = dml.QueueTypeCopy
)

// ResourceState describes how a buffer is currently usable.
type ResourceState = dml.ResourceState

// Resource states.
const (
	ResourceStateCommon          = dml.ResourceStateCommon
	ResourceStateCopySource      = dml.ResourceStateCopySource
	ResourceStateCopyDest        = dml.ResourceStateCopyDest
	ResourceStateUnorderedAccess = dml.ResourceStateUnorderedAccess
)

// Barrier orders GPU work against resource hazards.
type Barrier = dml.Barrier

// BarrierKind discriminates barrier variants.
type BarrierKind = dml.BarrierKind

// Barrier kinds.
const (
	BarrierTransition = dml.BarrierTransition
	BarrierAliasing   = dml.BarrierAliasing
	BarrierUAV        = dml.BarrierUAV
)

// TransitionBarrier moves resource between the before and after states.
func TransitionBarrier(resource Buffer, before, after ResourceState) Barrier {
	return dml.TransitionBarrier(resource, before, after)
}

// AliasingBarrier orders access to overlapping heap placements.
func AliasingBarrier() Barrier {
	return dml.AliasingBarrier()
}

// UAVBarrier orders unordered-access writes against subsequent reads.
func UAVBarrier() Barrier {
	return dml.UAVBarrier()
}

// Operators

// Dispatchable is anything an operator recorder can dispatch.
type Dispatchable = dml.Dispatchable

// CompiledOperator is a fully compiled operator ready for repeated
// execution.
type CompiledOperator = dml.CompiledOperator

// OperatorInitializer performs one-time operator initialization.
type OperatorInitializer = dml.OperatorInitializer

// BindingProperties describe an operator's resource needs.
type BindingProperties = dml.BindingProperties

// BindingTable carries the vendor-specific resource bindings of a dispatch.
type BindingTable = dml.BindingTable

// OperatorRecorder emits dispatch commands onto a command list.
type OperatorRecorder = dml.OperatorRecorder

// Errors

// ErrResourceExhausted reports a recoverable out-of-memory failure while
// closing a command list. It is surfaced by Flush once and then cleared.
var ErrResourceExhausted = dml.ErrResourceExhausted

// ErrDeviceRemoved reports a lost device. It is fatal: the context stops
// recording and every later Flush keeps returning it.
var ErrDeviceRemoved = dml.ErrDeviceRemoved

// Mock device

// MockDevice is an in-process device simulation for tests and examples.
type MockDevice = dml.MockDevice

// NewMockDevice creates a healthy simulated device.
func NewMockDevice() *MockDevice {
	return dml.NewMockDevice()
}

// MockQueue captures submissions made against a MockDevice.
type MockQueue = dml.MockQueue

// MockBuffer is a plain buffer handle.
type MockBuffer = dml.MockBuffer

// NewMockBuffer creates a labeled buffer handle of the given size.
func NewMockBuffer(label string, size uint64) *MockBuffer {
	return dml.NewMockBuffer(label, size)
}

// MockOperator is a compiled operator or initializer stand-in.
type MockOperator = dml.MockOperator

// MockBindingTable is an opaque binding table stand-in.
type MockBindingTable = dml.MockBindingTable

// MockOperatorRecorder records dispatches onto mock command lists.
type MockOperatorRecorder = dml.MockOperatorRecorder

// RecordedCommand is one command captured by a mock command list.
type RecordedCommand = dml.RecordedCommand

// CommandKind tags a recorded mock command.
type CommandKind = dml.CommandKind

// Recorded command kinds.
const (
	CommandCopy     = dml.CommandCopy
	CommandClear    = dml.CommandClear
	CommandBarrier  = dml.CommandBarrier
	CommandSetHeap  = dml.CommandSetHeap
	CommandDispatch = dml.CommandDispatch
)
