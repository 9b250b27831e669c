// Copyright 2025 The TensorFlow-DirectML Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dml provides a batching execution context for GPU command
// submission.
//
// # Overview
//
// Recording and submitting GPU work one operation at a time wastes most of
// the hardware's throughput. An ExecutionContext accepts operations from any
// number of goroutines, accumulates them into batches, and has a background
// worker record and submit each batch as a single command list. Batches are
// cut when a caller asks for one (Flush), when the batch reaches a size
// threshold, or when a partial batch has aged past a time threshold.
//
// Every operation returns a GpuEvent identifying the fence value the GPU
// reaches once the batch carrying that operation has executed. Events are
// cheap value types; call Wait to block on one or IsSignaled to poll it.
//
// # Basic Usage
//
//	import (
//	    "github.com/Artoria2e5/tensorflow-directml/dml"
//	)
//
//	func main() {
//	    device := dml.NewMockDevice()
//	    queue := device.NewMockQueue(dml.QueueTypeDirect)
//
//	    ctx, err := dml.NewExecutionContext(device, queue, &dml.MockOperatorRecorder{}, dml.DefaultOptions())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer ctx.Close()
//
//	    ev := ctx.CopyBufferRegion(dst, 0, dml.ResourceStateCommon, src, 0, dml.ResourceStateCommon, 1024)
//	    if _, err := ctx.Flush(); err != nil {
//	        log.Fatal(err)
//	    }
//	    ev.Wait()
//	}
//
// # Configuration
//
// Flush thresholds come from Options, falling back to the
// TFDML_BATCH_FLUSH_SIZE and TFDML_BATCH_FLUSH_TIME (microseconds)
// environment variables and then to built-in defaults.
//
// # Devices
//
// The context drives any implementation of the Device, SubmitQueue, and
// OperatorRecorder interfaces. The package ships a complete in-process mock
// device for testing, and internal/dml/webgpu adapts a real WebGPU device on
// Windows.
package dml
