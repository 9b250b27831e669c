// Package dml implements the command-submission batching engine: it
// decouples goroutines that enqueue GPU work (buffer copies, fills, operator
// initialization and execution, barriers) from a single background worker
// that records the work into command lists and submits them to a device
// queue.
//
// Batching amortizes submission cost: many logical operations become few
// physical submissions, while every enqueue call still returns a completion
// event the caller can wait on or poll. The flush policy is driven by three
// independent triggers: an explicit Flush call, a batch-size threshold, and
// a batch-age threshold. The thresholds are configurable through
// TFDML_BATCH_FLUSH_SIZE and TFDML_BATCH_FLUSH_TIME.
//
// Device and driver specifics stay behind the narrow interfaces in
// device.go. A simulated in-process device lives in mock.go; a WebGPU-backed
// implementation lives in the webgpu subpackage.
package dml
