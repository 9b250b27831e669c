// Package main provides the dmlbatch demo CLI.
//
// It drives an execution context against the in-process mock device and
// reports what the batching worker did, which makes it handy for eyeballing
// the effect of TFDML_BATCH_FLUSH_SIZE and TFDML_BATCH_FLUSH_TIME.
package main

import (
	"fmt"
	"os"

	"github.com/Artoria2e5/tensorflow-directml/dml"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("dmlbatch %s\n", version)
		return
	}

	opts := dml.DefaultOptions()
	fmt.Printf("dmlbatch %s\n", version)
	fmt.Printf("flush size: %d ops, flush time: %s\n\n", opts.BatchFlushSize, opts.BatchFlushTime)

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "dmlbatch: %v\n", err)
		os.Exit(1)
	}
}

func run(opts dml.Options) error {
	device := dml.NewMockDevice()
	queue := device.NewMockQueue(dml.QueueTypeDirect)

	ctx, err := dml.NewExecutionContext(device, queue, &dml.MockOperatorRecorder{}, opts)
	if err != nil {
		return err
	}
	defer ctx.Close()

	src := dml.NewMockBuffer("src", 1<<20)
	dst := dml.NewMockBuffer("dst", 1<<20)

	const ops = 1000
	for i := 0; i < ops; i++ {
		offset := uint64(i % 256 * 4096)
		ctx.CopyBufferRegion(dst, offset, dml.ResourceStateCopyDest, src, offset, dml.ResourceStateCopySource, 4096)
	}
	ctx.FillBufferWithPattern(dst, 0, 64, []byte{0xAA})

	ev, err := ctx.Flush()
	if err != nil {
		return err
	}
	ev.Wait()

	counters := ctx.TracingCounters()
	fmt.Printf("recorded:    %d copies, %d fills\n", counters.Copies, counters.Fills)
	fmt.Printf("flushes:     %d requested, %d submissions\n", counters.Flushes, counters.Submissions)
	fmt.Printf("queue saw:   %d command lists\n", queue.SubmissionCount())
	fmt.Printf("fence value: %d\n", ev.FenceValue)
	return nil
}
