package dml

import (
	"os"
	"strconv"
	"time"
)

// Flush-policy tunables, read once when an execution context is constructed.
const (
	// defaultBatchFlushSize is the pending-operation count that triggers an
	// automatic flush.
	defaultBatchFlushSize = 100

	// defaultBatchFlushTime is how long a partial batch may age before it
	// is flushed anyway.
	defaultBatchFlushTime = 1000 * time.Microsecond

	envBatchFlushSize = "TFDML_BATCH_FLUSH_SIZE"
	envBatchFlushTime = "TFDML_BATCH_FLUSH_TIME"
)

// Options configures an ExecutionContext. Zero fields fall back to the
// environment (TFDML_BATCH_FLUSH_SIZE, TFDML_BATCH_FLUSH_TIME in
// microseconds) and then to the built-in defaults.
type Options struct {
	// BatchFlushSize is the batch size that triggers an automatic flush.
	BatchFlushSize int

	// BatchFlushTime is the batch age that triggers an automatic flush.
	BatchFlushTime time.Duration
}

// DefaultOptions returns the environment-derived configuration.
func DefaultOptions() Options {
	return Options{
		BatchFlushSize: positiveIntFromEnv(envBatchFlushSize, defaultBatchFlushSize),
		BatchFlushTime: time.Duration(positiveIntFromEnv(envBatchFlushTime, int(defaultBatchFlushTime/time.Microsecond))) * time.Microsecond,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.BatchFlushSize <= 0 {
		o.BatchFlushSize = defaults.BatchFlushSize
	}
	if o.BatchFlushTime <= 0 {
		o.BatchFlushTime = defaults.BatchFlushTime
	}
	return o
}

// positiveIntFromEnv parses name as a positive integer, falling back on
// unset, malformed, or non-positive values.
func positiveIntFromEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
