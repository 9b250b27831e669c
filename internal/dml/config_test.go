package dml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptionsFromEnv(t *testing.T) {
	t.Setenv(envBatchFlushSize, "32")
	t.Setenv(envBatchFlushTime, "2500")

	opts := DefaultOptions()
	assert.Equal(t, 32, opts.BatchFlushSize)
	assert.Equal(t, 2500*time.Microsecond, opts.BatchFlushTime)
}

func TestDefaultOptionsIgnoreInvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"garbage", "lots"},
		{"negative", "-4"},
		{"zero", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envBatchFlushSize, tt.value)
			t.Setenv(envBatchFlushTime, tt.value)

			opts := DefaultOptions()
			assert.Equal(t, defaultBatchFlushSize, opts.BatchFlushSize)
			assert.Equal(t, defaultBatchFlushTime, opts.BatchFlushTime)
		})
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Setenv(envBatchFlushSize, "")
	t.Setenv(envBatchFlushTime, "")

	opts := Options{BatchFlushSize: 4}.withDefaults()
	assert.Equal(t, 4, opts.BatchFlushSize)
	assert.Equal(t, defaultBatchFlushTime, opts.BatchFlushTime)

	opts = Options{BatchFlushTime: time.Second}.withDefaults()
	assert.Equal(t, defaultBatchFlushSize, opts.BatchFlushSize)
	assert.Equal(t, time.Second, opts.BatchFlushTime)
}
