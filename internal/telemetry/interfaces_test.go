package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestCounters(t *testing.T) {
	counters := NewCounters()

	counters.Add("decay_pops", 2)
	counters.Store("decay_pops", 5)
	counters.Add("decay_pops", 3)

	snapshot := counters.Snapshot()
	if got := snapshot["decay_pops"]; got != 8 {
		t.Fatalf("unexpected counter value: %d", got)
	}

	// Ensure nil counters do not panic.
	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	nilCounters.Store("ignored", 1)

	nop := NopMetrics()
	nop.Add("ignored", 1)
	nop.Store("ignored", 1)
}
