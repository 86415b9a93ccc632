package syncx

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(80 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	// a Flush after firing has nothing left to run
	d.Flush()
	if got := calls.Load(); got != 1 {
		t.Errorf("calls after late Flush = %d, want 1", got)
	}
}

func TestDebouncerFlush(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func() { calls.Add(1) })

	d.Flush()
	if calls.Load() != 0 {
		t.Error("Flush without Trigger should not run")
	}

	d.Trigger()
	d.Flush()
	if got := calls.Load(); got != 1 {
		t.Errorf("calls after Flush = %d, want 1", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(40 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("calls after Stop = %d, want 0", got)
	}
}
