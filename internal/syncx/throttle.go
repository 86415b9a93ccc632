package syncx

import (
	"sync"
	"time"
)

// Throttle coalesces bursts: at most one run per interval, and a run always
// uses the most recently submitted job. Intermediate jobs are dropped.
type Throttle struct {
	interval time.Duration

	mu      sync.Mutex
	next    func()
	last    time.Time
	timer   *time.Timer
	running bool
	stopped bool
}

// NewThrottle creates a throttle with the given minimum spacing.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Submit queues job, replacing any job not yet run.
func (t *Throttle) Submit(job func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.next = job
	if t.timer != nil || t.running {
		return
	}
	wait := t.interval - time.Since(t.last)
	if wait < 0 {
		wait = 0
	}
	t.timer = time.AfterFunc(wait, t.run)
}

func (t *Throttle) run() {
	t.mu.Lock()
	t.timer = nil
	if t.running {
		t.mu.Unlock()
		return
	}
	job := t.next
	t.next = nil
	if job == nil || t.stopped {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	job()

	t.mu.Lock()
	t.running = false
	t.last = time.Now()
	if t.next != nil && !t.stopped {
		t.timer = time.AfterFunc(t.interval, t.run)
	}
	t.mu.Unlock()
}

// Flush runs the queued job now on the caller's goroutine.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.running {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.run()
}

// Stop drops any queued job; later Submits are ignored.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.next = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
