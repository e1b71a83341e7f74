package batch

import (
	"sync"
	"time"
)

// Timer is a restartable stopwatch that can be read while running.
type Timer struct {
	mu      sync.Mutex
	started time.Time
	elapsed time.Duration
	running bool
}

// Restart zeroes the timer and starts it.
func (t *Timer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = time.Now()
	t.elapsed = 0
	t.running = true
}

// Stop freezes the timer and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.elapsed = time.Since(t.started)
		t.running = false
	}
	return t.elapsed
}

// Elapsed returns the running time so far, or the frozen value once stopped.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return time.Since(t.started)
	}
	return t.elapsed
}

// Running reports whether the timer is started.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
