package progress

import "sync"

// Queue is a bounded, non-blocking FIFO of events. Push never blocks; when
// the queue is full the oldest progress event is evicted, then the oldest
// non-terminal lifecycle event. Terminal events are never evicted; a queue
// holding only those grows past its limit.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	limit   int
	dropped int
	closed  bool
	signal  chan struct{}
}

// NewQueue creates a queue holding at most limit events.
func NewQueue(limit int) *Queue {
	if limit < 1 {
		limit = 1
	}
	return &Queue{
		buf:    make([]Event, 0, limit),
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// Push appends an event. It reports false when the queue is closed.
func (q *Queue) Push(e Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if len(q.buf) >= q.limit {
		q.evictLocked()
	}
	q.buf = append(q.buf, e)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return true
}

func (q *Queue) evictLocked() {
	victim := q.oldest(func(e Event) bool { return !e.Lifecycle() })
	if victim < 0 {
		victim = q.oldest(func(e Event) bool { return !e.Terminal() })
	}
	if victim < 0 {
		return
	}
	q.buf = append(q.buf[:victim], q.buf[victim+1:]...)
	q.dropped++
}

func (q *Queue) oldest(match func(Event) bool) int {
	for i, e := range q.buf {
		if match(e) {
			return i
		}
	}
	return -1
}

// Drain removes and returns every queued event in emission order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	out := make([]Event, len(q.buf))
	copy(out, q.buf)
	q.buf = q.buf[:0]
	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped returns how many events were evicted because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting events. Already queued events remain drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.signal)
	}
	q.mu.Unlock()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Ready is signalled after a push and closed by Close.
func (q *Queue) Ready() <-chan struct{} {
	return q.signal
}
