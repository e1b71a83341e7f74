package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mixtape/internal/logging"
)

// Observer receives relayed events. Observers run on the relay goroutine and
// may block it; they never block the producer.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Relay polls a Queue and delivers events to observers in emission order.
type Relay struct {
	queue     *Queue
	interval  time.Duration
	observers []Observer
	logger    *zap.Logger
	done      chan struct{}
}

// NewRelay builds a relay over queue. A non-positive interval defaults to 100ms.
func NewRelay(queue *Queue, interval time.Duration, logger *zap.Logger, observers ...Observer) *Relay {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Relay{
		queue:     queue,
		interval:  interval,
		observers: observers,
		logger:    logging.NewComponentLogger(logger, "progress"),
		done:      make(chan struct{}),
	}
}

// Start runs the relay loop in a new goroutine. The loop exits after the
// queue is closed and drained, or when ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go r.run(ctx)
}

// Wait blocks until the relay loop has exited.
func (r *Relay) Wait() {
	<-r.done
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case _, ok := <-r.queue.Ready():
			r.flush()
			if !ok {
				return
			}
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Relay) flush() {
	for _, e := range r.queue.Drain() {
		for _, obs := range r.observers {
			r.deliver(obs, e)
		}
	}
}

func (r *Relay) deliver(obs Observer, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("progress observer panicked", zap.Any("panic", rec), zap.String("kind", string(e.Kind)))
		}
	}()
	obs.Observe(e)
}
