package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RepeatingTask runs fn every interval on its own goroutine. Ticks never
// overlap: a tick that outlives the interval causes the missed ticks to be dropped.
type RepeatingTask struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewRepeatingTask(name string, interval time.Duration, fn func(ctx context.Context), log *slog.Logger) *RepeatingTask {
	done := make(chan struct{})
	close(done)
	return &RepeatingTask{name: name, interval: interval, fn: fn, log: log, done: done}
}

// Start arms the task. It reports false when the task was already running.
func (t *RepeatingTask) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(ctx, t.stop, t.done)
	return true
}

// Stop disarms future ticks. A tick already in progress runs to completion.
// It is safe to call in any state and reports whether the task was running.
func (t *RepeatingTask) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return false
	}
	t.running = false
	close(t.stop)
	return true
}

func (t *RepeatingTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Done is closed once the task goroutine has exited
func (t *RepeatingTask) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// expire clears running after the parent context ended, unless Stop or a
// later Start already replaced the run identified by stop
func (t *RepeatingTask) expire(stop chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running && t.stop == stop {
		t.running = false
		close(stop)
	}
}

func (t *RepeatingTask) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.expire(stop)
			return
		case <-stop:
			return
		case <-ticker.C:
			// stop wins over a tick that fired at the same time
			select {
			case <-stop:
				return
			default:
			}

			start := time.Now()
			t.fn(context.WithoutCancel(ctx))
			t.log.Debug("task finished", "task", t.name, "time", time.Since(start))
		}
	}
}
