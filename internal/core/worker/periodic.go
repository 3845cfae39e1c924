package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task runs fn on a fixed interval until stopped.
type Task struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	eager    bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewTask creates a periodic task. It does nothing until Start.
func NewTask(name string, interval time.Duration, fn func(ctx context.Context)) *Task {
	return &Task{name: name, interval: interval, fn: fn}
}

// Eager makes the loop run fn once as soon as it starts.
func (t *Task) Eager() *Task {
	t.eager = true
	return t
}

// Start launches the loop. Calling Start on a running task is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.loop(ctx, t.done)
}

// Stop cancels the loop and waits for an in-flight run to return.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// RunOnce executes fn synchronously, recovering from panics.
func (t *Task) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Periodic task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn(ctx)
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	slog.Debug("Periodic task started", "task", t.name, "interval", t.interval)
	if t.eager {
		t.RunOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Periodic task stopped", "task", t.name)
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}
