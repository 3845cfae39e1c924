package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTask_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	task := NewTask("tick", 5*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})

	task.Start(context.Background())
	task.Start(context.Background()) // no-op
	if !task.Running() {
		t.Fatal("task should be running")
	}

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	task.Stop()

	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Error("task kept running after Stop")
	}
	task.Stop() // idempotent
}

func TestTask_RunOnceRecovers(t *testing.T) {
	task := NewTask("panicky", time.Minute, func(context.Context) {
		panic("boom")
	})
	task.RunOnce(context.Background())
}

type fakeStore struct {
	before time.Time
	n      int64
	err    error
}

func (f *fakeStore) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.n, f.err
}

func TestPruner_Prune(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	ok := &fakeStore{n: 4}
	broken := &fakeStore{err: errors.New("db down")}

	p := NewPruner(24*time.Hour, map[string]Prunable{"searches": ok, "alerts": broken})
	p.now = func() time.Time { return now }

	if got := p.Prune(context.Background()); got != 4 {
		t.Errorf("pruned = %d, want 4", got)
	}
	if want := now.Add(-24 * time.Hour); !ok.before.Equal(want) {
		t.Errorf("threshold = %v, want %v", ok.before, want)
	}
}
