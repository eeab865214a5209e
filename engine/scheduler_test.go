package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingTicker struct {
	mu    sync.Mutex
	ticks int
	total time.Duration
}

func (c *countingTicker) Tick(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	c.total += delta
}

func (c *countingTicker) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerLifecycle(t *testing.T) {
	target := &countingTicker{}
	s := NewScheduler(target, 5*time.Millisecond, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	waitFor(t, func() bool { return target.Count() >= 3 })

	if !s.Pause() {
		t.Error("first pause should change mode")
	}
	if s.Pause() {
		t.Error("second pause should be a no-op")
	}
	time.Sleep(20 * time.Millisecond)
	paused := target.Count()
	time.Sleep(30 * time.Millisecond)
	if target.Count() != paused {
		t.Errorf("ticked while paused: %d -> %d", paused, target.Count())
	}

	if !s.Resume() || s.Resume() {
		t.Error("resume should change mode exactly once")
	}
	waitFor(t, func() bool { return target.Count() > paused })

	s.Stop()
	s.Stop()
	stopped := target.Count()
	time.Sleep(20 * time.Millisecond)
	if target.Count() != stopped {
		t.Error("ticked after stop")
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.total <= 0 {
		t.Error("expected positive elapsed time to be passed to Tick")
	}
}

func TestSchedulerStartsPaused(t *testing.T) {
	target := &countingTicker{}
	s := NewScheduler(target, 5*time.Millisecond, nil)
	s.Pause()
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)
	if target.Count() != 0 {
		t.Errorf("paused scheduler ticked %d times", target.Count())
	}
	if !s.IsPaused() {
		t.Error("expected paused")
	}
}
