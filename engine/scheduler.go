package engine

import (
	"context"
	"sync"
	"time"

	"aviatorServer/config"

	"go.uber.org/zap"
)

// Ticker is driven by the Scheduler.
type Ticker interface {
	Tick(delta time.Duration)
}

// Scheduler calls Tick at a fixed cadence with the measured elapsed time.
// Pausing stops the calls; elapsed time while paused is discarded.
type Scheduler struct {
	target   Ticker
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

func NewScheduler(target Ticker, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = config.DefaultTickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{target: target, interval: interval, now: time.Now, logger: logger}
}

// Start launches the tick loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.lastRun = s.now()
	go s.loop(ctx, s.done)
	s.logger.Info("⏱️ Scheduler started", zap.Duration("interval", s.interval), zap.Bool("paused", s.paused))
}

// Stop ends the loop and waits for the in-flight tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("🛑 Scheduler stopped")
}

// Pause stops ticking. It reports whether the mode changed.
func (s *Scheduler) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return false
	}
	s.paused = true
	s.logger.Info("⏸️ Scheduler paused")
	return true
}

// Resume restarts ticking. It reports whether the mode changed.
func (s *Scheduler) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return false
	}
	s.paused = false
	s.lastRun = s.now()
	s.logger.Info("▶️ Scheduler resumed")
	return true
}

func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if delta, ok := s.advance(); ok {
				s.target.Tick(delta)
			}
		}
	}
}

func (s *Scheduler) advance() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	delta := now.Sub(s.lastRun)
	s.lastRun = now
	if s.paused {
		return 0, false
	}
	return delta, true
}
