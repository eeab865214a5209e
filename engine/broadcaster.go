package engine

import (
	"context"
	"sync"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"

	"go.uber.org/zap"
)

type queuedState struct {
	payload    game.StatePayload
	transition bool
}

// Broadcaster rate-limits state frames and hands every outbound event to the
// task pool. State frames leave through a single sender in the order they
// were accepted. Transport failures are logged and never retried.
type Broadcaster struct {
	publisher   Publisher
	pool        *TaskPool
	logger      *zap.Logger
	now         func() time.Time
	minInterval time.Duration

	mu              sync.Mutex
	sent            bool
	lastBroadcastAt time.Time
	lastRoundID     string
	lastPhase       game.Phase
	suppressed      int64

	queue   []queuedState
	sending bool
}

func NewBroadcaster(publisher Publisher, pool *TaskPool, minInterval time.Duration, now func() time.Time, logger *zap.Logger) *Broadcaster {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		publisher:   publisher,
		pool:        pool,
		logger:      logger,
		now:         now,
		minInterval: minInterval,
	}
}

// PublishState sends payload unless it repeats the last round and phase
// within minInterval. Round or phase changes are always sent.
func (b *Broadcaster) PublishState(payload game.StatePayload) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !b.sent || payload.RoundID != b.lastRoundID || payload.Phase != b.lastPhase {
		b.enqueueLocked(queuedState{payload: payload, transition: true})
		b.record(now, payload)
		return true
	}
	if now.Sub(b.lastBroadcastAt) < b.minInterval {
		b.suppressed++
		return false
	}
	if !b.enqueueLocked(queuedState{payload: payload}) {
		return false
	}
	b.record(now, payload)
	return true
}

// enqueueLocked queues a frame for the sender, starting it if idle. A queued
// same-phase frame is replaced by a newer one of the same round and phase, so
// the queue only grows with transitions. An idle sender is started on a free
// slot for same-phase frames; those are dropped when the pool is saturated.
func (b *Broadcaster) enqueueLocked(item queuedState) bool {
	if b.sending {
		if n := len(b.queue); !item.transition && n > 0 && !b.queue[n-1].transition &&
			b.queue[n-1].payload.RoundID == item.payload.RoundID &&
			b.queue[n-1].payload.Phase == item.payload.Phase {
			b.queue[n-1] = item
			return true
		}
		b.queue = append(b.queue, item)
		return true
	}

	b.queue = append(b.queue, item)
	b.sending = true
	if item.transition {
		b.pool.Go("publish.state", 0, b.sendStates)
		return true
	}
	if b.pool.TryGo("publish.state", 0, b.sendStates) {
		return true
	}
	b.queue = b.queue[:0]
	b.sending = false
	return false
}

// sendStates publishes queued frames one at a time until the queue is empty.
func (b *Broadcaster) sendStates(ctx context.Context) error {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.sending = false
			b.mu.Unlock()
			return nil
		}
		item := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		sendCtx, cancel := context.WithTimeout(ctx, config.PublishTimeout)
		if err := b.publisher.PublishState(sendCtx, item.payload); err != nil {
			b.logger.Warn("⚠️ State publish failed",
				zap.String("roundId", item.payload.RoundID),
				zap.String("phase", string(item.payload.Phase)),
				zap.Error(err))
		}
		cancel()
	}
}

func (b *Broadcaster) record(now time.Time, payload game.StatePayload) {
	b.sent = true
	b.lastBroadcastAt = now
	b.lastRoundID = payload.RoundID
	b.lastPhase = payload.Phase
}

// Suppressed reports how many state frames the throttle has swallowed.
func (b *Broadcaster) Suppressed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suppressed
}

func (b *Broadcaster) PublishHistory(payload game.HistoryPayload) {
	b.pool.Go("publish.history", config.PublishTimeout, func(ctx context.Context) error {
		return b.publisher.PublishHistory(ctx, payload)
	})
}

func (b *Broadcaster) PublishBetResult(result game.BetResult) {
	b.pool.Go("publish.bet", config.PublishTimeout, func(ctx context.Context) error {
		return b.publisher.PublishBetResult(ctx, result)
	})
}

func (b *Broadcaster) PublishCashoutResult(result game.CashoutResult) {
	b.pool.Go("publish.cashout", config.PublishTimeout, func(ctx context.Context) error {
		return b.publisher.PublishCashoutResult(ctx, result)
	})
}
