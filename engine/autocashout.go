package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type settleRequest struct {
	roundID    string
	multiplier decimal.Decimal
	final      bool
}

// AutoCashoutSettlement pays tickets whose auto-cashout threshold has been
// reached. At most one pass runs at a time; in-flight requests arriving during
// a pass are coalesced so only the latest one runs next. Final sweeps for
// crashed rounds are queued and never coalesced.
type AutoCashoutSettlement struct {
	ledger      AutoCashoutLedger
	broadcaster *Broadcaster
	pool        *TaskPool
	logger      *zap.Logger
	fanout      int

	mu      sync.Mutex
	running bool
	pending *settleRequest
	finals  []settleRequest
}

func NewAutoCashoutSettlement(ledger AutoCashoutLedger, broadcaster *Broadcaster, pool *TaskPool, fanout int, logger *zap.Logger) *AutoCashoutSettlement {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fanout <= 0 {
		fanout = 8
	}
	return &AutoCashoutSettlement{
		ledger:      ledger,
		broadcaster: broadcaster,
		pool:        pool,
		logger:      logger,
		fanout:      fanout,
	}
}

// Run schedules a settlement pass for roundID at multiplier. It never blocks.
func (s *AutoCashoutSettlement) Run(roundID string, multiplier decimal.Decimal) {
	s.submit(settleRequest{roundID: roundID, multiplier: multiplier})
}

// Sweep schedules the closing pass for a crashed round. It is retried with
// backoff until no reachable ticket is left or the attempts run out.
func (s *AutoCashoutSettlement) Sweep(roundID string, multiplier decimal.Decimal) {
	s.submit(settleRequest{roundID: roundID, multiplier: multiplier, final: true})
}

func (s *AutoCashoutSettlement) submit(req settleRequest) {
	if s.ledger == nil {
		return
	}

	s.mu.Lock()
	if s.running {
		if req.final {
			s.finals = append(s.finals, req)
		} else {
			s.pending = &req
		}
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.pool.Go("autocashout.drain", 0, func(ctx context.Context) error {
		s.drain(ctx, req)
		return nil
	})
}

func (s *AutoCashoutSettlement) drain(ctx context.Context, req settleRequest) {
	for {
		s.process(ctx, req)

		s.mu.Lock()
		switch {
		case len(s.finals) > 0:
			req = s.finals[0]
			s.finals = s.finals[1:]
		case s.pending != nil:
			req = *s.pending
			s.pending = nil
		default:
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *AutoCashoutSettlement) process(ctx context.Context, req settleRequest) {
	attempts := 1
	if req.final {
		attempts = config.FinalSweepAttempts
	}

	var (
		unsettled int
		err       error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * config.FinalSweepBackoff):
			}
		}

		passCtx, cancel := context.WithTimeout(ctx, config.SettlementTimeout)
		unsettled, err = s.pass(passCtx, req)
		cancel()
		if err == nil && unsettled == 0 {
			return
		}
		if err != nil {
			s.logger.Warn("⚠️ Auto-cashout pass failed",
				zap.String("roundId", req.roundID),
				zap.String("multiplier", req.multiplier.StringFixed(2)),
				zap.Bool("final", req.final),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}

	if req.final {
		s.logger.Error("🚨 Auto-cashout sweep left tickets unsettled",
			zap.String("roundId", req.roundID),
			zap.String("multiplier", req.multiplier.StringFixed(2)),
			zap.Int("unsettled", unsettled),
			zap.Error(err))
	}
}

// pass settles every reachable candidate, fetching further batches while the
// ledger keeps returning full ones. It reports how many tickets it tried and
// failed to settle.
func (s *AutoCashoutSettlement) pass(ctx context.Context, req settleRequest) (int, error) {
	attempted := make(map[string]struct{})
	var failed atomic.Int64

	for {
		candidates, err := s.ledger.ListCandidates(ctx, req.roundID, req.multiplier, config.CandidateBatchLimit)
		if err != nil {
			return int(failed.Load()), fmt.Errorf("list auto-cashout candidates: %w", err)
		}

		var g errgroup.Group
		g.SetLimit(s.fanout)
		fresh := 0
		for _, c := range candidates {
			if _, done := attempted[c.TicketID]; done {
				continue
			}
			attempted[c.TicketID] = struct{}{}
			if decimal.NewFromFloat(c.ThresholdMultiplier).GreaterThan(req.multiplier) {
				continue
			}
			fresh++
			g.Go(func() error {
				if !s.settle(ctx, c) {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		// A short batch is the last one; a batch of retried tickets means
		// the rest of the queue is stuck behind failures.
		if len(candidates) < config.CandidateBatchLimit || fresh == 0 {
			return int(failed.Load()), nil
		}
	}
}

// settle pays c at its threshold, never at the possibly higher live multiplier.
// It reports false only when the ticket is still unpaid afterwards.
func (s *AutoCashoutSettlement) settle(ctx context.Context, c game.AutoCashoutCandidate) bool {
	threshold := decimal.NewFromFloat(c.ThresholdMultiplier)
	settlement, err := s.ledger.Settle(ctx, c.TicketID, c.UserID, c.RoundID, threshold)
	if errors.Is(err, game.ErrAlreadySettled) {
		s.logger.Debug("Ticket already settled", zap.String("ticketId", c.TicketID))
		return true
	}
	if err != nil {
		s.logger.Warn("⚠️ Auto-cashout settle failed",
			zap.String("ticketId", c.TicketID),
			zap.String("roundId", c.RoundID),
			zap.Error(err))
		return false
	}

	s.logger.Info("💸 Auto-cashout",
		zap.String("ticketId", c.TicketID),
		zap.Float64("multiplier", settlement.PayoutMultiplier),
		zap.Float64("credited", settlement.CreditedAmount))
	if s.broadcaster != nil {
		s.broadcaster.PublishCashoutResult(game.CashoutResult{
			TicketID:          c.TicketID,
			RoundID:           c.RoundID,
			Kind:              game.CashoutAuto,
			Status:            game.CashoutCredited,
			CreditedAmount:    settlement.CreditedAmount,
			CashoutMultiplier: settlement.PayoutMultiplier,
			Snapshot:          game.WalletSnapshot{Balance: settlement.Balance, UpdatedAt: settlement.UpdatedAt},
		})
	}
	return true
}
