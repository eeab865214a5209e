package engine

import (
	"context"
	"fmt"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the full ledger surface the player commands need.
type Ledger interface {
	BetLedger
	AutoCashoutLedger
}

// Commands validates player bets and manual cashouts against the live round
// and publishes the outcome of every attempt.
type Commands struct {
	machine *Machine
	ledger  Ledger
	newID   func() string
	logger  *zap.Logger
}

func NewCommands(machine *Machine, ledger Ledger, logger *zap.Logger) *Commands {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commands{machine: machine, ledger: ledger, newID: uuid.NewString, logger: logger}
}

// PlaceBet accepts a wager only while the round it names is taking bets.
func (c *Commands) PlaceBet(ctx context.Context, req game.BetRequest) (game.BetResult, error) {
	round := c.machine.Round()
	if req.RoundID == "" {
		req.RoundID = round.RoundID
	}
	result := game.BetResult{RoundID: req.RoundID, UserID: req.UserID}

	err := validateBet(req)
	if err == nil {
		switch {
		case req.RoundID != round.RoundID:
			err = ErrRoundMismatch
		case round.Phase != game.PhaseAwaitingBets:
			err = ErrBettingClosed
		}
	}
	if err != nil {
		return c.rejectBet(ctx, result, err)
	}

	ticketID := c.newID()
	snapshot, err := c.ledger.PlaceBet(ctx, ticketID, req)
	if err != nil {
		return c.rejectBet(ctx, result, fmt.Errorf("place bet: %w", err))
	}

	result.Status = game.BetAccepted
	result.TicketID = ticketID
	result.Snapshot = snapshot
	c.machine.Broadcaster().PublishBetResult(result)
	c.logger.Info("🎯 Bet placed",
		zap.String("roundId", req.RoundID),
		zap.String("userId", req.UserID),
		zap.String("ticketId", ticketID),
		zap.Float64("amount", req.Amount))
	return result, nil
}

func (c *Commands) rejectBet(ctx context.Context, result game.BetResult, cause error) (game.BetResult, error) {
	result.Status = game.BetRejected
	result.Reason = cause.Error()
	if result.UserID != "" {
		if snap, err := c.ledger.WalletSnapshot(ctx, result.UserID); err == nil {
			result.Snapshot = snap
		}
	}
	c.machine.Broadcaster().PublishBetResult(result)
	return result, cause
}

func validateBet(req game.BetRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidBet)
	}
	if req.Amount < config.MinBetAmount || req.Amount > config.MaxBetAmount {
		return fmt.Errorf("%w: amount must be between %.2f and %.2f", ErrInvalidBet, config.MinBetAmount, config.MaxBetAmount)
	}
	if req.AutoCashout != nil && *req.AutoCashout < 1 {
		return fmt.Errorf("%w: auto-cashout must be at least 1.00x", ErrInvalidBet)
	}
	return nil
}

// Cashout settles a ticket at the current multiplier, truncated to cents.
func (c *Commands) Cashout(ctx context.Context, req game.CashoutRequest) (game.CashoutResult, error) {
	round := c.machine.Round()
	if req.RoundID == "" {
		req.RoundID = round.RoundID
	}
	result := game.CashoutResult{TicketID: req.TicketID, RoundID: req.RoundID, Kind: game.CashoutManual}

	var err error
	switch {
	case req.TicketID == "" || req.UserID == "":
		err = fmt.Errorf("%w: ticket and user are required", ErrInvalidValue)
	case req.RoundID != round.RoundID:
		err = ErrRoundMismatch
	case round.Phase != game.PhaseFlying:
		err = ErrNotFlying
	}
	if err != nil {
		return c.rejectCashout(result, err)
	}

	multiplier := round.Multiplier.Truncate(2)
	settlement, err := c.ledger.Settle(ctx, req.TicketID, req.UserID, round.RoundID, multiplier)
	if err != nil {
		return c.rejectCashout(result, fmt.Errorf("settle ticket: %w", err))
	}

	result.Status = game.CashoutCredited
	result.CreditedAmount = settlement.CreditedAmount
	result.CashoutMultiplier = settlement.PayoutMultiplier
	result.Snapshot = game.WalletSnapshot{Balance: settlement.Balance, UpdatedAt: settlement.UpdatedAt}
	c.machine.Broadcaster().PublishCashoutResult(result)
	c.logger.Info("💰 Cashout",
		zap.String("ticketId", req.TicketID),
		zap.Float64("multiplier", settlement.PayoutMultiplier),
		zap.Float64("credited", settlement.CreditedAmount))
	return result, nil
}

func (c *Commands) rejectCashout(result game.CashoutResult, cause error) (game.CashoutResult, error) {
	result.Status = game.CashoutRejected
	result.Reason = cause.Error()
	c.machine.Broadcaster().PublishCashoutResult(result)
	return result, cause
}
