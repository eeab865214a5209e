package engine

import (
	"context"
	"errors"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/shopspring/decimal"
)

// RoundService persists round lifecycle events. Calls are fire-and-forget
// from the engine's point of view and may arrive out of order.
type RoundService interface {
	CreateRound(ctx context.Context, roundID, publicHash string) error
	FinishRound(ctx context.Context, round game.FinishedRound) error
}

// AutoCashoutLedger finds and settles tickets whose auto-cashout threshold
// has been reached. Settle must be a conditional, exactly-once operation
// keyed by ticket id and return game.ErrAlreadySettled otherwise.
type AutoCashoutLedger interface {
	ListCandidates(ctx context.Context, roundID string, multiplier decimal.Decimal, limit int) ([]game.AutoCashoutCandidate, error)
	Settle(ctx context.Context, ticketID, userID, roundID string, multiplier decimal.Decimal) (game.Settlement, error)
}

// BetLedger funds wagers.
type BetLedger interface {
	PlaceBet(ctx context.Context, ticketID string, bet game.BetRequest) (game.WalletSnapshot, error)
	WalletSnapshot(ctx context.Context, userID string) (game.WalletSnapshot, error)
}

// SettingsStore persists operator settings across restarts.
type SettingsStore interface {
	Load(ctx context.Context) (config.SettingsOverrides, error)
	ClearNextCrashTarget(ctx context.Context) error
	SaveRTP(ctx context.Context, rtp float64) error
	SaveNextCrashTarget(ctx context.Context, target float64) error
	SavePaused(ctx context.Context, paused bool) error
}

// Publisher delivers events to the realtime transport.
type Publisher interface {
	PublishState(ctx context.Context, payload game.StatePayload) error
	PublishHistory(ctx context.Context, payload game.HistoryPayload) error
	PublishBetResult(ctx context.Context, result game.BetResult) error
	PublishCashoutResult(ctx context.Context, result game.CashoutResult) error
}

// RoundServices fans every call out to each service and joins the errors.
type RoundServices []RoundService

func (rs RoundServices) CreateRound(ctx context.Context, roundID, publicHash string) error {
	var errs []error
	for _, s := range rs {
		if err := s.CreateRound(ctx, roundID, publicHash); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (rs RoundServices) FinishRound(ctx context.Context, round game.FinishedRound) error {
	var errs []error
	for _, s := range rs {
		if err := s.FinishRound(ctx, round); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
