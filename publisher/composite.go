package publisher

import (
	"context"
	"errors"

	"aviatorServer/engine"
	"aviatorServer/game"
)

// Envelope types.
const (
	TypeState         = "state"
	TypeHistory       = "history"
	TypeBetResult     = "bet_result"
	TypeCashoutResult = "cashout_result"
)

// Composite delivers every event to each publisher and joins their errors.
// One failing transport does not stop delivery to the others.
type Composite []engine.Publisher

func (c Composite) PublishState(ctx context.Context, payload game.StatePayload) error {
	return c.each(func(p engine.Publisher) error { return p.PublishState(ctx, payload) })
}

func (c Composite) PublishHistory(ctx context.Context, payload game.HistoryPayload) error {
	return c.each(func(p engine.Publisher) error { return p.PublishHistory(ctx, payload) })
}

func (c Composite) PublishBetResult(ctx context.Context, result game.BetResult) error {
	return c.each(func(p engine.Publisher) error { return p.PublishBetResult(ctx, result) })
}

func (c Composite) PublishCashoutResult(ctx context.Context, result game.CashoutResult) error {
	return c.each(func(p engine.Publisher) error { return p.PublishCashoutResult(ctx, result) })
}

func (c Composite) each(fn func(engine.Publisher) error) error {
	var errs []error
	for _, p := range c {
		if p == nil {
			continue
		}
		if err := fn(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
