package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"aviatorServer/game"
)

func TestPlaceBet(t *testing.T) {
	h := newHarness(game.DefaultSettings())
	cmds := NewCommands(h.machine, h.ledger, nil)
	ctx := context.Background()
	round := h.machine.Round().RoundID

	res, err := cmds.PlaceBet(ctx, game.BetRequest{RoundID: round, UserID: "alice", Amount: 10})
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if res.Status != game.BetAccepted || res.TicketID == "" || res.Snapshot.Balance != 90 {
		t.Errorf("unexpected result: %+v", res)
	}

	cases := []struct {
		name string
		req  game.BetRequest
		want error
	}{
		{"TooSmall", game.BetRequest{UserID: "alice", Amount: 0.1}, ErrInvalidBet},
		{"TooLarge", game.BetRequest{UserID: "alice", Amount: 1000}, ErrInvalidBet},
		{"MissingUser", game.BetRequest{Amount: 10}, ErrInvalidBet},
		{"BadAutoCashout", game.BetRequest{UserID: "alice", Amount: 10, AutoCashout: ptr(0.5)}, ErrInvalidBet},
		{"WrongRound", game.BetRequest{RoundID: "stale", UserID: "alice", Amount: 10}, ErrRoundMismatch},
		{"Insufficient", game.BetRequest{UserID: "alice", Amount: 200}, game.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := cmds.PlaceBet(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if res.Status != game.BetRejected || res.Reason == "" {
				t.Errorf("expected rejection with reason, got %+v", res)
			}
		})
	}

	h.tick(4 * time.Second)
	if _, err := cmds.PlaceBet(ctx, game.BetRequest{UserID: "alice", Amount: 10}); !errors.Is(err, ErrBettingClosed) {
		t.Errorf("expected ErrBettingClosed once flying, got %v", err)
	}

	h.pool.Wait()
	if n := len(h.publisher.Bets()); n != 8 {
		t.Errorf("expected every attempt to be published, got %d", n)
	}
}

func TestCashout(t *testing.T) {
	h := newHarness(game.DefaultSettings())
	cmds := NewCommands(h.machine, h.ledger, nil)
	ctx := context.Background()

	bet, err := cmds.PlaceBet(ctx, game.BetRequest{UserID: "alice", Amount: 10})
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	req := game.CashoutRequest{TicketID: bet.TicketID, UserID: "alice"}

	if _, err := cmds.Cashout(ctx, req); !errors.Is(err, ErrNotFlying) {
		t.Errorf("expected ErrNotFlying before takeoff, got %v", err)
	}

	h.tick(4 * time.Second)
	h.tick(257 * time.Millisecond)
	res, err := cmds.Cashout(ctx, req)
	if err != nil {
		t.Fatalf("Cashout failed: %v", err)
	}
	if res.Status != game.CashoutCredited || res.CashoutMultiplier != 1.25 || res.CreditedAmount != 12.5 {
		t.Errorf("expected 1.25x truncated payout, got %+v", res)
	}

	if _, err := cmds.Cashout(ctx, req); !errors.Is(err, game.ErrAlreadySettled) {
		t.Errorf("expected ErrAlreadySettled on repeat, got %v", err)
	}
}
