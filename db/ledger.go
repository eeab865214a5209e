package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aviatorServer/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger funds bets and settles tickets against the wallets table. Every
// settlement is a conditional update so a ticket pays at most once.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewLedger(p *Postgres) *Ledger {
	return &Ledger{pool: p.Pool, logger: p.logger.Named("ledger")}
}

/* =========================
   BETS
========================= */

// PlaceBet debits the wallet and records an active ticket in one transaction.
func (l *Ledger) PlaceBet(ctx context.Context, ticketID string, bet game.BetRequest) (game.WalletSnapshot, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return game.WalletSnapshot{}, fmt.Errorf("failed to begin bet tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var snap game.WalletSnapshot
	debit := `
		UPDATE wallets
		SET balance = balance - $2,
		    pnl = pnl - $2,
		    updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance, updated_at
	`
	err = tx.QueryRow(ctx, debit, bet.UserID, bet.Amount).Scan(&snap.Balance, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		snap, err := l.WalletSnapshot(ctx, bet.UserID)
		if err != nil {
			return snap, err
		}
		return snap, game.ErrInsufficientFunds
	}
	if err != nil {
		return game.WalletSnapshot{}, fmt.Errorf("failed to debit wallet: %w", err)
	}

	insert := `
		INSERT INTO bets (ticket_id, round_id, user_id, amount, auto_cashout)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insert, ticketID, bet.RoundID, bet.UserID, bet.Amount, bet.AutoCashout); err != nil {
		return game.WalletSnapshot{}, fmt.Errorf("failed to store bet: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return game.WalletSnapshot{}, fmt.Errorf("failed to commit bet tx: %w", err)
	}

	l.logger.Debug("✅ Stored bet",
		zap.String("ticketId", ticketID),
		zap.String("userId", bet.UserID),
		zap.Float64("amount", bet.Amount))
	return snap, nil
}

// WalletSnapshot returns the current balance.
func (l *Ledger) WalletSnapshot(ctx context.Context, userID string) (game.WalletSnapshot, error) {
	var snap game.WalletSnapshot
	err := l.pool.QueryRow(ctx, `SELECT balance, updated_at FROM wallets WHERE user_id = $1`, userID).
		Scan(&snap.Balance, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, game.ErrWalletNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to get wallet: %w", err)
	}
	return snap, nil
}

/* =========================
   SETTLEMENT
========================= */

func (l *Ledger) ListCandidates(ctx context.Context, roundID string, multiplier decimal.Decimal, limit int) ([]game.AutoCashoutCandidate, error) {
	query := `
		SELECT ticket_id, user_id, round_id, auto_cashout
		FROM bets
		WHERE round_id = $1 AND status = 'active'
		  AND auto_cashout IS NOT NULL AND auto_cashout <= $2
		ORDER BY auto_cashout ASC
		LIMIT $3
	`
	rows, err := l.pool.Query(ctx, query, roundID, multiplier.InexactFloat64(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var out []game.AutoCashoutCandidate
	for rows.Next() {
		var c game.AutoCashoutCandidate
		if err := rows.Scan(&c.TicketID, &c.UserID, &c.RoundID, &c.ThresholdMultiplier); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Settle cashes the ticket out at multiplier and credits the wallet. A ticket
// that is no longer active yields game.ErrAlreadySettled.
func (l *Ledger) Settle(ctx context.Context, ticketID, userID, roundID string, multiplier decimal.Decimal) (game.Settlement, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return game.Settlement{}, fmt.Errorf("failed to begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m := multiplier.InexactFloat64()
	out := game.Settlement{TicketID: ticketID, PayoutMultiplier: m}

	cashout := `
		UPDATE bets
		SET status = 'cashed_out',
		    cashout_multiplier = $1,
		    payout_amount = amount * $1,
		    cashed_out_at = NOW()
		WHERE ticket_id = $2 AND user_id = $3 AND round_id = $4
		  AND status = 'active' AND cashed_out_at IS NULL
		RETURNING payout_amount
	`
	err = tx.QueryRow(ctx, cashout, m, ticketID, userID, roundID).Scan(&out.CreditedAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Settlement{}, l.settleMiss(ctx, tx, ticketID)
	}
	if err != nil {
		return game.Settlement{}, fmt.Errorf("failed to update bet: %w", err)
	}

	credit := `
		UPDATE wallets
		SET balance = balance + $2,
		    pnl = pnl + $2,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance, updated_at
	`
	if err := tx.QueryRow(ctx, credit, userID, out.CreditedAmount).Scan(&out.Balance, &out.UpdatedAt); err != nil {
		return game.Settlement{}, fmt.Errorf("failed to credit wallet: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return game.Settlement{}, fmt.Errorf("failed to commit settle tx: %w", err)
	}

	l.logger.Debug("✅ Settled ticket",
		zap.String("ticketId", ticketID),
		zap.Float64("multiplier", m),
		zap.Float64("payout", out.CreditedAmount))
	return out, nil
}

func (l *Ledger) settleMiss(ctx context.Context, tx pgx.Tx, ticketID string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM bets WHERE ticket_id = $1`, ticketID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read bet status: %w", err)
	}
	return fmt.Errorf("%w: status %s", game.ErrAlreadySettled, status)
}

/* =========================
   WALLET PNL
========================= */

// WalletPnLRecord is a wallet's cumulative PnL and rank.
type WalletPnLRecord struct {
	UserID    string    `json:"userId"`
	PnL       float64   `json:"pnl"`
	Rank      int       `json:"rank"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Leaderboard returns the top wallets by PnL.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]WalletPnLRecord, error) {
	query := `
		SELECT user_id, pnl, ROW_NUMBER() OVER (ORDER BY pnl DESC) AS rank, updated_at
		FROM wallets
		ORDER BY pnl DESC
		LIMIT $1
	`
	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []WalletPnLRecord
	for rows.Next() {
		var r WalletPnLRecord
		if err := rows.Scan(&r.UserID, &r.PnL, &r.Rank, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Rank returns nil when the wallet is unknown.
func (l *Ledger) Rank(ctx context.Context, userID string) (*WalletPnLRecord, error) {
	query := `
		SELECT user_id, pnl, rank, updated_at FROM (
			SELECT user_id, pnl, updated_at,
			       ROW_NUMBER() OVER (ORDER BY pnl DESC) AS rank
			FROM wallets
		) ranked
		WHERE user_id = $1
	`
	var r WalletPnLRecord
	err := l.pool.QueryRow(ctx, query, userID).Scan(&r.UserID, &r.PnL, &r.Rank, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet rank: %w", err)
	}
	return &r, nil
}
