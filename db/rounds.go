package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aviatorServer/game"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RoundRecord is a persisted round. Seed stays empty until the round crashes.
type RoundRecord struct {
	RoundID         string     `json:"roundId"`
	PublicHash      string     `json:"publicHash"`
	Seed            string     `json:"seed,omitempty"`
	Status          string     `json:"status"`
	FinalMultiplier *float64   `json:"finalMultiplier,omitempty"`
	Forced          bool       `json:"forced"`
	RTPPercent      *float64   `json:"rtp,omitempty"`
	MinCrash        *float64   `json:"minCrash,omitempty"`
	MaxCrash        *float64   `json:"maxCrash,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// RoundStore persists round lifecycle events. Create and finish may arrive
// in either order; both are upserts.
type RoundStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewRoundStore(p *Postgres) *RoundStore {
	return &RoundStore{pool: p.Pool, logger: p.logger.Named("rounds")}
}

func (s *RoundStore) CreateRound(ctx context.Context, roundID, publicHash string) error {
	query := `
		INSERT INTO game_rounds (round_id, public_hash)
		VALUES ($1, $2)
		ON CONFLICT (round_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, roundID, publicHash); err != nil {
		return fmt.Errorf("failed to create round %s: %w", roundID, err)
	}
	return nil
}

// FinishRound stores the outcome and marks every bet that can no longer win
// as lost. Bets whose auto-cashout threshold was reached stay active for the
// settlement pass.
func (s *RoundStore) FinishRound(ctx context.Context, r game.FinishedRound) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin finish tx: %w", err)
	}
	defer tx.Rollback(ctx)

	roundQuery := `
		INSERT INTO game_rounds
		(round_id, public_hash, seed, status, final_multiplier, forced, rtp, min_crash, max_crash, finished_at)
		VALUES ($1, $2, $3, 'crashed', $4, $5, $6, $7, $8, $9)
		ON CONFLICT (round_id) DO UPDATE
		SET seed = EXCLUDED.seed,
		    status = 'crashed',
		    final_multiplier = EXCLUDED.final_multiplier,
		    forced = EXCLUDED.forced,
		    rtp = EXCLUDED.rtp,
		    min_crash = EXCLUDED.min_crash,
		    max_crash = EXCLUDED.max_crash,
		    finished_at = EXCLUDED.finished_at
	`
	if _, err := tx.Exec(ctx, roundQuery,
		r.RoundID, r.PublicHash, r.Seed, r.FinalMultiplier, r.Forced,
		r.RTPPercent, r.MinCrash, r.MaxCrash, r.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to finish round %s: %w", r.RoundID, err)
	}

	lostQuery := `
		UPDATE bets
		SET status = 'lost',
		    payout_amount = 0
		WHERE round_id = $1 AND status = 'active'
		  AND (auto_cashout IS NULL OR auto_cashout > $2)
	`
	result, err := tx.Exec(ctx, lostQuery, r.RoundID, r.FinalMultiplier)
	if err != nil {
		return fmt.Errorf("failed to mark bets as lost: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit finish tx: %w", err)
	}
	s.logger.Info("🔴 Round finished",
		zap.String("roundId", r.RoundID),
		zap.Float64("multiplier", r.FinalMultiplier),
		zap.Int64("lostBets", result.RowsAffected()))
	return nil
}

// GetRound returns nil when the round is unknown.
func (s *RoundStore) GetRound(ctx context.Context, roundID string) (*RoundRecord, error) {
	query := `
		SELECT round_id, public_hash, COALESCE(seed, ''), status, final_multiplier,
		       forced, rtp, min_crash, max_crash, created_at, finished_at
		FROM game_rounds
		WHERE round_id = $1
	`
	var r RoundRecord
	err := s.pool.QueryRow(ctx, query, roundID).Scan(
		&r.RoundID,
		&r.PublicHash,
		&r.Seed,
		&r.Status,
		&r.FinalMultiplier,
		&r.Forced,
		&r.RTPPercent,
		&r.MinCrash,
		&r.MaxCrash,
		&r.CreatedAt,
		&r.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return &r, nil
}

// RecentHistory returns the latest finished rounds, newest first.
func (s *RoundStore) RecentHistory(ctx context.Context, limit int) ([]game.HistoryEntry, error) {
	query := `
		SELECT round_id, final_multiplier, finished_at
		FROM game_rounds
		WHERE status = 'crashed' AND finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query round history: %w", err)
	}
	defer rows.Close()

	var entries []game.HistoryEntry
	for rows.Next() {
		var (
			roundID    string
			multiplier float64
			finishedAt time.Time
		)
		if err := rows.Scan(&roundID, &multiplier, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, game.NewHistoryEntry(roundID, multiplier, finishedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}
