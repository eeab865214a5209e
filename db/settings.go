package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aviatorServer/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SettingsStore keeps engine settings overrides in a single JSONB row.
type SettingsStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewSettingsStore(p *Postgres) *SettingsStore {
	return &SettingsStore{pool: p.Pool, logger: p.logger.Named("settings")}
}

func (s *SettingsStore) Load(ctx context.Context) (config.SettingsOverrides, error) {
	var (
		out config.SettingsOverrides
		raw []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT overrides FROM engine_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to load engine settings: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal engine settings: %w", err)
	}
	return out, nil
}

func (s *SettingsStore) ClearNextCrashTarget(ctx context.Context) error {
	query := `
		UPDATE engine_settings
		SET overrides = overrides - 'nextCrashTarget',
		    updated_at = NOW()
		WHERE id = 1
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to clear next crash target: %w", err)
	}
	return nil
}

func (s *SettingsStore) SaveRTP(ctx context.Context, rtp float64) error {
	return s.merge(ctx, config.SettingsOverrides{RTPPercent: &rtp})
}

func (s *SettingsStore) SaveNextCrashTarget(ctx context.Context, target float64) error {
	return s.merge(ctx, config.SettingsOverrides{NextCrashTarget: &target})
}

func (s *SettingsStore) SavePaused(ctx context.Context, paused bool) error {
	return s.merge(ctx, config.SettingsOverrides{Paused: &paused})
}

// merge writes the non-nil fields of o over the stored row.
func (s *SettingsStore) merge(ctx context.Context, o config.SettingsOverrides) error {
	patch, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal settings patch: %w", err)
	}
	query := `
		INSERT INTO engine_settings (id, overrides)
		VALUES (1, $1::jsonb)
		ON CONFLICT (id) DO UPDATE
		SET overrides = engine_settings.overrides || EXCLUDED.overrides,
		    updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, string(patch)); err != nil {
		return fmt.Errorf("failed to save engine settings: %w", err)
	}
	s.logger.Debug("💾 Saved engine settings", zap.ByteString("patch", patch))
	return nil
}
