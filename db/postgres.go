package db

import (
	"context"
	"fmt"

	"aviatorServer/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres owns the connection pool shared by the round, ledger and settings stores.
type Postgres struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// ConnectPostgres opens the pool, pings it and bootstraps the schema.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("✅ PostgreSQL connected successfully")

	p := &Postgres{Pool: pool, logger: logger}
	if err := p.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.logger.Info("🔌 Closing PostgreSQL connection...")
		p.Pool.Close()
	}
}

/* =========================
   SCHEMA
========================= */

const schema = `
CREATE TABLE IF NOT EXISTS game_rounds (
	round_id TEXT PRIMARY KEY,
	public_hash TEXT NOT NULL,
	seed TEXT,
	status TEXT NOT NULL DEFAULT 'open',
	final_multiplier DOUBLE PRECISION,
	forced BOOLEAN NOT NULL DEFAULT FALSE,
	rtp DOUBLE PRECISION,
	min_crash DOUBLE PRECISION,
	max_crash DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_game_rounds_finished_at ON game_rounds(finished_at DESC);

CREATE TABLE IF NOT EXISTS wallets (
	user_id TEXT PRIMARY KEY,
	balance DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (balance >= 0),
	pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wallets_pnl ON wallets(pnl DESC);

CREATE TABLE IF NOT EXISTS bets (
	ticket_id TEXT PRIMARY KEY,
	round_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES wallets(user_id),
	amount DOUBLE PRECISION NOT NULL,
	auto_cashout DOUBLE PRECISION,
	status TEXT NOT NULL DEFAULT 'active',
	cashout_multiplier DOUBLE PRECISION,
	payout_amount DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	cashed_out_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_bets_round_active ON bets(round_id, auto_cashout) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS engine_settings (
	id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	overrides JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// InitSchema creates the tables if they don't exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	p.logger.Info("📋 Initializing database schema...")
	if _, err := p.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	p.logger.Info("✅ Database schema initialized")
	return nil
}

/* =========================
   HEALTH CHECK
========================= */

func (p *Postgres) HealthCheck(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("PostgreSQL connection pool not initialized")
	}
	return p.Pool.Ping(ctx)
}
