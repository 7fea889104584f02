package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id UUID PRIMARY KEY,
		wallet TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		tx_count INT NOT NULL,
		event_count INT NOT NULL,
		min_event_value DOUBLE PRECISION NOT NULL,
		stitch_window_seconds INT NOT NULL,
		total_deposited DOUBLE PRECISION NOT NULL,
		total_withdrawn DOUBLE PRECISION NOT NULL,
		total_rewards DOUBLE PRECISION NOT NULL,
		realized_pnl DOUBLE PRECISION NOT NULL,
		sol_price_usd DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_wallet_created
		ON analysis_runs (wallet, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS token_positions (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		asset_id TEXT NOT NULL,
		symbol TEXT,
		total_spent DOUBLE PRECISION NOT NULL,
		total_received DOUBLE PRECISION NOT NULL,
		total_acquired DOUBLE PRECISION NOT NULL,
		total_disposed DOUBLE PRECISION NOT NULL,
		remaining_quantity DOUBLE PRECISION NOT NULL,
		realized_pnl DOUBLE PRECISION NOT NULL,
		pnl_percent DOUBLE PRECISION NOT NULL,
		is_fully_closed BOOLEAN NOT NULL,
		first_acquisition_at TIMESTAMPTZ,
		last_activity_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_run ON token_positions (run_id)`,
	`CREATE TABLE IF NOT EXISTS trade_legs (
		id BIGSERIAL PRIMARY KEY,
		position_id BIGINT NOT NULL REFERENCES token_positions(id) ON DELETE CASCADE,
		tx_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		side TEXT NOT NULL,
		native_amount DOUBLE PRECISION NOT NULL,
		asset_amount DOUBLE PRECISION NOT NULL,
		running_balance_after DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS native_transfers (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		tx_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		direction TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		running_balance_after DOUBLE PRECISION NOT NULL,
		label TEXT,
		counterparty TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_run ON native_transfers (run_id)`,
	`CREATE TABLE IF NOT EXISTS tracked_wallets (
		address TEXT PRIMARY KEY,
		label TEXT,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_run_at TIMESTAMPTZ,
		last_run_id UUID
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
// Statements are idempotent, so running it on every startup is safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	fmt.Println("[DB] Schema up to date")
	return nil
}
