package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmelnik/solscope/internal/models"
)

// WalletRepo manages the set of wallets the scheduler re-analyzes.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Track registers a wallet for periodic analysis. Re-tracking an existing
// wallet only updates its label.
func (r *WalletRepo) Track(ctx context.Context, address string, label *string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tracked_wallets (address, label)
		 VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET label = EXCLUDED.label`,
		address, label)
	if err != nil {
		return fmt.Errorf("track wallet %s: %w", address, err)
	}
	return nil
}

// Untrack removes a wallet from the schedule. Past runs are kept.
func (r *WalletRepo) Untrack(ctx context.Context, address string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM tracked_wallets WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("untrack wallet %s: %w", address, err)
	}
	return nil
}

// List returns every tracked wallet, oldest first.
func (r *WalletRepo) List(ctx context.Context) ([]models.TrackedWallet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT address, label, added_at, last_run_at, last_run_id
		 FROM tracked_wallets ORDER BY added_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWallets(rows)
}

// Get returns one tracked wallet, or nil when unknown.
func (r *WalletRepo) Get(ctx context.Context, address string) (*models.TrackedWallet, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT address, label, added_at, last_run_at, last_run_id
		 FROM tracked_wallets WHERE address = $1`, address)

	w, err := scanWallet(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// MarkRun records the latest completed run for a wallet.
func (r *WalletRepo) MarkRun(ctx context.Context, address, runID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tracked_wallets SET last_run_at = now(), last_run_id = $2
		 WHERE address = $1`, address, runID)
	if err != nil {
		return fmt.Errorf("mark run for %s: %w", address, err)
	}
	return nil
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectWallets(rows rowsIter) ([]models.TrackedWallet, error) {
	wallets := make([]models.TrackedWallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func scanWallet(row scannable) (models.TrackedWallet, error) {
	var w models.TrackedWallet
	err := row.Scan(&w.Address, &w.Label, &w.AddedAt, &w.LastRunAt, &w.LastRunID)
	return w, err
}
