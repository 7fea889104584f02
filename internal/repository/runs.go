package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmelnik/solscope/internal/models"
)

// RunRepo persists analysis runs and the ledgers they produced. Each run
// writes a fresh set of position and transfer rows; nothing is updated in
// place.
type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// SaveRun stores a run and its full ledger in one transaction and returns
// the generated run id.
func (r *RunRepo) SaveRun(ctx context.Context, run *models.AnalysisRun, ledger *models.Ledger) (string, error) {
	id := uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO analysis_runs
		 (id, wallet, started_at, finished_at, tx_count, event_count,
		  min_event_value, stitch_window_seconds,
		  total_deposited, total_withdrawn, total_rewards, realized_pnl, sol_price_usd)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		id, run.Wallet, run.StartedAt, run.FinishedAt, run.TxCount, run.EventCount,
		run.MinEventValue, run.StitchWindowS,
		ledger.TotalDeposited, ledger.TotalWithdrawn, ledger.TotalRewards,
		ledger.RealizedPnl, run.SolPriceUSD,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, pos := range ledger.Positions {
		if err := insertPosition(ctx, tx, id, pos); err != nil {
			return "", err
		}
	}
	for _, tr := range ledger.Transfers {
		if err := insertTransfer(ctx, tx, id, tr); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func insertPosition(ctx context.Context, tx pgx.Tx, runID string, pos models.TokenPosition) error {
	var posID int64
	err := tx.QueryRow(ctx,
		`INSERT INTO token_positions
		 (run_id, asset_id, symbol, total_spent, total_received,
		  total_acquired, total_disposed, remaining_quantity,
		  realized_pnl, pnl_percent, is_fully_closed,
		  first_acquisition_at, last_activity_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 RETURNING id`,
		runID, pos.AssetID, pos.Symbol, pos.TotalSpent, pos.TotalReceived,
		pos.TotalAcquired, pos.TotalDisposed, pos.RemainingQuantity,
		pos.RealizedPnl, pos.PnlPercent, pos.IsFullyClosed,
		pos.FirstAcquisitionDate, pos.LastActivityDate,
	).Scan(&posID)
	if err != nil {
		return fmt.Errorf("insert position %s: %w", pos.AssetID, err)
	}

	for _, leg := range pos.Legs {
		_, err := tx.Exec(ctx,
			`INSERT INTO trade_legs
			 (position_id, tx_id, timestamp, side, native_amount, asset_amount, running_balance_after)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			posID, leg.TxID, leg.Timestamp, string(leg.Side),
			leg.NativeAmount, leg.AssetAmount, leg.RunningNativeBalanceAfter,
		)
		if err != nil {
			return fmt.Errorf("insert leg %s: %w", leg.TxID, err)
		}
	}
	return nil
}

func insertTransfer(ctx context.Context, tx pgx.Tx, runID string, tr models.NativeTransfer) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO native_transfers
		 (run_id, tx_id, timestamp, direction, amount, running_balance_after, label, counterparty)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		runID, tr.TxID, tr.Timestamp, string(tr.Direction),
		tr.Amount, tr.RunningNativeBalanceAfter, tr.Label, tr.Counterparty,
	)
	if err != nil {
		return fmt.Errorf("insert transfer %s: %w", tr.TxID, err)
	}
	return nil
}

// GetRun returns one run header by id, or nil when unknown.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, wallet, started_at, finished_at, tx_count, event_count,
		        min_event_value, stitch_window_seconds,
		        total_deposited, total_withdrawn, total_rewards, realized_pnl,
		        sol_price_usd, created_at
		 FROM analysis_runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// LatestRun returns the most recent run for a wallet, or nil.
func (r *RunRepo) LatestRun(ctx context.Context, wallet string) (*models.AnalysisRun, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, wallet, started_at, finished_at, tx_count, event_count,
		        min_event_value, stitch_window_seconds,
		        total_deposited, total_withdrawn, total_rewards, realized_pnl,
		        sol_price_usd, created_at
		 FROM analysis_runs WHERE wallet = $1
		 ORDER BY created_at DESC LIMIT 1`, wallet)

	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetLedger reassembles the persisted ledger for a run.
func (r *RunRepo) GetLedger(ctx context.Context, runID string) (*models.Ledger, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	ledger := &models.Ledger{
		Wallet:         run.Wallet,
		TotalDeposited: run.TotalDeposited,
		TotalWithdrawn: run.TotalWithdrawn,
		TotalRewards:   run.TotalRewards,
		RealizedPnl:    run.RealizedPnl,
	}

	ledger.Positions, err = r.positions(ctx, runID)
	if err != nil {
		return nil, err
	}
	ledger.Transfers, err = r.transfers(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func (r *RunRepo) positions(ctx context.Context, runID string) ([]models.TokenPosition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, asset_id, symbol, total_spent, total_received,
		        total_acquired, total_disposed, remaining_quantity,
		        realized_pnl, pnl_percent, is_fully_closed,
		        first_acquisition_at, last_activity_at
		 FROM token_positions WHERE run_id = $1
		 ORDER BY last_activity_at DESC NULLS LAST`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]models.TokenPosition, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var pos models.TokenPosition
		var posID int64
		if err := rows.Scan(
			&posID, &pos.AssetID, &pos.Symbol, &pos.TotalSpent, &pos.TotalReceived,
			&pos.TotalAcquired, &pos.TotalDisposed, &pos.RemainingQuantity,
			&pos.RealizedPnl, &pos.PnlPercent, &pos.IsFullyClosed,
			&pos.FirstAcquisitionDate, &pos.LastActivityDate,
		); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
		ids = append(ids, posID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, posID := range ids {
		legs, err := r.legs(ctx, posID)
		if err != nil {
			return nil, err
		}
		positions[i].Legs = legs
	}
	return positions, nil
}

func (r *RunRepo) legs(ctx context.Context, positionID int64) ([]models.TradeLeg, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tx_id, timestamp, side, native_amount, asset_amount, running_balance_after
		 FROM trade_legs WHERE position_id = $1
		 ORDER BY timestamp ASC`, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []models.TradeLeg
	for rows.Next() {
		var leg models.TradeLeg
		var side string
		if err := rows.Scan(
			&leg.TxID, &leg.Timestamp, &side,
			&leg.NativeAmount, &leg.AssetAmount, &leg.RunningNativeBalanceAfter,
		); err != nil {
			return nil, err
		}
		leg.Side = models.TradeSide(side)
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

func (r *RunRepo) transfers(ctx context.Context, runID string) ([]models.NativeTransfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tx_id, timestamp, direction, amount, running_balance_after, label, counterparty
		 FROM native_transfers WHERE run_id = $1
		 ORDER BY timestamp DESC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]models.NativeTransfer, 0)
	for rows.Next() {
		var tr models.NativeTransfer
		var direction string
		if err := rows.Scan(
			&tr.TxID, &tr.Timestamp, &direction, &tr.Amount,
			&tr.RunningNativeBalanceAfter, &tr.Label, &tr.Counterparty,
		); err != nil {
			return nil, err
		}
		tr.Direction = models.TransferDirection(direction)
		transfers = append(transfers, tr)
	}
	return transfers, rows.Err()
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	err := row.Scan(
		&run.ID, &run.Wallet, &run.StartedAt, &run.FinishedAt,
		&run.TxCount, &run.EventCount,
		&run.MinEventValue, &run.StitchWindowS,
		&run.TotalDeposited, &run.TotalWithdrawn, &run.TotalRewards,
		&run.RealizedPnl, &run.SolPriceUSD, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
