package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmelnik/solscope/internal/db"
	"github.com/dmelnik/solscope/internal/models"
	"github.com/dmelnik/solscope/internal/repository"
	"github.com/dmelnik/solscope/internal/testutil"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func floatPtr(f float64) *float64    { return &f }
func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func sampleLedger(now time.Time) *models.Ledger {
	return &models.Ledger{
		Wallet:         testWallet,
		TotalDeposited: 10.0,
		TotalWithdrawn: 2.5,
		TotalRewards:   0.2,
		RealizedPnl:    1.0,
		Positions: []models.TokenPosition{
			{
				AssetID:           "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				Symbol:            "USDC",
				TotalSpent:        2.0,
				TotalReceived:     3.0,
				TotalAcquired:     1000,
				TotalDisposed:     1000,
				RemainingQuantity: 0,
				RealizedPnl:       1.0,
				PnlPercent:        50,
				IsFullyClosed:     true,
				Legs: []models.TradeLeg{
					{
						TxID: "sigBuy", Timestamp: now.Add(-2 * time.Hour),
						Side: models.SideBuy, NativeAmount: 2.0, AssetAmount: 1000,
						RunningNativeBalanceAfter: 8.0,
					},
					{
						TxID: "sigSell", Timestamp: now.Add(-1 * time.Hour),
						Side: models.SideSell, NativeAmount: 3.0, AssetAmount: 1000,
						RunningNativeBalanceAfter: 11.0,
					},
				},
				FirstAcquisitionDate: timePtr(now.Add(-2 * time.Hour)),
				LastActivityDate:     timePtr(now.Add(-1 * time.Hour)),
			},
		},
		Transfers: []models.NativeTransfer{
			{
				TxID: "sigDep", Timestamp: now.Add(-3 * time.Hour),
				Direction: models.DirectionDeposit, Amount: 10.0,
				RunningNativeBalanceAfter: 10.0,
			},
			{
				TxID: "sigRew", Timestamp: now.Add(-30 * time.Minute),
				Direction: models.DirectionReward, Amount: 0.2,
				RunningNativeBalanceAfter: 11.2,
				Label:                     strPtr("reward"),
				Counterparty:              strPtr("FaucetAddr111111111111111111111111111111111"),
			},
		},
	}
}

func TestRunRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	ctx := context.Background()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	repo := repository.NewRunRepo(pool)
	now := time.Now().UTC().Truncate(time.Second)
	ledger := sampleLedger(now)

	run := &models.AnalysisRun{
		Wallet:         testWallet,
		StartedAt:      now.Add(-5 * time.Second),
		FinishedAt:     now,
		TxCount:        42,
		EventCount:     5,
		MinEventValue:  0.01,
		StitchWindowS:  10,
		TotalDeposited: ledger.TotalDeposited,
		TotalWithdrawn: ledger.TotalWithdrawn,
		TotalRewards:   ledger.TotalRewards,
		RealizedPnl:    ledger.RealizedPnl,
		SolPriceUSD:    floatPtr(142.55),
	}

	// SaveRun
	id, err := repo.SaveRun(ctx, run, ledger)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty run id")
	}
	t.Logf("Saved run %s", id)

	// GetRun
	got, err := repo.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run")
	}
	if got.Wallet != testWallet || got.TxCount != 42 {
		t.Fatalf("run mismatch: %+v", got)
	}
	if got.SolPriceUSD == nil || *got.SolPriceUSD != 142.55 {
		t.Fatalf("sol price mismatch: %v", got.SolPriceUSD)
	}

	// LatestRun
	latest, err := repo.LatestRun(ctx, testWallet)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil || latest.ID != id {
		t.Fatalf("expected latest run %s, got %+v", id, latest)
	}

	// GetLedger round-trip
	stored, err := repo.GetLedger(ctx, id)
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if stored == nil {
		t.Fatal("expected ledger")
	}
	if len(stored.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(stored.Positions))
	}
	pos := stored.Positions[0]
	if pos.RealizedPnl != 1.0 || !pos.IsFullyClosed {
		t.Fatalf("position mismatch: %+v", pos)
	}
	if len(pos.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(pos.Legs))
	}
	if pos.Legs[0].Side != models.SideBuy || pos.Legs[1].Side != models.SideSell {
		t.Fatalf("legs out of order: %+v", pos.Legs)
	}
	if len(stored.Transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(stored.Transfers))
	}
	// transfers come back newest first
	if stored.Transfers[0].Direction != models.DirectionReward {
		t.Fatalf("expected reward first, got %s", stored.Transfers[0].Direction)
	}

	// unknown id
	missing, err := repo.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("GetRun missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown run")
	}
}

func TestWalletRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	ctx := context.Background()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	repo := repository.NewWalletRepo(pool)
	addr := "TrackMe1111111111111111111111111111111111111"

	// Track is idempotent and updates the label
	if err := repo.Track(ctx, addr, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := repo.Track(ctx, addr, strPtr("test wallet")); err != nil {
		t.Fatalf("Track again: %v", err)
	}

	got, err := repo.Get(ctx, addr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected wallet")
	}
	if got.Label == nil || *got.Label != "test wallet" {
		t.Fatalf("label mismatch: %v", got.Label)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, w := range list {
		if w.Address == addr {
			found = true
		}
	}
	if !found {
		t.Fatalf("tracked wallet missing from list of %d", len(list))
	}

	if err := repo.MarkRun(ctx, addr, "11111111-1111-1111-1111-111111111111"); err != nil {
		t.Fatalf("MarkRun: %v", err)
	}
	got, err = repo.Get(ctx, addr)
	if err != nil {
		t.Fatalf("Get after MarkRun: %v", err)
	}
	if got.LastRunAt == nil || got.LastRunID == nil {
		t.Fatalf("expected last run recorded: %+v", got)
	}

	if err := repo.Untrack(ctx, addr); err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	gone, err := repo.Get(ctx, addr)
	if err != nil {
		t.Fatalf("Get after Untrack: %v", err)
	}
	if gone != nil {
		t.Fatal("expected wallet removed")
	}
}
