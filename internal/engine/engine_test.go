package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/dmelnik/solscope/internal/models"
	"github.com/dmelnik/solscope/internal/solana"
)

func TestNewRejectsInvalidOptions(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"missing wallet", Options{StitchWindow: 10 * time.Second}},
		{"negative threshold", Options{Wallet: testWallet, MinEventValue: -1, StitchWindow: 10 * time.Second}},
		{"nan threshold", Options{Wallet: testWallet, MinEventValue: math.NaN(), StitchWindow: 10 * time.Second}},
		{"window too small", Options{Wallet: testWallet, MinEventValue: 0.01, StitchWindow: 500 * time.Millisecond}},
		{"window too large", Options{Wallet: testWallet, MinEventValue: 0.01, StitchWindow: time.Hour}},
	}

	for _, tc := range cases {
		if _, err := New(tc.opts); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	eng, err := New(Options{Wallet: testWallet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.opts.MinEventValue != DefaultMinEventValue {
		t.Fatalf("expected default threshold, got %f", eng.opts.MinEventValue)
	}
	if eng.opts.StitchWindow != DefaultStitchWindow {
		t.Fatalf("expected default window, got %s", eng.opts.StitchWindow)
	}
}

// pipelineTxs builds a representative history: a deposit, a same-tx swap,
// a split swap (two transactions seconds apart), and a fee-dust transaction
// that the filter removes.
func pipelineTxs() []*solana.RawTransaction {
	deposit := simpleTx("dep", 1000, 0, 10_000_000_000) // +10 SOL

	buy := simpleTx("buy", 2000, 10_000_000_000, 8_000_000_000) // -2 SOL
	buy.Meta.PreTokenBalances = []solana.TokenBalance{tokenBal(1, mintX, testWallet, "0", 6)}
	buy.Meta.PostTokenBalances = []solana.TokenBalance{tokenBal(1, mintX, testWallet, "100000000", 6)}

	// Split swap: sell 100 X in one tx, the 3 SOL proceeds land 4s later.
	sellOut := simpleTx("sell-out", 3000, 8_000_000_000, 8_000_000_000)
	sellOut.Meta.PreTokenBalances = []solana.TokenBalance{tokenBal(1, mintX, testWallet, "100000000", 6)}
	sellOut.Meta.PostTokenBalances = []solana.TokenBalance{tokenBal(1, mintX, testWallet, "0", 6)}

	sellIn := simpleTx("sell-in", 3004, 8_000_000_000, 11_000_000_000) // +3 SOL

	dust := simpleTx("dust", 4000, 11_000_000_000, 10_999_000_000) // -0.001 SOL fee

	return []*solana.RawTransaction{deposit, buy, sellOut, sellIn, dust}
}

func TestAnalyzePipeline(t *testing.T) {
	eng, err := New(Options{Wallet: testWallet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := eng.Analyze(pipelineTxs())

	ledger := result.Ledger
	if len(ledger.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(ledger.Positions))
	}

	pos := ledger.Positions[0]
	if pos.AssetID != mintX {
		t.Fatalf("position asset mismatch: %s", pos.AssetID)
	}
	if pos.TotalSpent != 2.0 || pos.TotalReceived != 3.0 {
		t.Fatalf("spent/received mismatch: %.2f/%.2f", pos.TotalSpent, pos.TotalReceived)
	}
	if pos.RealizedPnl != 1.0 || pos.PnlPercent != 50.0 {
		t.Fatalf("pnl mismatch: %.2f (%.1f%%)", pos.RealizedPnl, pos.PnlPercent)
	}
	if !pos.IsFullyClosed {
		t.Fatal("position should be closed")
	}
	if len(pos.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(pos.Legs))
	}

	// The split sell must have been stitched: no leftover transfers beyond
	// the initial deposit, and the dust tx is filtered out entirely.
	if len(ledger.Transfers) != 1 {
		t.Fatalf("expected only the deposit transfer, got %d", len(ledger.Transfers))
	}
	if ledger.Transfers[0].Direction != models.DirectionDeposit {
		t.Fatalf("expected deposit, got %s", ledger.Transfers[0].Direction)
	}
	if ledger.TotalDeposited != 10.0 {
		t.Fatalf("expected 10 deposited, got %.2f", ledger.TotalDeposited)
	}

	// Running balance after the final leg: +10 -2 +3 = 11.
	var lastBalance float64
	var lastTS time.Time
	for _, leg := range pos.Legs {
		if leg.Timestamp.After(lastTS) {
			lastTS = leg.Timestamp
			lastBalance = leg.RunningNativeBalanceAfter
		}
	}
	if lastBalance != 11.0 {
		t.Fatalf("expected running balance 11.0, got %.2f", lastBalance)
	}

	if result.TxCount != 5 {
		t.Fatalf("expected 5 txs counted, got %d", result.TxCount)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	eng, err := New(Options{Wallet: testWallet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	txs := []*solana.RawTransaction{
		simpleTx("dep", 1000, 0, 10_000_000_000),
		simpleTx("wd", 2000, 10_000_000_000, 9_000_000_000),
	}

	first := eng.Analyze(txs)
	second := eng.Analyze(txs)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("analysis must be deterministic")
	}
}

func TestAnalyzeToleratesNilTimestamp(t *testing.T) {
	eng, err := New(Options{Wallet: testWallet})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx := simpleTx("no-time", 0, 0, 5_000_000_000)
	tx.BlockTime = nil

	result := eng.Analyze([]*solana.RawTransaction{tx})
	if len(result.Ledger.Transfers) != 1 {
		t.Fatalf("null timestamp must not exclude the event, got %d transfers", len(result.Ledger.Transfers))
	}
}
