package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/dmelnik/solscope/internal/labels"
	"github.com/dmelnik/solscope/internal/models"
)

const rewardAddr = "RewardProgram111111111111111111111111111111"

func swapEvent(txID string, ts int64, from, to models.AssetAmount) models.ClassifiedEvent {
	return models.ClassifiedEvent{
		TxID:      txID,
		Timestamp: time.Unix(ts, 0).UTC(),
		Kind:      models.KindSwap,
		From:      from,
		To:        to,
	}
}

func TestAggregateBuySellPosition(t *testing.T) {
	agg := NewAggregator(nil)

	// Buy 100 Y for 2 SOL, sell 100 Y for 3 SOL.
	events := []models.ClassifiedEvent{
		swapEvent("buy", 100, nativeAmt(2.0), tokenAmt(mintY, 100)),
		swapEvent("sell", 200, tokenAmt(mintY, 100), nativeAmt(3.0)),
	}

	ledger := agg.Aggregate(testWallet, events)
	if len(ledger.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(ledger.Positions))
	}

	pos := ledger.Positions[0]
	if pos.AssetID != mintY {
		t.Fatalf("asset mismatch: %s", pos.AssetID)
	}
	if pos.RealizedPnl != 1.0 {
		t.Fatalf("expected realized pnl 1.0, got %f", pos.RealizedPnl)
	}
	if pos.PnlPercent != 50.0 {
		t.Fatalf("expected pnl 50%%, got %f", pos.PnlPercent)
	}
	if !pos.IsFullyClosed {
		t.Fatal("position should be fully closed")
	}
	if pos.RemainingQuantity != 0 {
		t.Fatalf("expected remaining 0, got %f", pos.RemainingQuantity)
	}
	if ledger.RealizedPnl != 1.0 {
		t.Fatalf("ledger pnl mismatch: %f", ledger.RealizedPnl)
	}
}

func TestAggregateLegSumsMatchTotals(t *testing.T) {
	agg := NewAggregator(nil)

	events := []models.ClassifiedEvent{
		swapEvent("b1", 100, nativeAmt(1.5), tokenAmt(mintX, 10)),
		swapEvent("b2", 200, nativeAmt(2.5), tokenAmt(mintX, 20)),
		swapEvent("s1", 300, tokenAmt(mintX, 15), nativeAmt(3.25)),
	}

	ledger := agg.Aggregate(testWallet, events)
	pos := ledger.Positions[0]

	var buySum, sellSum float64
	for _, leg := range pos.Legs {
		if leg.Side == models.SideBuy {
			buySum += leg.NativeAmount
		} else {
			sellSum += leg.NativeAmount
		}
	}
	if buySum != pos.TotalSpent {
		t.Fatalf("buy legs sum %.4f != totalSpent %.4f", buySum, pos.TotalSpent)
	}
	if sellSum != pos.TotalReceived {
		t.Fatalf("sell legs sum %.4f != totalReceived %.4f", sellSum, pos.TotalReceived)
	}
	if pos.RealizedPnl != pos.TotalReceived-pos.TotalSpent {
		t.Fatalf("pnl %.4f != received-spent %.4f", pos.RealizedPnl, pos.TotalReceived-pos.TotalSpent)
	}
	if pos.IsFullyClosed {
		t.Fatal("15 of 30 still held, position is open")
	}
	if pos.RemainingQuantity != 15 {
		t.Fatalf("expected remaining 15, got %f", pos.RemainingQuantity)
	}
}

func TestAggregateRunningBalanceInvariant(t *testing.T) {
	agg := NewAggregator(nil)

	events := []models.ClassifiedEvent{
		transferIn("dep", 100, nativeAmt(10.0)),
		swapEvent("buy", 200, nativeAmt(4.0), tokenAmt(mintX, 100)),
		swapEvent("sell", 300, tokenAmt(mintX, 50), nativeAmt(2.5)),
		transferOut("wd", 400, nativeAmt(1.0)),
	}

	ledger := agg.Aggregate(testWallet, events)

	// Signed native sum: +10 -4 +2.5 -1 = 7.5. The chronologically-last
	// entry's running balance must equal it.
	want := 7.5

	var last float64
	var lastTS time.Time
	for _, tr := range ledger.Transfers {
		if tr.Timestamp.After(lastTS) {
			lastTS = tr.Timestamp
			last = tr.RunningNativeBalanceAfter
		}
	}
	for _, pos := range ledger.Positions {
		for _, leg := range pos.Legs {
			if leg.Timestamp.After(lastTS) {
				lastTS = leg.Timestamp
				last = leg.RunningNativeBalanceAfter
			}
		}
	}

	if math.Abs(last-want) > 1e-12 {
		t.Fatalf("expected final running balance %.4f, got %.4f", want, last)
	}
}

func TestAggregateRewardClassification(t *testing.T) {
	registry := labels.NewRegistry(map[string]string{
		rewardAddr: labels.TagReward,
	})
	agg := NewAggregator(registry)

	deposit := transferIn("dep", 100, nativeAmt(5.0))
	reward := transferIn("rew", 200, nativeAmt(0.5))
	reward.Counterparties = []string{rewardAddr}

	ledger := agg.Aggregate(testWallet, []models.ClassifiedEvent{deposit, reward})

	if ledger.TotalDeposited != 5.0 {
		t.Fatalf("rewards must not count as deposits: got %.2f", ledger.TotalDeposited)
	}
	if ledger.TotalRewards != 0.5 {
		t.Fatalf("expected 0.5 rewards, got %.2f", ledger.TotalRewards)
	}

	var found bool
	for _, tr := range ledger.Transfers {
		if tr.TxID == "rew" {
			found = true
			if tr.Direction != models.DirectionReward {
				t.Fatalf("expected reward direction, got %s", tr.Direction)
			}
			if tr.Label == nil || *tr.Label != labels.TagReward {
				t.Fatal("reward transfer should carry the reward label")
			}
		}
	}
	if !found {
		t.Fatal("reward transfer missing from ledger")
	}
}

func TestAggregateWithdrawalLabelIsInformational(t *testing.T) {
	registry := labels.NewRegistry(map[string]string{
		"Exchange11111111111111111111111111111111111": "exchange",
	})
	agg := NewAggregator(registry)

	wd := transferOut("wd", 100, nativeAmt(2.0))
	wd.Counterparties = []string{"Exchange11111111111111111111111111111111111"}

	ledger := agg.Aggregate(testWallet, []models.ClassifiedEvent{wd})
	if len(ledger.Transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(ledger.Transfers))
	}
	tr := ledger.Transfers[0]
	if tr.Direction != models.DirectionWithdrawal {
		t.Fatalf("label must not reclassify a withdrawal, got %s", tr.Direction)
	}
	if tr.Label == nil || *tr.Label != "exchange" {
		t.Fatal("expected informational label on withdrawal")
	}
	if ledger.TotalWithdrawn != 2.0 {
		t.Fatalf("expected 2.0 withdrawn, got %.2f", ledger.TotalWithdrawn)
	}
}

func TestAggregateTokenToTokenIgnoredForPnl(t *testing.T) {
	agg := NewAggregator(nil)

	events := []models.ClassifiedEvent{
		swapEvent("tt", 100, tokenAmt(mintX, 10), tokenAmt(mintY, 20)),
	}

	ledger := agg.Aggregate(testWallet, events)
	if len(ledger.Positions) != 0 {
		t.Fatalf("token-to-token swaps must not create positions, got %d", len(ledger.Positions))
	}
}

func TestAggregateNonNativeTransfersSkipped(t *testing.T) {
	agg := NewAggregator(nil)

	events := []models.ClassifiedEvent{
		transferIn("airdrop", 100, tokenAmt(mintX, 1000)),
	}

	ledger := agg.Aggregate(testWallet, events)
	if len(ledger.Transfers) != 0 {
		t.Fatalf("token transfers are not native transfers, got %d", len(ledger.Transfers))
	}
}

func TestAggregateIdempotent(t *testing.T) {
	agg := NewAggregator(nil)

	events := []models.ClassifiedEvent{
		transferIn("dep", 100, nativeAmt(10.0)),
		swapEvent("buy", 200, nativeAmt(4.0), tokenAmt(mintX, 100)),
		swapEvent("sell", 300, tokenAmt(mintX, 100), nativeAmt(5.0)),
		transferOut("wd", 400, nativeAmt(1.0)),
	}

	first := agg.Aggregate(testWallet, events)
	second := agg.Aggregate(testWallet, events)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("aggregation must be a pure function of its input")
	}
}

func TestAggregateOutputOrdering(t *testing.T) {
	agg := NewAggregator(nil)

	events := []models.ClassifiedEvent{
		transferIn("t1", 100, nativeAmt(1.0)),
		transferIn("t2", 300, nativeAmt(1.0)),
		transferIn("t3", 200, nativeAmt(1.0)),
		swapEvent("old", 150, nativeAmt(1.0), tokenAmt(mintX, 10)),
		swapEvent("new", 400, nativeAmt(1.0), tokenAmt(mintY, 10)),
	}

	ledger := agg.Aggregate(testWallet, events)

	for i := 1; i < len(ledger.Transfers); i++ {
		if ledger.Transfers[i].Timestamp.After(ledger.Transfers[i-1].Timestamp) {
			t.Fatal("transfers must be sorted descending")
		}
	}
	if len(ledger.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(ledger.Positions))
	}
	if ledger.Positions[0].AssetID != mintY {
		t.Fatal("positions must be sorted by most recent activity first")
	}
}

func TestAggregateZeroSpentZeroPercent(t *testing.T) {
	agg := NewAggregator(nil)

	// Sell with no recorded buy: percentage degrades to zero, no division
	// error.
	events := []models.ClassifiedEvent{
		swapEvent("s", 100, tokenAmt(mintX, 10), nativeAmt(1.0)),
	}

	ledger := agg.Aggregate(testWallet, events)
	pos := ledger.Positions[0]
	if pos.PnlPercent != 0 {
		t.Fatalf("expected 0%% when nothing was spent, got %f", pos.PnlPercent)
	}
	if pos.RealizedPnl != 1.0 {
		t.Fatalf("expected pnl 1.0, got %f", pos.RealizedPnl)
	}
}
