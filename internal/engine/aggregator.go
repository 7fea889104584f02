package engine

import (
	"sort"
	"time"

	"github.com/dmelnik/solscope/internal/labels"
	"github.com/dmelnik/solscope/internal/models"
)

// Positions smaller than this are float residue from a full exit, not a
// held balance.
const dustQuantity = 1e-9

// Aggregator folds a stitched, filtered event stream into a Ledger: one
// position per traded token, a classified native transfer timeline, and a
// running native balance across the whole wallet.
type Aggregator struct {
	labels labels.Resolver
}

func NewAggregator(resolver labels.Resolver) *Aggregator {
	if resolver == nil {
		resolver = labels.Empty()
	}
	return &Aggregator{labels: resolver}
}

// Aggregate expects well-formed, already-filtered input and raises no errors
// of its own: malformed data degrades (zero percentages, skipped events)
// rather than failing. Running it twice on the same input yields identical
// ledgers.
func (a *Aggregator) Aggregate(wallet string, events []models.ClassifiedEvent) models.Ledger {
	asc := make([]models.ClassifiedEvent, len(events))
	copy(asc, events)
	sort.SliceStable(asc, func(i, j int) bool {
		return asc[i].Timestamp.Before(asc[j].Timestamp)
	})

	running := 0.0
	positions := make(map[string]*models.TokenPosition)
	var order []string
	var transfers []models.NativeTransfer

	for _, ev := range asc {
		switch ev.Kind {
		case models.KindSwap:
			switch {
			case ev.From.IsNative() && !ev.To.IsNative():
				running -= ev.From.Quantity
				a.addLeg(positions, &order, ev.To.AssetID, models.TradeLeg{
					TxID:                      ev.TxID,
					Timestamp:                 ev.Timestamp,
					Side:                      models.SideBuy,
					NativeAmount:              ev.From.Quantity,
					AssetAmount:               ev.To.Quantity,
					RunningNativeBalanceAfter: running,
				})
			case ev.To.IsNative() && !ev.From.IsNative():
				running += ev.To.Quantity
				a.addLeg(positions, &order, ev.From.AssetID, models.TradeLeg{
					TxID:                      ev.TxID,
					Timestamp:                 ev.Timestamp,
					Side:                      models.SideSell,
					NativeAmount:              ev.To.Quantity,
					AssetAmount:               ev.From.Quantity,
					RunningNativeBalanceAfter: running,
				})
			default:
				// Token-for-token swaps carry no native leg to price; they do
				// not move the balance and are excluded from pnl.
			}

		case models.KindTransferIn:
			if !ev.To.IsNative() {
				continue
			}
			running += ev.To.Quantity
			t := models.NativeTransfer{
				TxID:                      ev.TxID,
				Timestamp:                 ev.Timestamp,
				Direction:                 models.DirectionDeposit,
				Amount:                    ev.To.Quantity,
				RunningNativeBalanceAfter: running,
			}
			if addr, tag, ok := a.matchLabel(ev.Counterparties); ok {
				t.Counterparty = &addr
				label := tag
				t.Label = &label
				if tag == labels.TagReward {
					t.Direction = models.DirectionReward
				}
			}
			transfers = append(transfers, t)

		case models.KindTransferOut:
			if !ev.From.IsNative() {
				continue
			}
			running -= ev.From.Quantity
			t := models.NativeTransfer{
				TxID:                      ev.TxID,
				Timestamp:                 ev.Timestamp,
				Direction:                 models.DirectionWithdrawal,
				Amount:                    ev.From.Quantity,
				RunningNativeBalanceAfter: running,
			}
			// A label on a withdrawal is informational only and never
			// changes the classification.
			if addr, tag, ok := a.matchLabel(ev.Counterparties); ok {
				t.Counterparty = &addr
				label := tag
				t.Label = &label
			}
			transfers = append(transfers, t)
		}
	}

	ledger := models.Ledger{
		Wallet:    wallet,
		Positions: make([]models.TokenPosition, 0, len(order)),
		Transfers: make([]models.NativeTransfer, len(transfers)),
	}

	for _, assetID := range order {
		pos := finalizePosition(positions[assetID])
		ledger.Positions = append(ledger.Positions, pos)
		ledger.RealizedPnl += pos.RealizedPnl
	}
	sort.SliceStable(ledger.Positions, func(i, j int) bool {
		return after(ledger.Positions[i].LastActivityDate, ledger.Positions[j].LastActivityDate)
	})

	copy(ledger.Transfers, transfers)
	sort.SliceStable(ledger.Transfers, func(i, j int) bool {
		return ledger.Transfers[i].Timestamp.After(ledger.Transfers[j].Timestamp)
	})

	for _, t := range transfers {
		switch t.Direction {
		case models.DirectionDeposit:
			ledger.TotalDeposited += t.Amount
		case models.DirectionWithdrawal:
			ledger.TotalWithdrawn += t.Amount
		case models.DirectionReward:
			ledger.TotalRewards += t.Amount
		}
	}

	return ledger
}

func (a *Aggregator) addLeg(positions map[string]*models.TokenPosition, order *[]string, assetID string, leg models.TradeLeg) {
	pos, ok := positions[assetID]
	if !ok {
		pos = &models.TokenPosition{AssetID: assetID}
		positions[assetID] = pos
		*order = append(*order, assetID)
	}
	pos.Legs = append(pos.Legs, leg)
}

// matchLabel returns the first counterparty with a known tag. A reward tag
// wins over any other tag on the same event.
func (a *Aggregator) matchLabel(addrs []string) (string, string, bool) {
	var firstAddr, firstTag string
	found := false
	for _, addr := range addrs {
		tag, ok := a.labels.Resolve(addr)
		if !ok {
			continue
		}
		if tag == labels.TagReward {
			return addr, tag, true
		}
		if !found {
			firstAddr, firstTag = addr, tag
			found = true
		}
	}
	return firstAddr, firstTag, found
}

func finalizePosition(pos *models.TokenPosition) models.TokenPosition {
	out := *pos

	for _, leg := range out.Legs {
		if leg.Side == models.SideBuy {
			out.TotalSpent += leg.NativeAmount
			out.TotalAcquired += leg.AssetAmount
			if out.FirstAcquisitionDate == nil || leg.Timestamp.Before(*out.FirstAcquisitionDate) {
				ts := leg.Timestamp
				out.FirstAcquisitionDate = &ts
			}
		} else {
			out.TotalReceived += leg.NativeAmount
			out.TotalDisposed += leg.AssetAmount
		}
		if out.LastActivityDate == nil || leg.Timestamp.After(*out.LastActivityDate) {
			ts := leg.Timestamp
			out.LastActivityDate = &ts
		}
	}

	out.RemainingQuantity = out.TotalAcquired - out.TotalDisposed
	if out.RemainingQuantity < dustQuantity {
		out.RemainingQuantity = 0
	}
	out.IsFullyClosed = out.RemainingQuantity == 0

	out.RealizedPnl = out.TotalReceived - out.TotalSpent
	if out.TotalSpent > 0 {
		out.PnlPercent = out.RealizedPnl / out.TotalSpent * 100
	}

	return out
}

func after(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
