package engine

import (
	"fmt"
	"math"

	"github.com/dmelnik/solscope/internal/models"
)

// float accumulation drift across many legs stays well under this
const verifyTolerance = 1e-6

// VerifyLedger cross-checks a finished ledger's internal arithmetic and
// ordering. An empty result means the ledger is consistent; anything else
// names the violated check. Persisting an inconsistent ledger is still
// allowed, the caller decides how loud to be about it.
func VerifyLedger(ledger *models.Ledger) []string {
	var problems []string

	var pnlSum float64
	for _, pos := range ledger.Positions {
		pnlSum += pos.RealizedPnl

		if diff := pos.RealizedPnl - (pos.TotalReceived - pos.TotalSpent); math.Abs(diff) > verifyTolerance {
			problems = append(problems, fmt.Sprintf(
				"position %s: realized pnl %.9f does not match received-spent %.9f",
				pos.AssetID, pos.RealizedPnl, pos.TotalReceived-pos.TotalSpent))
		}
		if pos.IsFullyClosed && pos.RemainingQuantity != 0 {
			problems = append(problems, fmt.Sprintf(
				"position %s: marked closed but %.9f remaining", pos.AssetID, pos.RemainingQuantity))
		}
		if pos.TotalSpent > 0 {
			want := pos.RealizedPnl / pos.TotalSpent * 100
			if math.Abs(pos.PnlPercent-want) > verifyTolerance {
				problems = append(problems, fmt.Sprintf(
					"position %s: pnl percent %.6f, expected %.6f", pos.AssetID, pos.PnlPercent, want))
			}
		} else if pos.PnlPercent != 0 {
			problems = append(problems, fmt.Sprintf(
				"position %s: pnl percent %.6f with zero spend", pos.AssetID, pos.PnlPercent))
		}
	}
	if math.Abs(ledger.RealizedPnl-pnlSum) > verifyTolerance {
		problems = append(problems, fmt.Sprintf(
			"ledger realized pnl %.9f does not match position sum %.9f", ledger.RealizedPnl, pnlSum))
	}

	var deposited, withdrawn, rewards float64
	for i, tr := range ledger.Transfers {
		switch tr.Direction {
		case models.DirectionDeposit:
			deposited += tr.Amount
		case models.DirectionWithdrawal:
			withdrawn += tr.Amount
		case models.DirectionReward:
			rewards += tr.Amount
		default:
			problems = append(problems, fmt.Sprintf(
				"transfer %s: unknown direction %q", tr.TxID, tr.Direction))
		}
		if i > 0 && tr.Timestamp.After(ledger.Transfers[i-1].Timestamp) {
			problems = append(problems, fmt.Sprintf(
				"transfer %s: out of order, newer than its predecessor", tr.TxID))
		}
	}
	if math.Abs(ledger.TotalDeposited-deposited) > verifyTolerance {
		problems = append(problems, fmt.Sprintf(
			"total deposited %.9f does not match transfer sum %.9f", ledger.TotalDeposited, deposited))
	}
	if math.Abs(ledger.TotalWithdrawn-withdrawn) > verifyTolerance {
		problems = append(problems, fmt.Sprintf(
			"total withdrawn %.9f does not match transfer sum %.9f", ledger.TotalWithdrawn, withdrawn))
	}
	if math.Abs(ledger.TotalRewards-rewards) > verifyTolerance {
		problems = append(problems, fmt.Sprintf(
			"total rewards %.9f does not match transfer sum %.9f", ledger.TotalRewards, rewards))
	}

	return problems
}
