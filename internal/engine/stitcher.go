package engine

import (
	"sort"
	"time"

	"github.com/dmelnik/solscope/internal/models"
)

// Stitch merges temporally adjacent TransferOut/TransferIn pairs into
// synthetic swap events. Some venues split one economic swap across two
// transactions (an outbound leg routed through an intermediary, then an
// inbound leg moments later); without stitching those legs would corrupt
// per-token accounting as unrelated transfers.
//
// The join is greedy and single-pass: a TransferOut claims the nearest
// unconsumed TransferIn within the window ahead of it; a TransferIn nothing
// claimed looks back over the same window for an unconsumed TransferOut.
// Consumed legs are never reconsidered, so three or more transfers clustered
// inside one window can mis-stitch. That is a known limitation of the
// heuristic, left as-is.
//
// Output is sorted descending by timestamp for presentation.
func Stitch(events []models.ClassifiedEvent, window time.Duration) []models.ClassifiedEvent {
	asc := make([]models.ClassifiedEvent, len(events))
	copy(asc, events)
	sort.SliceStable(asc, func(i, j int) bool {
		return asc[i].Timestamp.Before(asc[j].Timestamp)
	})

	consumed := make([]bool, len(asc))
	out := make([]models.ClassifiedEvent, 0, len(asc))

	for i := range asc {
		if consumed[i] {
			continue
		}
		switch asc[i].Kind {
		case models.KindSwap:
			out = append(out, asc[i])
			consumed[i] = true

		case models.KindTransferOut:
			j := forwardIn(asc, consumed, i, window)
			if j >= 0 {
				out = append(out, mergeLegs(asc[i], asc[j]))
				consumed[i], consumed[j] = true, true
			}
			// No match yet: leave unconsumed, a later TransferIn's
			// backward search may still claim it.

		case models.KindTransferIn:
			j := backwardOut(asc, consumed, i, window)
			if j >= 0 {
				out = append(out, mergeLegs(asc[j], asc[i]))
				consumed[i], consumed[j] = true, true
			}
		}
	}

	// Whatever was never merged passes through untouched.
	for i := range asc {
		if !consumed[i] {
			out = append(out, asc[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// forwardIn finds the nearest unconsumed TransferIn after index i within
// the window, or -1.
func forwardIn(events []models.ClassifiedEvent, consumed []bool, i int, window time.Duration) int {
	for j := i + 1; j < len(events); j++ {
		if events[j].Timestamp.Sub(events[i].Timestamp) > window {
			break
		}
		if !consumed[j] && events[j].Kind == models.KindTransferIn {
			return j
		}
	}
	return -1
}

// backwardOut finds the nearest unconsumed TransferOut before index i within
// the window, or -1. Handles settlements recorded out of order.
func backwardOut(events []models.ClassifiedEvent, consumed []bool, i int, window time.Duration) int {
	for j := i - 1; j >= 0; j-- {
		if events[i].Timestamp.Sub(events[j].Timestamp) > window {
			break
		}
		if !consumed[j] && events[j].Kind == models.KindTransferOut {
			return j
		}
	}
	return -1
}

// mergeLegs builds the synthetic swap. The outbound leg is canonical: its
// transaction id and timestamp identify the merged event.
func mergeLegs(out, in models.ClassifiedEvent) models.ClassifiedEvent {
	return models.ClassifiedEvent{
		TxID:           out.TxID,
		Timestamp:      out.Timestamp,
		Kind:           models.KindSwap,
		From:           out.From,
		To:             in.To,
		Counterparties: unionAddrs(out.Counterparties, in.Counterparties),
		Stitched:       true,
	}
}

func unionAddrs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, addr := range list {
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}
	return out
}
