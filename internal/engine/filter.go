package engine

import "github.com/dmelnik/solscope/internal/models"

// Keep reports whether an event clears the minimum-value threshold. Events
// with a native leg below the threshold are noise (fee dust, rent refunds).
// Token-for-token swaps have no cheaply priceable leg and are always kept:
// the bias is to over-include rather than silently drop a real trade.
func Keep(ev models.ClassifiedEvent, minEventValue float64) bool {
	native, ok := nativeLeg(ev)
	if !ok {
		return true
	}
	return native >= minEventValue
}

// Filter drops events below the minimum-value threshold, preserving order.
func Filter(events []models.ClassifiedEvent, minEventValue float64) []models.ClassifiedEvent {
	kept := make([]models.ClassifiedEvent, 0, len(events))
	for _, ev := range events {
		if Keep(ev, minEventValue) {
			kept = append(kept, ev)
		}
	}
	return kept
}

// nativeLeg returns the native quantity of the event, if either side is the
// native currency.
func nativeLeg(ev models.ClassifiedEvent) (float64, bool) {
	if ev.From.IsNative() && !ev.From.IsZero() {
		return ev.From.Quantity, true
	}
	if ev.To.IsNative() && !ev.To.IsZero() {
		return ev.To.Quantity, true
	}
	return 0, false
}
