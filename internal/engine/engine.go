// Package engine reconstructs an economically meaningful activity ledger
// from a wallet's raw transaction history: classified trades, stitched
// multi-transaction swaps, per-token positions with realized pnl, and a
// running native balance timeline.
//
// The pipeline is pure computation over an already-fetched batch:
//
//	raw tx -> extract -> filter -> stitch -> aggregate -> ledger
//
// No stage mutates another's output after handoff, and nothing here does
// I/O. The only error the engine raises is invalid configuration.
package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dmelnik/solscope/internal/labels"
	"github.com/dmelnik/solscope/internal/models"
	"github.com/dmelnik/solscope/internal/solana"
)

const (
	DefaultMinEventValue = 0.01
	DefaultStitchWindow  = 10 * time.Second
	maxStitchWindow      = 300 * time.Second
)

type Options struct {
	Wallet          string
	MinEventValue   float64 // native units, events below are dropped
	StitchWindow    time.Duration
	Labels          labels.Resolver
	CostBasisMethod string // presentation metadata, does not alter arithmetic
}

// Validate fails fast: a nonsensical threshold silently applied would
// corrupt every downstream total.
func (o Options) Validate() error {
	if o.Wallet == "" {
		return fmt.Errorf("wallet address is required")
	}
	if o.MinEventValue < 0 || math.IsNaN(o.MinEventValue) || math.IsInf(o.MinEventValue, 0) {
		return fmt.Errorf("min event value must be a non-negative finite number, got %v", o.MinEventValue)
	}
	if o.StitchWindow < time.Second || o.StitchWindow > maxStitchWindow {
		return fmt.Errorf("stitch window must be between 1s and %s, got %s", maxStitchWindow, o.StitchWindow)
	}
	return nil
}

type Engine struct {
	opts       Options
	extractor  *Extractor
	aggregator *Aggregator
}

func New(opts Options) (*Engine, error) {
	if opts.MinEventValue == 0 {
		opts.MinEventValue = DefaultMinEventValue
	}
	if opts.StitchWindow == 0 {
		opts.StitchWindow = DefaultStitchWindow
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	return &Engine{
		opts:       opts,
		extractor:  NewExtractor(opts.Wallet, opts.MinEventValue),
		aggregator: NewAggregator(opts.Labels),
	}, nil
}

// Result bundles the ledger with the event stream it was derived from.
type Result struct {
	Ledger  models.Ledger
	Events  []models.ClassifiedEvent
	TxCount int
}

// Analyze runs the full pipeline over one wallet's transaction batch.
// Input order does not matter; events are re-sorted chronologically before
// stitching. The function is pure and idempotent.
func (e *Engine) Analyze(txs []*solana.RawTransaction) Result {
	var events []models.ClassifiedEvent
	for _, tx := range txs {
		events = append(events, e.extractor.Extract(tx)...)
	}

	events = Filter(events, e.opts.MinEventValue)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	stitched := Stitch(events, e.opts.StitchWindow)

	ledger := e.aggregator.Aggregate(e.opts.Wallet, stitched)
	ledger.CostBasisMethod = e.opts.CostBasisMethod

	return Result{
		Ledger:  ledger,
		Events:  stitched,
		TxCount: len(txs),
	}
}
