package engine

import (
	"math"
	"math/big"
	"sort"

	"github.com/dmelnik/solscope/internal/models"
	"github.com/dmelnik/solscope/internal/solana"
)

const lamportsPerSol = 1e9

// Extractor derives zero or more classified economic events from a single
// raw transaction, as seen from one wallet.
type Extractor struct {
	wallet         string
	minSignificant float64
}

func NewExtractor(wallet string, minSignificant float64) *Extractor {
	return &Extractor{wallet: wallet, minSignificant: minSignificant}
}

// assetDelta is a signed per-mint balance change, aggregated across every
// sub-account the wallet holds that mint in.
type assetDelta struct {
	assetID  string
	quantity float64
	raw      *big.Int
	decimals uint8
}

// Extract classifies one transaction. Failed transactions and transactions
// the wallet is not a party to yield no events.
func (e *Extractor) Extract(tx *solana.RawTransaction) []models.ClassifiedEvent {
	if tx == nil || tx.Meta == nil || tx.Failed() {
		return nil
	}

	idx := tx.AccountIndex(e.wallet)
	if idx < 0 {
		return nil
	}

	nativeDelta := e.nativeDelta(tx, idx)
	deltas := e.tokenDeltas(tx)

	// Wrapped SOL trades show up on the token ledger while the wallet's own
	// lamport row only moves by fees. Prefer the wrapped delta when it is
	// significant, otherwise fall back to the raw lamport delta if that is.
	if wrapped, ok := deltas[models.WrappedNativeMint]; ok {
		if math.Abs(wrapped.quantity) > e.minSignificant {
			nativeDelta = wrapped.quantity
		} else if math.Abs(nativeDelta) <= e.minSignificant {
			nativeDelta = 0
		}
		delete(deltas, models.WrappedNativeMint)
	}

	var outs, ins []models.AssetAmount

	if nativeDelta != 0 {
		amt := nativeAmount(math.Abs(nativeDelta))
		if nativeDelta < 0 {
			outs = append(outs, amt)
		} else {
			ins = append(ins, amt)
		}
	}

	// Deterministic event order regardless of map iteration.
	mints := make([]string, 0, len(deltas))
	for mint := range deltas {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	for _, mint := range mints {
		d := deltas[mint]
		if d.quantity == 0 {
			continue
		}
		amt := models.AssetAmount{
			AssetID:     d.assetID,
			Quantity:    math.Abs(d.quantity),
			RawQuantity: new(big.Int).Abs(d.raw).String(),
			Decimals:    d.decimals,
		}
		if d.quantity < 0 {
			outs = append(outs, amt)
		} else {
			ins = append(ins, amt)
		}
	}

	return e.classify(tx, outs, ins)
}

// classify turns the signed delta partition into events: both sides present
// means swaps (zipped pairwise, repeating the shorter side's last element to
// approximate multi-hop routes), one side means transfers.
func (e *Extractor) classify(tx *solana.RawTransaction, outs, ins []models.AssetAmount) []models.ClassifiedEvent {
	if len(outs) == 0 && len(ins) == 0 {
		return nil
	}

	ts := tx.Time()
	counterparties := e.counterparties(tx)
	var events []models.ClassifiedEvent

	switch {
	case len(outs) > 0 && len(ins) > 0:
		n := len(outs)
		if len(ins) > n {
			n = len(ins)
		}
		for i := 0; i < n; i++ {
			events = append(events, models.ClassifiedEvent{
				TxID:           tx.Signature,
				Timestamp:      ts,
				Kind:           models.KindSwap,
				From:           pick(outs, i),
				To:             pick(ins, i),
				Counterparties: counterparties,
			})
		}
	case len(outs) > 0:
		for _, out := range outs {
			events = append(events, models.ClassifiedEvent{
				TxID:           tx.Signature,
				Timestamp:      ts,
				Kind:           models.KindTransferOut,
				From:           out,
				Counterparties: counterparties,
			})
		}
	default:
		for _, in := range ins {
			events = append(events, models.ClassifiedEvent{
				TxID:           tx.Signature,
				Timestamp:      ts,
				Kind:           models.KindTransferIn,
				To:             in,
				Counterparties: counterparties,
			})
		}
	}

	return events
}

func (e *Extractor) nativeDelta(tx *solana.RawTransaction, idx int) float64 {
	meta := tx.Meta
	if idx >= len(meta.PreBalances) || idx >= len(meta.PostBalances) {
		return 0
	}
	pre := float64(meta.PreBalances[idx])
	post := float64(meta.PostBalances[idx])
	return (post - pre) / lamportsPerSol
}

// tokenDeltas reconciles pre and post token-balance snapshots into per-mint
// deltas. Two passes: entries carrying an explicit owner are matched on it,
// entries without owner metadata are attributed by account position.
func (e *Extractor) tokenDeltas(tx *solana.RawTransaction) map[string]*assetDelta {
	meta := tx.Meta
	deltas := make(map[string]*assetDelta)

	preByIndex := make(map[int]solana.TokenBalance, len(meta.PreTokenBalances))
	for _, b := range meta.PreTokenBalances {
		preByIndex[b.AccountIndex] = b
	}

	matched := make(map[int]bool, len(meta.PostTokenBalances))

	// Pass 1: explicit ownership.
	for _, post := range meta.PostTokenBalances {
		if post.Owner == "" {
			continue
		}
		matched[post.AccountIndex] = true
		if post.Owner != e.wallet {
			continue
		}
		pre, ok := preByIndex[post.AccountIndex]
		e.accumulate(deltas, post, preAmount(pre, ok))
	}

	// Pass 2: positional fallback for entries with no owner hint. The account
	// appears in a transaction fetched for this wallet, so the position is the
	// best remaining evidence of ownership.
	for _, post := range meta.PostTokenBalances {
		if post.Owner != "" {
			continue
		}
		matched[post.AccountIndex] = true
		pre, ok := preByIndex[post.AccountIndex]
		if ok && pre.Owner != "" && pre.Owner != e.wallet {
			continue
		}
		e.accumulate(deltas, post, preAmount(pre, ok))
	}

	// Pre entries with no post counterpart: the token account was closed,
	// which is a disposal of its full balance.
	for _, pre := range meta.PreTokenBalances {
		if matched[pre.AccountIndex] {
			continue
		}
		if pre.Owner != "" && pre.Owner != e.wallet {
			continue
		}
		zero := solana.TokenBalance{
			AccountIndex:  pre.AccountIndex,
			Mint:          pre.Mint,
			Owner:         pre.Owner,
			UITokenAmount: solana.TokenAmount{Amount: "0", Decimals: pre.UITokenAmount.Decimals},
		}
		e.accumulate(deltas, zero, pre.UITokenAmount)
	}

	return deltas
}

func (e *Extractor) accumulate(deltas map[string]*assetDelta, post solana.TokenBalance, pre solana.TokenAmount) {
	postRaw := parseRaw(post.UITokenAmount.Amount)
	preRaw := parseRaw(pre.Amount)
	diff := new(big.Int).Sub(postRaw, preRaw)
	if diff.Sign() == 0 {
		return
	}

	d, ok := deltas[post.Mint]
	if !ok {
		d = &assetDelta{
			assetID:  post.Mint,
			raw:      new(big.Int),
			decimals: post.UITokenAmount.Decimals,
		}
		deltas[post.Mint] = d
	}
	d.raw.Add(d.raw, diff)
	d.quantity = rawToQuantity(d.raw, d.decimals)
}

// counterparties lists every static account in the transaction other than
// the analyzed wallet.
func (e *Extractor) counterparties(tx *solana.RawTransaction) []string {
	var out []string
	for _, k := range tx.AccountKeys {
		if k != e.wallet {
			out = append(out, k)
		}
	}
	return out
}

// --- helpers ---

func pick(list []models.AssetAmount, i int) models.AssetAmount {
	if i < len(list) {
		return list[i]
	}
	return list[len(list)-1]
}

func preAmount(pre solana.TokenBalance, ok bool) solana.TokenAmount {
	if !ok {
		return solana.TokenAmount{Amount: "0", Decimals: pre.UITokenAmount.Decimals}
	}
	return pre.UITokenAmount
}

func parseRaw(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

func rawToQuantity(raw *big.Int, decimals uint8) float64 {
	f, _ := new(big.Float).SetInt(raw).Float64()
	return f / math.Pow10(int(decimals))
}

func nativeAmount(quantity float64) models.AssetAmount {
	lamports := new(big.Int).SetUint64(uint64(math.Round(quantity * lamportsPerSol)))
	return models.AssetAmount{
		AssetID:     models.NativeAssetID,
		Quantity:    quantity,
		RawQuantity: lamports.String(),
		Decimals:    9,
	}
}
