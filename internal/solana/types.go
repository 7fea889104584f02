package solana

import "time"

// SignatureInfo is one entry from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// TokenAmount mirrors the RPC uiTokenAmount object. Amount is the raw
// integer amount as a decimal string.
type TokenAmount struct {
	Amount   string   `json:"amount"`
	Decimals uint8    `json:"decimals"`
	UIAmount *float64 `json:"uiAmount"`
}

// TokenBalance is one pre/post token-balance snapshot entry. Owner is a
// hint and may be empty on older transactions.
type TokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner,omitempty"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// TxMeta is the transaction meta object: balances are lamports indexed by
// the account list; Err is non-nil for failed transactions.
type TxMeta struct {
	Err               interface{}    `json:"err"`
	Fee               uint64         `json:"fee"`
	PreBalances       []uint64       `json:"preBalances"`
	PostBalances      []uint64       `json:"postBalances"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
}

// RawTransaction is the already-fetched record the engine consumes: one
// confirmed transaction with its balance meta. BlockTime may be nil
// ("unknown, do not exclude"); Meta may be nil ("no record for this
// account"), in which case extraction yields nothing.
type RawTransaction struct {
	Signature   string
	Slot        uint64
	BlockTime   *int64
	AccountKeys []string
	Meta        *TxMeta
}

// Time returns the block time, or the zero time when unknown.
func (t *RawTransaction) Time() time.Time {
	if t.BlockTime == nil {
		return time.Time{}
	}
	return time.Unix(*t.BlockTime, 0).UTC()
}

// Failed reports whether the chain flagged this transaction as failed.
func (t *RawTransaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// AccountIndex returns the position of addr in the account list, or -1.
func (t *RawTransaction) AccountIndex(addr string) int {
	for i, k := range t.AccountKeys {
		if k == addr {
			return i
		}
	}
	return -1
}
