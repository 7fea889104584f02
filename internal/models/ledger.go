package models

import "time"

// NativeAssetID is the sentinel asset id for the chain's native currency.
// Token assets are identified by their mint address.
const NativeAssetID = "SOL"

// WrappedNativeMint is the wrapped-SOL mint. Deltas on this mint are folded
// into the native bucket during extraction.
const WrappedNativeMint = "So11111111111111111111111111111111111111112"

type EventKind string

const (
	KindSwap        EventKind = "swap"
	KindTransferIn  EventKind = "transfer_in"
	KindTransferOut EventKind = "transfer_out"
)

type TransferDirection string

const (
	DirectionDeposit    TransferDirection = "deposit"
	DirectionWithdrawal TransferDirection = "withdrawal"
	DirectionReward     TransferDirection = "reward"
)

type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// AssetAmount is a non-negative quantity of one asset. Sign is carried by the
// event that holds it (from = spent, to = received).
type AssetAmount struct {
	AssetID     string  `json:"assetId"`
	Quantity    float64 `json:"quantity"`
	RawQuantity string  `json:"rawQuantity"`
	Decimals    uint8   `json:"decimals"`
}

func (a AssetAmount) IsNative() bool { return a.AssetID == NativeAssetID }
func (a AssetAmount) IsZero() bool   { return a.AssetID == "" || a.Quantity == 0 }

// ClassifiedEvent is one economic event derived from a single transaction.
// TransferIn carries a zero From; TransferOut carries a zero To. A single
// transaction can yield several events, so TxID is not unique in a stream.
type ClassifiedEvent struct {
	TxID           string      `json:"txId"`
	Timestamp      time.Time   `json:"timestamp"`
	Kind           EventKind   `json:"kind"`
	From           AssetAmount `json:"from"`
	To             AssetAmount `json:"to"`
	Counterparties []string    `json:"counterparties,omitempty"`

	// Stitched is true when the event was synthesized from two transfer
	// legs; TxID then names the outbound (canonical) leg.
	Stitched bool `json:"stitched,omitempty"`
}

// TradeLeg is one buy or sell against the native currency.
type TradeLeg struct {
	TxID                      string    `json:"txId"`
	Timestamp                 time.Time `json:"timestamp"`
	Side                      TradeSide `json:"side"`
	NativeAmount              float64   `json:"nativeAmount"`
	AssetAmount               float64   `json:"assetAmount"`
	RunningNativeBalanceAfter float64   `json:"runningNativeBalanceAfter"`
}

// TokenPosition aggregates every leg for one non-native asset.
type TokenPosition struct {
	AssetID              string     `json:"assetId"`
	Symbol               string     `json:"symbol,omitempty"`
	TotalSpent           float64    `json:"totalSpent"`
	TotalReceived        float64    `json:"totalReceived"`
	TotalAcquired        float64    `json:"totalAcquired"`
	TotalDisposed        float64    `json:"totalDisposed"`
	RemainingQuantity    float64    `json:"remainingQuantity"`
	RealizedPnl          float64    `json:"realizedPnl"`
	PnlPercent           float64    `json:"pnlPercent"`
	IsFullyClosed        bool       `json:"isFullyClosed"`
	Legs                 []TradeLeg `json:"legs"`
	FirstAcquisitionDate *time.Time `json:"firstAcquisitionDate,omitempty"`
	LastActivityDate     *time.Time `json:"lastActivityDate,omitempty"`
}

// NativeTransfer is a native-currency movement that is not part of a swap.
type NativeTransfer struct {
	TxID                      string            `json:"txId"`
	Timestamp                 time.Time         `json:"timestamp"`
	Direction                 TransferDirection `json:"direction"`
	Amount                    float64           `json:"amount"`
	RunningNativeBalanceAfter float64           `json:"runningNativeBalanceAfter"`
	Label                     *string           `json:"label,omitempty"`
	Counterparty              *string           `json:"counterparty,omitempty"`
}

// Ledger is the full aggregation result for one wallet. It is recomputed
// wholesale on each run, never incrementally mutated.
type Ledger struct {
	Wallet          string           `json:"wallet"`
	Positions       []TokenPosition  `json:"positions"`
	Transfers       []NativeTransfer `json:"transfers"`
	TotalDeposited  float64          `json:"totalDeposited"`
	TotalWithdrawn  float64          `json:"totalWithdrawn"`
	TotalRewards    float64          `json:"totalRewards"`
	RealizedPnl     float64          `json:"realizedPnl"`
	CostBasisMethod string           `json:"costBasisMethod,omitempty"`
}
