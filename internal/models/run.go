package models

import "time"

// AnalysisRun is one persisted execution of the engine for a wallet.
type AnalysisRun struct {
	ID             string    `json:"id"`
	Wallet         string    `json:"wallet"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	TxCount        int       `json:"txCount"`
	EventCount     int       `json:"eventCount"`
	MinEventValue  float64   `json:"minEventValue"`
	StitchWindowS  int       `json:"stitchWindowSeconds"`
	TotalDeposited float64   `json:"totalDeposited"`
	TotalWithdrawn float64   `json:"totalWithdrawn"`
	TotalRewards   float64   `json:"totalRewards"`
	RealizedPnl    float64   `json:"realizedPnl"`
	SolPriceUSD    *float64  `json:"solPriceUsd,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TrackedWallet is a wallet the scheduler re-analyzes on an interval.
type TrackedWallet struct {
	Address    string     `json:"address"`
	Label      *string    `json:"label,omitempty"`
	AddedAt    time.Time  `json:"addedAt"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastRunID  *string    `json:"lastRunId,omitempty"`
}
