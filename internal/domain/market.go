package domain

import "time"

// MarketSummary is an immutable snapshot of a single market as returned by
// one backend call.
type MarketSummary struct {
	ID       string
	Question string
	Volume   float64
	// CurrentOdds is the implied probability of the Yes outcome in [0,1].
	// HasOdds is false when the backend omitted the field.
	CurrentOdds float64
	HasOdds     bool
	ExpiresAt   *time.Time
}

// Signal is a ranked trading opportunity emitted by the signals engine.
type Signal struct {
	MarketID    string
	Question    string
	Score       float64 // 0..1, ranking key
	Reason      string
	Volume      float64
	CurrentOdds float64
	HasOdds     bool
}

// AdviceResult is the normalized output of the AI advice endpoint.
type AdviceResult struct {
	MarketID         string
	Summary          string
	WhyTrending      string
	RiskFactors      []string
	SuggestedPlan    string  // defaults to "WAIT"
	Confidence       float64 // 0..1, defaults to 0.5
	Disclaimer       string
	StaleDataWarning string // empty when the data was fresh
}

// PaperTradeReceipt confirms a simulated trade accepted by the backend.
type PaperTradeReceipt struct {
	OrderID  string
	MarketID string
	Side     string
	Amount   float64
	Status   string
}

// WalletSummary is the paper-trading account snapshot for one chat.
type WalletSummary struct {
	Balance    float64
	ActiveBets int
}
