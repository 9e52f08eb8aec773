package domain

import "context"

// MarketService is the remote analytics/AI backend as seen by the router and
// payment gate. Every operation resolves to a BackendResult; transport and
// status handling never escape the implementation as Go errors.
type MarketService interface {
	Trending(ctx context.Context) BackendResult
	Markets(ctx context.Context) BackendResult
	Signals(ctx context.Context) BackendResult
	Advice(ctx context.Context, marketID string) BackendResult
	PremiumAdvice(ctx context.Context, marketID string, chatID int64) BackendResult
	PlacePaperTrade(ctx context.Context, chatID int64, marketID, side string, amount float64) BackendResult
	VerifyPayment(ctx context.Context, proof string, chatID int64) BackendResult
	WalletSummary(ctx context.Context, chatID int64) BackendResult
}
