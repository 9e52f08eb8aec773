package domain

import (
	"context"
	"time"
)

// PaymentState is the per-chat payment gate state.
type PaymentState int

const (
	PaymentStateNone PaymentState = iota
	PaymentStateAwaitingProof
)

// ChatSession is the per-chat state tracked between events. Sessions are
// created lazily on first interaction and live for the process lifetime (or
// the store's TTL).
//
// Invariant: State == PaymentStateAwaitingProof implies PendingPayment != nil
// and PendingMarketID != "".
type ChatSession struct {
	ChatID          int64               `json:"chat_id"`
	PendingMarketID string              `json:"pending_market_id,omitempty"`
	State           PaymentState        `json:"state"`
	PendingPayment  *PaymentRequirement `json:"pending_payment,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// SessionStore persists ChatSessions keyed by chat ID. Implementations must
// be safe for concurrent use; callers serialize writes per chat (events for
// one chat are handled by a single task at a time).
type SessionStore interface {
	// Get returns the session for chatID, or ErrNotFound.
	Get(ctx context.Context, chatID int64) (ChatSession, error)
	// Put stores the session, overwriting any previous value.
	Put(ctx context.Context, session ChatSession) error
}

// RateLimiter limits how often a key may perform an action.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the limit
	// and counts it when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
