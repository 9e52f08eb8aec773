package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nort67/marketbot/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSessionStoreRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	_, err := store.Get(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	req := domain.PaymentRequirement{Amount: 0.05, Asset: "USDC", Address: "0xABC"}
	require.NoError(t, store.Put(ctx, domain.ChatSession{
		ChatID:          7,
		PendingMarketID: "527079",
		State:           domain.PaymentStateAwaitingProof,
		PendingPayment:  &req,
	}))

	sess, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sess.ChatID)
	assert.Equal(t, "527079", sess.PendingMarketID)
	assert.Equal(t, domain.PaymentStateAwaitingProof, sess.State)
	require.NotNil(t, sess.PendingPayment)
	assert.InDelta(t, 0.05, sess.PendingPayment.Amount, 1e-9)
}

func TestSessionStoreTTL(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.ChatSession{ChatID: 7}))
	assert.Greater(t, mr.TTL("session:7"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionStorePutRefreshesTTL(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.ChatSession{ChatID: 7, PendingMarketID: "a"}))
	mr.FastForward(50 * time.Second)
	require.NoError(t, store.Put(ctx, domain.ChatSession{ChatID: 7, PendingMarketID: "b"}))
	mr.FastForward(50 * time.Second)

	sess, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "b", sess.PendingMarketID)
}

func TestSessionStoreCorruptPayload(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewSessionStore(client, 0)

	require.NoError(t, mr.Set("session:7", "not json"))

	_, err := store.Get(context.Background(), 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
