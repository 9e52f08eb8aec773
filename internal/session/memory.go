// Package session provides the in-memory ChatSession store: a sharded map
// with per-shard locking, used when no Redis address is configured.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/nort67/marketbot/internal/domain"
)

const shardCount = 16

type shard struct {
	mu       sync.RWMutex
	sessions map[int64]domain.ChatSession
}

// MemoryStore is a process-lifetime session store sharded by chat ID.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[int64]domain.ChatSession)}
	}
	return s
}

func (s *MemoryStore) shardFor(chatID int64) *shard {
	idx := uint64(chatID) % shardCount
	return s.shards[idx]
}

// Get returns the session for chatID, or domain.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, chatID int64) (domain.ChatSession, error) {
	sh := s.shardFor(chatID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	sess, ok := sh.sessions[chatID]
	if !ok {
		return domain.ChatSession{}, domain.ErrNotFound
	}
	return sess, nil
}

// Put stores the session, overwriting any previous value.
func (s *MemoryStore) Put(_ context.Context, session domain.ChatSession) error {
	session.UpdatedAt = time.Now()

	sh := s.shardFor(session.ChatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.sessions[session.ChatID] = session
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil)
