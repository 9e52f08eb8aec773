package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nort67/marketbot/internal/domain"
)

// SessionStore implements domain.SessionStore with JSON-serialized sessions.
//
// Key schema:
//
//	session:{chatID} - string value containing JSON
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration // 0 means no expiry
}

// NewSessionStore creates a SessionStore backed by the given Client. Sessions
// expire after ttl; pass 0 to keep them until process teardown clears Redis.
func NewSessionStore(c *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: c.Underlying(), ttl: ttl}
}

func sessionKey(chatID int64) string {
	return "session:" + strconv.FormatInt(chatID, 10)
}

// Get retrieves the session for chatID.
// It returns domain.ErrNotFound when the key does not exist.
func (s *SessionStore) Get(ctx context.Context, chatID int64) (domain.ChatSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ChatSession{}, domain.ErrNotFound
		}
		return domain.ChatSession{}, fmt.Errorf("redis: get session %d: %w", chatID, err)
	}

	var sess domain.ChatSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.ChatSession{}, fmt.Errorf("redis: unmarshal session %d: %w", chatID, err)
	}
	return sess, nil
}

// Put stores the session, refreshing its TTL.
func (s *SessionStore) Put(ctx context.Context, session domain.ChatSession) error {
	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: marshal session %d: %w", session.ChatID, err)
	}

	if err := s.rdb.Set(ctx, sessionKey(session.ChatID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set session %d: %w", session.ChatID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SessionStore = (*SessionStore)(nil)
