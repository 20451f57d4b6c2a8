package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "session:revoked:"

// TokenBlacklist remembers revoked session ids until their natural expiry.
// Redis is preferred; without a client the list lives in process memory.
type TokenBlacklist struct {
	rc *redis.Client

	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewTokenBlacklist creates a blacklist. rc may be nil.
func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, entries: make(map[string]time.Time)}
}

// Revoke stores the session id until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.rc.Set(ctx, blacklistKeyPrefix+sessionID, "1", ttl).Err()
	}
	b.mu.Lock()
	b.pruneLocked(time.Now())
	b.entries[sessionID] = expiresAt
	b.mu.Unlock()
	return nil
}

// pruneLocked drops entries whose tokens have expired; those tokens fail parsing anyway.
func (b *TokenBlacklist) pruneLocked(now time.Time) {
	for id, expiresAt := range b.entries {
		if now.After(expiresAt) {
			delete(b.entries, id)
		}
	}
}

// IsRevoked checks whether a session id was revoked before natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, sessionID string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistKeyPrefix+sessionID).Result()
		if err != nil {
			// Fail closed: a logged-out session must not come back while redis is unreachable
			if Sugar != nil {
				Sugar.Warnf("session blacklist lookup failed: %v", err)
			}
			return true
		}
		return n > 0
	}

	b.mu.RLock()
	expiresAt, ok := b.entries[sessionID]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		b.mu.Lock()
		delete(b.entries, sessionID)
		b.mu.Unlock()
		return false
	}
	return true
}
