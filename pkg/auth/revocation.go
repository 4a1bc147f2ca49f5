package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// RevocationStore tracks revoked token ids until their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revocationKeyPrefix = "todod:revoked:"

// cacheNegativeTTL bounds how long a "not revoked" answer may be served
// from the local cache, which is the window in which a logout on
// another node may not yet be visible here.
const cacheNegativeTTL = 30 * time.Second

// RedisRevocationStore stores revocations in Redis so they are visible
// to every node, with a small local cache in front to keep the hot
// token-verification path off the network.
type RedisRevocationStore struct {
	client *redis.Client
	cache  *lru.LRU[string, bool]
}

func NewRedisRevocationStore(client *redis.Client, cacheSize int) *RedisRevocationStore {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	return &RedisRevocationStore{
		client: client,
		cache:  lru.NewLRU[string, bool](cacheSize, nil, cacheNegativeTTL),
	}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revocationKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("set revocation: %w", err)
	}
	s.cache.Add(tokenID, true)
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if revoked, ok := s.cache.Get(tokenID); ok {
		return revoked, nil
	}

	n, err := s.client.Exists(ctx, revocationKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	revoked := n > 0
	s.cache.Add(tokenID, revoked)
	return revoked, nil
}

// MemoryRevocationStore is a single-node RevocationStore for tests and
// development.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = s.now().Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
