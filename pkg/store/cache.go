// Package store provides the small shared stores the gateway leans on:
// a TTL cache used for replay-nonce suppression (Redis with an
// in-memory fallback) and the Postgres pool behind the audit sink.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when a key is absent or expired.
var ErrMiss = errors.New("store: cache miss")

// Cache is the replay-suppression surface. SetNX is the primitive the
// replay gate uses: it records a nonce only if unseen within its TTL.
type Cache interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// RedisCache shares nonce state across instances.
type RedisCache struct{ client *redis.Client }

func (r *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return res, err
}

func (r *RedisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// MemoryCache is the single-process fallback. Entries expire lazily:
// expiry is checked at lookup time, not by a background sweeper.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memEntry
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]memEntry{}}
}

func (m *MemoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.items[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	m.items[key] = memEntry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok || now.After(e.expiresAt) {
		delete(m.items, key)
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryCache) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// NewCache prefers Redis when reachable and otherwise degrades to the
// in-memory cache; replay suppression is explicitly per-instance in
// that mode.
func NewCache(ctx context.Context, client *redis.Client) Cache {
	if client != nil {
		if err := client.Ping(ctx).Err(); err == nil {
			return &RedisCache{client: client}
		}
	}
	return NewMemoryCache()
}
