package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator remembers which warnings were already raised.
// FirstSeen claims key for ttl and reports whether this call claimed it.
type Deduplicator interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryDeduplicator keeps claims in process memory; they are lost on restart
type MemoryDeduplicator struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (d *MemoryDeduplicator) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expires := range d.claims {
		if !now.Before(expires) {
			delete(d.claims, k)
		}
	}
	if _, claimed := d.claims[key]; claimed {
		return false, nil
	}
	d.claims[key] = now.Add(ttl)
	return true, nil
}

// RedisDeduplicator shares claims between scanner instances with SETNX
type RedisDeduplicator struct {
	client *redis.Client
	prefix string
}

func NewRedisDeduplicator(client *redis.Client, prefix string) *RedisDeduplicator {
	if prefix == "" {
		prefix = "expiration-scan:"
	}
	return &RedisDeduplicator{client: client, prefix: prefix}
}

func (d *RedisDeduplicator) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}
