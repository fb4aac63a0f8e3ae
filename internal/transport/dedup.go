package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ai-chef/recipe-bot/pkg/redis"
)

// Deduper remembers update ids for a bounded window so webhook
// redeliveries are dropped instead of processed twice.
type Deduper interface {
	// Seen marks the id and reports whether it was already present
	// inside the window.
	Seen(ctx context.Context, updateID int) (bool, error)
}

const dedupKeyPrefix = "dedup:update:"

// RedisDeduper backs the dedup window with SETNX + TTL so the window
// survives restarts and is shared between replicas.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
}

func NewRedisDeduper(client *redis.Client, window time.Duration) *RedisDeduper {
	if window <= 0 {
		window = 10 * time.Minute
	}

	return &RedisDeduper{client: client, window: window}
}

func (d *RedisDeduper) Seen(ctx context.Context, updateID int) (bool, error) {
	key := fmt.Sprintf("%s%d", dedupKeyPrefix, updateID)

	stored, err := d.client.SetNX(ctx, key, 1, d.window)
	if err != nil {
		return false, err
	}

	return !stored, nil
}

// MemoryDeduper is the single-process fallback used when Redis is not
// configured. Expired entries are pruned lazily on access.
type MemoryDeduper struct {
	window time.Duration

	mu   sync.Mutex
	seen map[int]time.Time
}

func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	if window <= 0 {
		window = 10 * time.Minute
	}

	return &MemoryDeduper{
		window: window,
		seen:   make(map[int]time.Time),
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, updateID int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, at := range d.seen {
		if now.Sub(at) > d.window {
			delete(d.seen, id)
		}
	}

	if _, ok := d.seen[updateID]; ok {
		return true, nil
	}

	d.seen[updateID] = now
	return false, nil
}
