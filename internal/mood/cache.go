package mood

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
)

// Cache stores signals by exact source reference.
type Cache interface {
	Get(ctx context.Context, key string) (*Signal, bool)
	Set(ctx context.Context, key string, sig *Signal)
}

// MemoryCache is a cost-bounded in-process cache. Cost is the byte size of
// the prompt plus thumbnail, so MaxCost is roughly a memory budget.
type MemoryCache struct {
	client *ristretto.Cache
	cache  *cache.Cache[*Signal]
	ttl    time.Duration
}

// NewMemoryCache creates a cache holding about maxBytes of signals. A zero
// ttl keeps entries until evicted by cost.
func NewMemoryCache(maxBytes int64, ttl time.Duration) (*MemoryCache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("cache budget must be positive, got %d", maxBytes)
	}

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &MemoryCache{
		client: client,
		cache:  cache.New[*Signal](ristretto_store.NewRistretto(client)),
		ttl:    ttl,
	}, nil
}

// Get returns the cached signal. Any store error counts as a miss.
func (c *MemoryCache) Get(ctx context.Context, key string) (*Signal, bool) {
	sig, err := c.cache.Get(ctx, key)
	if err != nil || sig == nil {
		return nil, false
	}
	return sig, true
}

// Set stores sig and waits for the write to become visible.
func (c *MemoryCache) Set(ctx context.Context, key string, sig *Signal) {
	opts := []store.Option{store.WithCost(sig.cost())}
	if c.ttl > 0 {
		opts = append(opts, store.WithExpiration(c.ttl))
	}
	if err := c.cache.Set(ctx, key, sig, opts...); err != nil {
		slog.Debug("Mood cache rejected entry", "error", err)
		return
	}
	c.client.Wait()
}

// Close releases the cache's background goroutines.
func (c *MemoryCache) Close() {
	c.client.Close()
}
