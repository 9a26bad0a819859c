package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Quote is the latest top of book for a symbol.
type Quote struct {
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShardedQuoteCache holds best bid/ask per symbol. Writes come from a single
// dispatcher; reads may come from anywhere.
type ShardedQuoteCache struct {
	shards [numShards]*quoteShard
}

type quoteShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

// NewShardedQuoteCache creates an empty cache.
func NewShardedQuoteCache() *ShardedQuoteCache {
	c := &ShardedQuoteCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &quoteShard{
			items: make(map[string]Quote),
		}
	}
	return c
}

func (c *ShardedQuoteCache) getShard(key string) *quoteShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set upserts bid/ask for symbol.
func (c *ShardedQuoteCache) Set(symbol string, bid, ask float64) {
	shard := c.getShard(symbol)
	shard.mu.Lock()
	shard.items[symbol] = Quote{Bid: bid, Ask: ask, UpdatedAt: time.Now()}
	shard.mu.Unlock()
}

// Get retrieves the quote for symbol.
func (c *ShardedQuoteCache) Get(symbol string) (Quote, bool) {
	shard := c.getShard(symbol)
	shard.mu.RLock()
	q, ok := shard.items[symbol]
	shard.mu.RUnlock()
	return q, ok
}

// GetWithAge retrieves the quote and how long ago it was written.
func (c *ShardedQuoteCache) GetWithAge(symbol string) (Quote, time.Duration, bool) {
	q, ok := c.Get(symbol)
	if !ok {
		return Quote{}, 0, false
	}
	return q, time.Since(q.UpdatedAt), true
}

// Len returns total items across all shards.
func (c *ShardedQuoteCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// All returns a copy of every cached quote.
func (c *ShardedQuoteCache) All() map[string]Quote {
	result := make(map[string]Quote)
	for _, shard := range c.shards {
		shard.mu.RLock()
		for sym, q := range shard.items {
			result[sym] = q
		}
		shard.mu.RUnlock()
	}
	return result
}

// CacheStats provides cache statistics.
type CacheStats struct {
	TotalItems  int            `json:"total_items"`
	ShardCounts [numShards]int `json:"shard_counts"`
	OldestAge   time.Duration  `json:"oldest_age"`
}

// Stats returns cache statistics.
func (c *ShardedQuoteCache) Stats() CacheStats {
	stats := CacheStats{}
	var oldest time.Time

	for i, shard := range c.shards {
		shard.mu.RLock()
		stats.ShardCounts[i] = len(shard.items)
		stats.TotalItems += len(shard.items)
		for _, q := range shard.items {
			if oldest.IsZero() || q.UpdatedAt.Before(oldest) {
				oldest = q.UpdatedAt
			}
		}
		shard.mu.RUnlock()
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	return stats
}
