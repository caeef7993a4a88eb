package idempotency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/samber/lo"
)

type entry struct {
	storedAt time.Time
	result   model.ReceiptResult
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) fresh(e entry, now time.Time) bool {
	return now.Sub(e.storedAt) < c.ttl
}

func (c *MemoryCache) Get(_ context.Context, key string) (*model.ReceiptResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.fresh(e, c.now()) {
		return nil, false
	}
	res := e.result
	return &res, true
}

func (c *MemoryCache) Put(_ context.Context, key string, result *model.ReceiptResult) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{storedAt: c.now(), result: *result}
	if len(c.entries) > c.maxEntries {
		removed := c.pruneLocked()
		removed += c.evictLocked()
		logger.Debug("idempotency cache pruned", "removed", removed, "size", len(c.entries))
	}
}

func (c *MemoryCache) Prune(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

func (c *MemoryCache) Clear(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

func (c *MemoryCache) Stats(_ context.Context) model.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stats(len(c.entries), c.maxEntries)
}

func (c *MemoryCache) pruneLocked() int {
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !c.fresh(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// evictLocked drops the oldest entries until the size bound holds.
func (c *MemoryCache) evictLocked() int {
	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return 0
	}
	items := lo.Entries(c.entries)
	sort.Slice(items, func(i, j int) bool {
		return items[i].Value.storedAt.Before(items[j].Value.storedAt)
	})
	for _, item := range items[:excess] {
		delete(c.entries, item.Key)
	}
	return excess
}
