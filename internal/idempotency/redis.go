package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/nimasrn/receipt-gateway/pkg/redis"
)

const (
	redisEntryPrefix = "receipt:cache:"
	redisIndexKey    = "receipt:cache:index"
)

type redisEntry struct {
	StoredAt time.Time           `json:"stored_at"`
	Result   model.ReceiptResult `json:"result"`
}

// RedisCache shares cached results between API instances. Entries expire
// through the Redis TTL; an index set tracks live keys for sizing and
// clearing. Redis failures degrade to cache misses.
type RedisCache struct {
	redis      redis.RedisAdapter
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewRedisCache(adapter redis.RedisAdapter, ttl time.Duration, maxEntries int) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisCache{
		redis:      adapter,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.ReceiptResult, bool) {
	raw, err := c.redis.Get(ctx, redisEntryPrefix+key)
	if err != nil {
		if !errors.Is(err, redis.NilError) {
			logger.Warn("idempotency cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		logger.Warn("idempotency cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	if c.now().Sub(e.StoredAt) >= c.ttl {
		return nil, false
	}
	return &e.Result, true
}

func (c *RedisCache) Put(ctx context.Context, key string, result *model.ReceiptResult) {
	if result == nil {
		return
	}
	raw, err := json.Marshal(redisEntry{StoredAt: c.now(), Result: *result})
	if err != nil {
		logger.Warn("idempotency cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, redisEntryPrefix+key, raw, c.ttl); err != nil {
		logger.Warn("idempotency cache write failed", "key", key, "error", err)
		return
	}
	if err := c.redis.SAdd(ctx, redisIndexKey, key); err != nil {
		logger.Warn("idempotency cache index write failed", "key", key, "error", err)
		return
	}

	size, err := c.redis.SCard(ctx, redisIndexKey)
	if err == nil && int(size) > c.maxEntries {
		c.Prune(ctx)
	}
}

func (c *RedisCache) Prune(ctx context.Context) int {
	keys, err := c.redis.SMembers(ctx, redisIndexKey)
	if err != nil {
		logger.Warn("idempotency cache index read failed", "error", err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		n, err := c.redis.Exist(ctx, redisEntryPrefix+key)
		if err != nil || n > 0 {
			continue
		}
		if err := c.redis.SRem(ctx, redisIndexKey, key); err == nil {
			removed++
		}
	}
	return removed
}

func (c *RedisCache) Clear(ctx context.Context) int {
	keys, err := c.redis.SMembers(ctx, redisIndexKey)
	if err != nil {
		logger.Warn("idempotency cache index read failed", "error", err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		n, err := c.redis.Exist(ctx, redisEntryPrefix+key)
		if err == nil && n > 0 {
			removed++
		}
		if err := c.redis.Del(ctx, redisEntryPrefix+key); err != nil {
			logger.Warn("idempotency cache delete failed", "key", key, "error", err)
		}
	}
	if err := c.redis.Del(ctx, redisIndexKey); err != nil {
		logger.Warn("idempotency cache index delete failed", "error", err)
	}
	return removed
}

func (c *RedisCache) Stats(ctx context.Context) model.CacheStats {
	size, err := c.redis.SCard(ctx, redisIndexKey)
	if err != nil {
		logger.Warn("idempotency cache size read failed", "error", err)
		return stats(0, c.maxEntries)
	}
	return stats(int(size), c.maxEntries)
}
