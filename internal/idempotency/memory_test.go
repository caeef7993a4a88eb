package idempotency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newResult(txID string) *model.ReceiptResult {
	return &model.ReceiptResult{
		Success:       true,
		TransactionID: txID,
		ReceiptNumber: "RECU-2024-12-01-DEF456",
		PDFGenerated:  true,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tx1:false:standard", Key("tx1", false, ""))
	assert.Equal(t, "tx1:true:high", Key("tx1", true, model.QualityHigh))
	assert.NotEqual(t, Key("tx1", false, model.QualityDraft), Key("tx1", true, model.QualityDraft))
}

func TestMemoryCache_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(DefaultTTL, DefaultMaxEntries).WithClock(clock.Now)
	ctx := context.Background()

	key := Key("abc123def456", false, model.QualityStandard)
	cache.Put(ctx, key, newResult("abc123def456"))

	clock.Advance(4*time.Minute + 59*time.Second)
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "RECU-2024-12-01-DEF456", got.ReceiptNumber)

	clock.Advance(2 * time.Second)
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	cache := NewMemoryCache(DefaultTTL, DefaultMaxEntries)
	ctx := context.Background()

	cache.Put(ctx, "k", newResult("tx1"))
	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	got.FromCache = true

	again, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.False(t, again.FromCache)
}

func TestMemoryCache_SizeBound(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(DefaultTTL, 3).WithClock(clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cache.Put(ctx, fmt.Sprintf("k%d", i), newResult("tx"))
		clock.Advance(time.Second)
	}
	assert.Equal(t, 3, cache.Stats(ctx).Size)

	cache.Put(ctx, "k3", newResult("tx"))
	assert.Equal(t, 3, cache.Stats(ctx).Size)

	_, ok := cache.Get(ctx, "k0")
	assert.False(t, ok, "oldest entry is evicted")
	_, ok = cache.Get(ctx, "k3")
	assert.True(t, ok)

	t.Run("expired entries go first", func(t *testing.T) {
		clock.Advance(10 * time.Minute)
		cache.Put(ctx, "k4", newResult("tx"))
		assert.Equal(t, 1, cache.Stats(ctx).Size)
	})
}

func TestMemoryCache_PruneAndClear(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(DefaultTTL, 10).WithClock(clock.Now)
	ctx := context.Background()

	cache.Put(ctx, "old-1", newResult("tx"))
	cache.Put(ctx, "old-2", newResult("tx"))
	clock.Advance(6 * time.Minute)
	cache.Put(ctx, "new", newResult("tx"))

	assert.Equal(t, 2, cache.Prune(ctx))
	stats := cache.Stats(ctx)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.MaxSize)
	assert.InDelta(t, 0.1, stats.Utilization, 0.0001)

	assert.Equal(t, 1, cache.Clear(ctx))
	assert.Equal(t, 0, cache.Stats(ctx).Size)
}
