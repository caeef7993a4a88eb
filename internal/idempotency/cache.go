package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// Cache short-circuits repeated pipeline runs for the same request. It is an
// optimization only: the durable delivery log remains the source of truth.
type Cache interface {
	// Get returns a copy of a fresh entry.
	Get(ctx context.Context, key string) (*model.ReceiptResult, bool)
	Put(ctx context.Context, key string, result *model.ReceiptResult)
	// Prune drops stale entries and returns how many were removed.
	Prune(ctx context.Context) int
	// Clear drops every entry and returns how many were removed.
	Clear(ctx context.Context) int
	Stats(ctx context.Context) model.CacheStats
}

// Key identifies a pipeline request by transaction, resend flag and quality.
func Key(transactionID string, resend bool, quality model.Quality) string {
	return fmt.Sprintf("%s:%t:%s", transactionID, resend, quality.Normalize())
}

func stats(size, maxEntries int) model.CacheStats {
	s := model.CacheStats{Size: size, MaxSize: maxEntries}
	if maxEntries > 0 {
		s.Utilization = float64(size) / float64(maxEntries)
	}
	return s
}
