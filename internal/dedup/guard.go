// Package dedup decides whether a candidate was already posted recently.
package dedup

import (
	"context"
	"time"

	"github.com/dealwire-hq/dealwire/internal/domain"
	"github.com/dealwire-hq/dealwire/internal/logger"
)

// DealLookup is the slice of the store the guard needs.
type DealLookup interface {
	DealByASIN(ctx context.Context, asin string) (domain.Deal, bool, error)
}

// Guard answers repost checks against the deal store. Lookup failures
// never block posting: an occasional duplicate beats a stalled channel.
type Guard struct {
	store DealLookup
	log   logger.Logger
}

// New creates a Guard over the given lookup.
func New(store DealLookup, log logger.Logger) *Guard {
	return &Guard{store: store, log: logger.Ensure(log)}
}

// IsDuplicate reports whether a deal with this identifier was posted within
// the lookback window. An empty identifier is never a duplicate.
func (g *Guard) IsDuplicate(ctx context.Context, asin string, lookback time.Duration) bool {
	if asin == "" {
		return false
	}

	deal, found, err := g.store.DealByASIN(ctx, asin)
	if err != nil {
		g.log.WarnObj("dedup lookup failed, allowing post", "dedup", map[string]interface{}{
			"asin":  asin,
			"error": err.Error(),
		})
		return false
	}
	if !found {
		return false
	}

	age := time.Since(deal.PostedAt.UTC())
	if age >= lookback {
		return false
	}

	g.log.DebugObj("duplicate within lookback", "dedup", map[string]interface{}{
		"asin":        asin,
		"posted_at":   deal.PostedAt.UTC().Format(time.RFC3339),
		"age_seconds": int64(age / time.Second),
	})
	return true
}
