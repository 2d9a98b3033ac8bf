package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dealwire-hq/dealwire/internal/domain"
)

// Package storage provides local persistence for deals, users, and clicks.

// Store is the single persistence interface. Two variants exist, selected
// once at startup: in-memory and bbolt. Call sites never inspect which one
// they were given.
type Store interface {
	// AddDeal persists a validated candidate as a posted deal and returns
	// the stored record with its assigned ID and timestamps.
	AddDeal(ctx context.Context, c domain.Candidate, affiliateLink, source, style string) (domain.Deal, error)

	// Deal returns a deal by ID.
	Deal(ctx context.Context, id int64) (domain.Deal, bool, error)

	// DealByASIN returns the most recently posted deal with the given
	// stable identifier.
	DealByASIN(ctx context.Context, asin string) (domain.Deal, bool, error)

	// RecentDeals returns active deals posted within the window, newest
	// first, optionally filtered by category. limit <= 0 means no limit.
	RecentDeals(ctx context.Context, window time.Duration, limit int, category string) ([]domain.Deal, error)

	// UpdateDealStats increments the deal's performance counters.
	UpdateDealStats(ctx context.Context, id int64, clicks, conversions int, earnings float64) error

	// CleanupOldDeals removes deals posted before the retention horizon
	// and returns how many were deleted.
	CleanupOldDeals(ctx context.Context, retention time.Duration) (int, error)

	// UpsertUser inserts the user or refreshes last-seen on an existing one.
	UpsertUser(ctx context.Context, u domain.User) (domain.User, error)

	// User returns a user by their channel user ID.
	User(ctx context.Context, userID int64) (domain.User, bool, error)

	// ActiveUsers returns users seen within the given duration.
	ActiveUsers(ctx context.Context, within time.Duration) ([]domain.User, error)

	// RecordClick stores a click event and bumps the deal's click counter.
	RecordClick(ctx context.Context, evt domain.ClickEvent) error

	// Stats aggregates posting and performance counters.
	Stats(ctx context.Context) (domain.DealStats, error)

	// Close gracefully shuts down the store.
	Close() error
}

const recentStatsWindow = 24 * time.Hour

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", "memory", "inmemory":
		return NewMemoryStore(), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// dealFromCandidate builds the persisted record shared by both variants.
func dealFromCandidate(c domain.Candidate, affiliateLink, source, style string, now time.Time) domain.Deal {
	return domain.Deal{
		Title:         c.Title,
		Price:         c.Price,
		Discount:      c.Discount,
		Category:      c.Category,
		Source:        source,
		ASIN:          c.ASIN,
		AffiliateLink: affiliateLink,
		OriginalLink:  c.Link,
		Description:   c.Description,
		ContentStyle:  style,
		Rating:        c.Rating,
		ReviewCount:   c.ReviewCount,
		ImageURL:      c.ImageURL,
		PostedAt:      now,
		UpdatedAt:     now,
		Active:        true,
	}
}

// normalizeNewUser fills the timestamps and flags a freshly inserted user.
func normalizeNewUser(u domain.User, now time.Time) domain.User {
	u.Active = true
	u.JoinedAt = now
	u.LastSeen = now
	if u.Category == "" {
		u.Category = "all"
	}
	return u
}

func errDealNotFound(id int64) error {
	return fmt.Errorf("deal %d not found", id)
}
