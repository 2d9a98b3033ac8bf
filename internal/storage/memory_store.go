package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dealwire-hq/dealwire/internal/domain"
)

// MemoryStore keeps everything in process memory. It serves development
// runs and environments without a writable disk.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	deals  map[int64]domain.Deal
	users  map[int64]domain.User
	clicks []domain.ClickEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		deals:  make(map[int64]domain.Deal),
		users:  make(map[int64]domain.User),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) AddDeal(_ context.Context, c domain.Candidate, affiliateLink, source, style string) (domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deal := dealFromCandidate(c, affiliateLink, source, style, time.Now().UTC())
	deal.ID = m.nextID
	m.nextID++
	m.deals[deal.ID] = deal
	return deal, nil
}

func (m *MemoryStore) Deal(_ context.Context, id int64) (domain.Deal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	deal, ok := m.deals[id]
	return deal, ok, nil
}

func (m *MemoryStore) DealByASIN(_ context.Context, asin string) (domain.Deal, bool, error) {
	if asin == "" {
		return domain.Deal{}, false, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest domain.Deal
	found := false
	for _, deal := range m.deals {
		if deal.ASIN != asin {
			continue
		}
		if !found || deal.PostedAt.After(latest.PostedAt) {
			latest = deal
			found = true
		}
	}
	return latest, found, nil
}

func (m *MemoryStore) RecentDeals(_ context.Context, window time.Duration, limit int, category string) ([]domain.Deal, error) {
	cutoff := time.Now().UTC().Add(-window)

	m.mu.RLock()
	out := make([]domain.Deal, 0, len(m.deals))
	for _, deal := range m.deals {
		if !deal.Active || deal.PostedAt.Before(cutoff) {
			continue
		}
		if category != "" && category != "all" && deal.Category != category {
			continue
		}
		out = append(out, deal)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateDealStats(_ context.Context, id int64, clicks, conversions int, earnings float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deal, ok := m.deals[id]
	if !ok {
		return errDealNotFound(id)
	}
	deal.Clicks += clicks
	deal.Conversions += conversions
	deal.Earnings += earnings
	deal.UpdatedAt = time.Now().UTC()
	m.deals[id] = deal
	return nil
}

func (m *MemoryStore) CleanupOldDeals(_ context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, deal := range m.deals {
		if deal.PostedAt.Before(cutoff) {
			delete(m.deals, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) UpsertUser(_ context.Context, u domain.User) (domain.User, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.users[u.UserID]; ok {
		existing.LastSeen = now
		if u.Category != "" {
			existing.Category = u.Category
		}
		if u.Region != "" {
			existing.Region = u.Region
		}
		m.users[u.UserID] = existing
		return existing, nil
	}

	u = normalizeNewUser(u, now)
	m.users[u.UserID] = u
	return u, nil
}

func (m *MemoryStore) User(_ context.Context, userID int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	return u, ok, nil
}

func (m *MemoryStore) ActiveUsers(_ context.Context, within time.Duration) ([]domain.User, error) {
	cutoff := time.Now().UTC().Add(-within)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if u.Active && !u.LastSeen.Before(cutoff) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

func (m *MemoryStore) RecordClick(_ context.Context, evt domain.ClickEvent) error {
	if evt.ClickedAt.IsZero() {
		evt.ClickedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.clicks = append(m.clicks, evt)
	deal, ok := m.deals[evt.DealID]
	if ok {
		deal.Clicks++
		deal.UpdatedAt = time.Now().UTC()
		m.deals[evt.DealID] = deal
	}
	m.mu.Unlock()

	if !ok {
		return errDealNotFound(evt.DealID)
	}
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (domain.DealStats, error) {
	recentCutoff := time.Now().UTC().Add(-recentStatsWindow)

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := domain.DealStats{
		CategoryCounts: map[string]int{},
		SourceCounts:   map[string]int{},
	}
	for _, deal := range m.deals {
		if !deal.Active {
			continue
		}
		stats.TotalDeals++
		stats.TotalClicks += deal.Clicks
		stats.TotalConversions += deal.Conversions
		stats.TotalEarnings += deal.Earnings
		if !deal.PostedAt.Before(recentCutoff) {
			stats.RecentDeals++
		}
		if deal.Category != "" {
			stats.CategoryCounts[deal.Category]++
		}
		if deal.Source != "" {
			stats.SourceCounts[deal.Source]++
		}
	}
	for _, u := range m.users {
		if u.Active {
			stats.ActiveUsers++
		}
	}
	return stats, nil
}
