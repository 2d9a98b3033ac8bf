package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dealwire-hq/dealwire/internal/domain"
)

const (
	dealBucket      = "deals"
	dealASINBucket  = "deals_by_asin"
	userBucket      = "users"
	clickBucket     = "clicks"
	boltIDKeyBytes  = 8
	boltOpenTimeout = time.Second
)

// boltStore implements Store backed by a single BoltDB file.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store, creating the file and its
// parent directory if needed.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{dealBucket, dealASINBucket, userBucket, clickBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) AddDeal(_ context.Context, c domain.Candidate, affiliateLink, source, style string) (domain.Deal, error) {
	deal := dealFromCandidate(c, affiliateLink, source, style, time.Now().UTC())

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(dealBucket))
		if bucket == nil {
			return fmt.Errorf("deal bucket missing")
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocate deal id: %w", err)
		}
		deal.ID = int64(seq)

		value, err := json.Marshal(deal)
		if err != nil {
			return fmt.Errorf("encode deal: %w", err)
		}
		if err := bucket.Put(idKey(deal.ID), value); err != nil {
			return err
		}

		if deal.ASIN != "" {
			index := tx.Bucket([]byte(dealASINBucket))
			if index == nil {
				return fmt.Errorf("asin index bucket missing")
			}
			return index.Put([]byte(deal.ASIN), idKey(deal.ID))
		}
		return nil
	})
	if err != nil {
		return domain.Deal{}, err
	}
	return deal, nil
}

func (b *boltStore) Deal(_ context.Context, id int64) (domain.Deal, bool, error) {
	var (
		deal  domain.Deal
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(dealBucket))
		if bucket == nil {
			return fmt.Errorf("deal bucket missing")
		}
		value := bucket.Get(idKey(id))
		if value == nil {
			return nil
		}
		if err := json.Unmarshal(value, &deal); err != nil {
			return fmt.Errorf("decode deal %d: %w", id, err)
		}
		found = true
		return nil
	})
	return deal, found, err
}

func (b *boltStore) DealByASIN(_ context.Context, asin string) (domain.Deal, bool, error) {
	if asin == "" {
		return domain.Deal{}, false, nil
	}

	var (
		deal  domain.Deal
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(dealASINBucket))
		if index == nil {
			return fmt.Errorf("asin index bucket missing")
		}
		key := index.Get([]byte(asin))
		if key == nil {
			return nil
		}

		bucket := tx.Bucket([]byte(dealBucket))
		if bucket == nil {
			return fmt.Errorf("deal bucket missing")
		}
		value := bucket.Get(key)
		if value == nil {
			return nil
		}
		if err := json.Unmarshal(value, &deal); err != nil {
			return fmt.Errorf("decode deal for asin %s: %w", asin, err)
		}
		found = true
		return nil
	})
	return deal, found, err
}

func (b *boltStore) RecentDeals(_ context.Context, window time.Duration, limit int, category string) ([]domain.Deal, error) {
	cutoff := time.Now().UTC().Add(-window)

	var out []domain.Deal
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(dealBucket))
		if bucket == nil {
			return fmt.Errorf("deal bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var deal domain.Deal
			if err := json.Unmarshal(v, &deal); err != nil {
				return fmt.Errorf("decode deal: %w", err)
			}
			if !deal.Active || deal.PostedAt.Before(cutoff) {
				return nil
			}
			if category != "" && category != "all" && deal.Category != category {
				return nil
			}
			out = append(out, deal)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *boltStore) UpdateDealStats(_ context.Context, id int64, clicks, conversions int, earnings float64) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(dealBucket))
		if bucket == nil {
			return fmt.Errorf("deal bucket missing")
		}
		value := bucket.Get(idKey(id))
		if value == nil {
			return errDealNotFound(id)
		}

		var deal domain.Deal
		if err := json.Unmarshal(value, &deal); err != nil {
			return fmt.Errorf("decode deal %d: %w", id, err)
		}
		deal.Clicks += clicks
		deal.Conversions += conversions
		deal.Earnings += earnings
		deal.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(deal)
		if err != nil {
			return fmt.Errorf("encode deal %d: %w", id, err)
		}
		return bucket.Put(idKey(id), updated)
	})
}

func (b *boltStore) CleanupOldDeals(_ context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	deleted := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(dealBucket))
		if bucket == nil {
			return fmt.Errorf("deal bucket missing")
		}
		index := tx.Bucket([]byte(dealASINBucket))
		if index == nil {
			return fmt.Errorf("asin index bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var deal domain.Deal
			if err := json.Unmarshal(v, &deal); err != nil {
				return fmt.Errorf("decode deal: %w", err)
			}
			if !deal.PostedAt.Before(cutoff) {
				continue
			}
			if err := cursor.Delete(); err != nil {
				return err
			}
			// Drop the ASIN index entry only if it still points at the
			// record being removed.
			if deal.ASIN != "" {
				indexed := index.Get([]byte(deal.ASIN))
				if indexed != nil && binary.BigEndian.Uint64(indexed) == uint64(deal.ID) {
					if err := index.Delete([]byte(deal.ASIN)); err != nil {
						return err
					}
				}
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (b *boltStore) UpsertUser(_ context.Context, u domain.User) (domain.User, error) {
	now := time.Now().UTC()

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(userBucket))
		if bucket == nil {
			return fmt.Errorf("user bucket missing")
		}

		key := idKey(u.UserID)
		if value := bucket.Get(key); value != nil {
			var existing domain.User
			if err := json.Unmarshal(value, &existing); err != nil {
				return fmt.Errorf("decode user %d: %w", u.UserID, err)
			}
			existing.LastSeen = now
			if u.Category != "" {
				existing.Category = u.Category
			}
			if u.Region != "" {
				existing.Region = u.Region
			}
			u = existing
		} else {
			u = normalizeNewUser(u, now)
		}

		updated, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encode user %d: %w", u.UserID, err)
		}
		return bucket.Put(key, updated)
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (b *boltStore) User(_ context.Context, userID int64) (domain.User, bool, error) {
	var (
		u     domain.User
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(userBucket))
		if bucket == nil {
			return fmt.Errorf("user bucket missing")
		}
		value := bucket.Get(idKey(userID))
		if value == nil {
			return nil
		}
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("decode user %d: %w", userID, err)
		}
		found = true
		return nil
	})
	return u, found, err
}

func (b *boltStore) ActiveUsers(_ context.Context, within time.Duration) ([]domain.User, error) {
	cutoff := time.Now().UTC().Add(-within)

	var out []domain.User
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(userBucket))
		if bucket == nil {
			return fmt.Errorf("user bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var u domain.User
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("decode user: %w", err)
			}
			if u.Active && !u.LastSeen.Before(cutoff) {
				out = append(out, u)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

func (b *boltStore) RecordClick(_ context.Context, evt domain.ClickEvent) error {
	if evt.ClickedAt.IsZero() {
		evt.ClickedAt = time.Now().UTC()
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		deals := tx.Bucket([]byte(dealBucket))
		if deals == nil {
			return fmt.Errorf("deal bucket missing")
		}
		value := deals.Get(idKey(evt.DealID))
		if value == nil {
			return errDealNotFound(evt.DealID)
		}

		var deal domain.Deal
		if err := json.Unmarshal(value, &deal); err != nil {
			return fmt.Errorf("decode deal %d: %w", evt.DealID, err)
		}
		deal.Clicks++
		deal.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(deal)
		if err != nil {
			return fmt.Errorf("encode deal %d: %w", evt.DealID, err)
		}
		if err := deals.Put(idKey(evt.DealID), updated); err != nil {
			return err
		}

		clicks := tx.Bucket([]byte(clickBucket))
		if clicks == nil {
			return fmt.Errorf("click bucket missing")
		}
		seq, err := clicks.NextSequence()
		if err != nil {
			return fmt.Errorf("allocate click id: %w", err)
		}
		encoded, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode click: %w", err)
		}
		return clicks.Put(idKey(int64(seq)), encoded)
	})
}

func (b *boltStore) Stats(_ context.Context) (domain.DealStats, error) {
	recentCutoff := time.Now().UTC().Add(-recentStatsWindow)

	stats := domain.DealStats{
		CategoryCounts: map[string]int{},
		SourceCounts:   map[string]int{},
	}
	err := b.db.View(func(tx *bolt.Tx) error {
		deals := tx.Bucket([]byte(dealBucket))
		if deals == nil {
			return fmt.Errorf("deal bucket missing")
		}
		if err := deals.ForEach(func(k, v []byte) error {
			var deal domain.Deal
			if err := json.Unmarshal(v, &deal); err != nil {
				return fmt.Errorf("decode deal: %w", err)
			}
			if !deal.Active {
				return nil
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
			return nil
		}); err != nil {
			return err
		}

		users := tx.Bucket([]byte(userBucket))
		if users == nil {
			return fmt.Errorf("user bucket missing")
		}
		return users.ForEach(func(k, v []byte) error {
			var u domain.User
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("decode user: %w", err)
			}
			if u.Active {
				stats.ActiveUsers++
			}
			return nil
		})
	})
	if err != nil {
		return domain.DealStats{}, err
	}
	return stats, nil
}

// idKey encodes an int64 ID as a big-endian bucket key so deals iterate in
// insertion order.
func idKey(id int64) []byte {
	buf := make([]byte, boltIDKeyBytes)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
