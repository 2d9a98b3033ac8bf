// Package announce notifies downstream sinks whenever a deal is posted.
package announce

import (
	"time"

	"github.com/dealwire-hq/dealwire/internal/domain"
)

// DealPosted is the payload delivered to every configured sink.
type DealPosted struct {
	DealID       int64     `json:"deal_id"`
	ASIN         string    `json:"asin,omitempty"`
	Title        string    `json:"title"`
	Category     string    `json:"category,omitempty"`
	Price        string    `json:"price"`
	Discount     string    `json:"discount,omitempty"`
	AffiliateURL string    `json:"affiliate_url"`
	Source       string    `json:"source"`
	PostedAt     time.Time `json:"posted_at"`
}

// NewDealPosted builds the event for a freshly persisted deal.
func NewDealPosted(deal domain.Deal) DealPosted {
	return DealPosted{
		DealID:       deal.ID,
		ASIN:         deal.ASIN,
		Title:        deal.Title,
		Category:     deal.Category,
		Price:        deal.Price,
		Discount:     deal.Discount,
		AffiliateURL: deal.AffiliateLink,
		Source:       deal.Source,
		PostedAt:     deal.PostedAt.UTC(),
	}
}
