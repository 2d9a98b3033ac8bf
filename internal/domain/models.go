package domain

import "time"

// Domain contains core models shared across packages.

// Candidate is an unvalidated, unpersisted product record produced by the
// scraper. It becomes a Deal only after link validation and dedup pass.
type Candidate struct {
	Title       string  `json:"title"`
	Price       string  `json:"price"`
	Discount    string  `json:"discount"`
	Link        string  `json:"link"`
	Category    string  `json:"category"`
	ASIN        string  `json:"asin,omitempty"`
	Description string  `json:"description,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// Postable reports whether the candidate carries the minimum fields
// required before any network cost is spent on it.
func (c Candidate) Postable() bool {
	return c.Title != "" && c.Price != "" && c.Link != ""
}

// Deal is a posted candidate as persisted by the store.
type Deal struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Price         string    `json:"price"`
	Discount      string    `json:"discount"`
	Category      string    `json:"category"`
	Source        string    `json:"source"`
	ASIN          string    `json:"asin,omitempty"`
	AffiliateLink string    `json:"affiliate_link"`
	OriginalLink  string    `json:"original_link"`
	Description   string    `json:"description,omitempty"`
	Content       string    `json:"generated_content,omitempty"`
	ContentStyle  string    `json:"content_style"`
	Rating        float64   `json:"rating,omitempty"`
	ReviewCount   int       `json:"review_count,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Clicks        int       `json:"clicks"`
	Conversions   int       `json:"conversions"`
	Earnings      float64   `json:"earnings"`
	PostedAt      time.Time `json:"posted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Active        bool      `json:"is_active"`
}

// User is a channel subscriber with posting preferences.
type User struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Category    string    `json:"category"`
	Region      string    `json:"region"`
	Active      bool      `json:"is_active"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeen    time.Time `json:"last_seen"`
	TotalClicks int       `json:"total_clicks"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "user"
	}
}

// ClickEvent records a single click-through on a posted deal.
type ClickEvent struct {
	DealID    int64     `json:"deal_id"`
	UserID    int64     `json:"user_id,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
}

// DealStats aggregates posting and performance counters for the dashboard.
type DealStats struct {
	TotalDeals       int            `json:"total_deals"`
	RecentDeals      int            `json:"recent_deals"`
	TotalClicks      int            `json:"total_clicks"`
	TotalConversions int            `json:"total_conversions"`
	TotalEarnings    float64        `json:"total_earnings"`
	ActiveUsers      int            `json:"active_users"`
	CategoryCounts   map[string]int `json:"category_stats,omitempty"`
	SourceCounts     map[string]int `json:"source_stats,omitempty"`
}

// ConversionRate returns conversions as a percentage of clicks.
func (s DealStats) ConversionRate() float64 {
	if s.TotalClicks == 0 {
		return 0
	}
	return float64(s.TotalConversions) / float64(s.TotalClicks) * 100
}
