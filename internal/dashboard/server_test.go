package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealwire-hq/dealwire/internal/domain"
)

type stubReader struct {
	deals    map[int64]domain.Deal
	recent   []domain.Deal
	stats    domain.DealStats
	clicks   []domain.ClickEvent
	clickErr error

	lastWindow   time.Duration
	lastLimit    int
	lastCategory string
}

func (s *stubReader) Deal(_ context.Context, id int64) (domain.Deal, bool, error) {
	deal, ok := s.deals[id]
	return deal, ok, nil
}

func (s *stubReader) RecentDeals(_ context.Context, window time.Duration, limit int, category string) ([]domain.Deal, error) {
	s.lastWindow = window
	s.lastLimit = limit
	s.lastCategory = category
	return s.recent, nil
}

func (s *stubReader) RecordClick(_ context.Context, evt domain.ClickEvent) error {
	if s.clickErr != nil {
		return s.clickErr
	}
	s.clicks = append(s.clicks, evt)
	return nil
}

func (s *stubReader) Stats(context.Context) (domain.DealStats, error) {
	return s.stats, nil
}

func newTestServer(store *stubReader) *Server {
	return New(":0", store, nil)
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doGet(t, newTestServer(&stubReader{}), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	store := &stubReader{stats: domain.DealStats{
		TotalDeals:       5,
		TotalClicks:      10,
		TotalConversions: 2,
		CategoryCounts:   map[string]int{"electronics": 5},
	}}

	rec := doGet(t, newTestServer(store), "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["total_deals"].(float64) != 5 {
		t.Fatalf("total_deals = %v", body["total_deals"])
	}
	if body["conversion_rate"].(float64) != 20 {
		t.Fatalf("conversion_rate = %v", body["conversion_rate"])
	}
}

func TestDealsEndpointQueryParams(t *testing.T) {
	store := &stubReader{recent: []domain.Deal{{ID: 1, Title: "Echo Dot"}}}
	srv := newTestServer(store)

	rec := doGet(t, srv, "/api/deals?hours=48&limit=5&category=kitchen")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastWindow != 48*time.Hour {
		t.Fatalf("window = %v", store.lastWindow)
	}
	if store.lastLimit != 5 {
		t.Fatalf("limit = %d", store.lastLimit)
	}
	if store.lastCategory != "kitchen" {
		t.Fatalf("category = %q", store.lastCategory)
	}

	var body struct {
		Count int           `json:"count"`
		Deals []domain.Deal `json:"deals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Deals[0].Title != "Echo Dot" {
		t.Fatalf("body = %+v", body)
	}
}

func TestDealsEndpointDefaultsAndCaps(t *testing.T) {
	store := &stubReader{}
	srv := newTestServer(store)

	doGet(t, srv, "/api/deals")
	if store.lastWindow != defaultRecentHours*time.Hour || store.lastLimit != defaultDealLimit {
		t.Fatalf("defaults not applied: window=%v limit=%d", store.lastWindow, store.lastLimit)
	}

	doGet(t, srv, "/api/deals?limit=100000")
	if store.lastLimit != maxDealLimit {
		t.Fatalf("limit cap not applied: %d", store.lastLimit)
	}

	doGet(t, srv, "/api/deals?hours=junk")
	if store.lastWindow != defaultRecentHours*time.Hour {
		t.Fatalf("bad hours should fall back to default, got %v", store.lastWindow)
	}
}

func TestRedirectRecordsClick(t *testing.T) {
	store := &stubReader{deals: map[int64]domain.Deal{
		7: {ID: 7, Active: true, AffiliateLink: "https://www.amazon.com/dp/B08N5WRWNW?tag=deals-20"},
	}}
	srv := newTestServer(store)

	rec := doGet(t, srv, "/go/7")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://www.amazon.com/dp/B08N5WRWNW?tag=deals-20" {
		t.Fatalf("Location = %q", got)
	}
	if len(store.clicks) != 1 || store.clicks[0].DealID != 7 {
		t.Fatalf("clicks = %+v", store.clicks)
	}
}

func TestRedirectStillServedWhenClickRecordFails(t *testing.T) {
	store := &stubReader{
		deals:    map[int64]domain.Deal{7: {ID: 7, Active: true, AffiliateLink: "https://link"}},
		clickErr: errors.New("db closed"),
	}
	rec := doGet(t, newTestServer(store), "/go/7")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, redirect must survive click-record failure", rec.Code)
	}
}

func TestRedirectMissingDeal(t *testing.T) {
	rec := doGet(t, newTestServer(&stubReader{}), "/go/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRedirectInactiveDeal(t *testing.T) {
	store := &stubReader{deals: map[int64]domain.Deal{3: {ID: 3, Active: false, AffiliateLink: "https://link"}}}
	rec := doGet(t, newTestServer(store), "/go/3")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRedirectBadID(t *testing.T) {
	rec := doGet(t, newTestServer(&stubReader{}), "/go/not-a-number")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
