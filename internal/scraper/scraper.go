package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealwire-hq/dealwire/internal/domain"
	"github.com/dealwire-hq/dealwire/internal/logger"
	"github.com/dealwire-hq/dealwire/pkg/httpclient"
)

const (
	maxHTMLBodyBytes   = 2 << 20 // 2 MiB
	defaultHTTPTimeout = 20 * time.Second
)

var (
	ratingPattern  = regexp.MustCompile(`([0-9.]+) out of 5`)
	percentPattern = regexp.MustCompile(`-?\d+%`)
	asinPattern    = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
)

var listingHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// Scraper fetches listing pages and extracts deal candidates.
type Scraper struct {
	client httpclient.Client
	log    logger.Logger
}

// New constructs a scraper with the provided HTTP client (or default).
func New(client httpclient.Client, log logger.Logger) *Scraper {
	if client == nil {
		client = httpclient.NewRestyClient(defaultHTTPTimeout)
	}
	return &Scraper{client: client, log: logger.Ensure(log)}
}

// Harvest fetches every source (with throttling between pages) and returns
// the combined candidate list. A failing source is logged and skipped.
func (s *Scraper) Harvest(ctx context.Context, sources []Source) []domain.Candidate {
	var out []domain.Candidate

	for i, src := range sources {
		select {
		case <-ctx.Done():
			return out
		default:
		}

		candidates, err := s.fetchSource(ctx, src)
		if err != nil {
			s.log.WarnObj("source harvest failed", "scrape_error", map[string]any{
				"source_id": src.ID,
				"url":       src.URL,
				"error":     err.Error(),
			})
		} else {
			s.log.InfoObj("source harvested", "scrape", map[string]any{
				"source_id":  src.ID,
				"candidates": len(candidates),
			})
			out = append(out, candidates...)
		}

		if delay := src.RequestDelay(); delay > 0 && i < len(sources)-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out
			case <-timer.C:
			}
		}
	}

	return out
}

func (s *Scraper) fetchSource(ctx context.Context, src Source) ([]domain.Candidate, error) {
	resp, err := s.client.Get(ctx, src.URL, listingHeaders)
	if err != nil {
		return nil, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	candidates, err := parseCandidates(body, src)
	if err != nil {
		return nil, err
	}
	if len(candidates) > src.MaxItems {
		candidates = candidates[:src.MaxItems]
	}
	return candidates, nil
}

// parseCandidates extracts product entries from listing markup. Entries
// without a title or link are dropped, price may legitimately be absent on
// sold-out items and is kept empty for the pipeline to filter.
func parseCandidates(body []byte, src Source) ([]domain.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	var out []domain.Candidate
	doc.Find("div[data-asin]").Each(func(_ int, sel *goquery.Selection) {
		asin := strings.TrimSpace(sel.AttrOr("data-asin", ""))
		if asin == "" {
			return
		}

		c := domain.Candidate{
			ASIN:     asin,
			Category: src.Category,
		}

		c.Title = strings.TrimSpace(sel.Find("h2 span").First().Text())
		if c.Title == "" {
			c.Title = strings.TrimSpace(sel.Find("h2").First().Text())
		}

		c.Price = strings.TrimSpace(sel.Find("span.a-price span.a-offscreen").First().Text())
		if c.Price == "" {
			c.Price = strings.TrimSpace(sel.Find("span.a-offscreen").First().Text())
		}

		c.Discount = extractDiscount(sel)
		c.Link = extractLink(sel, base, asin)
		c.ImageURL = sel.Find("img.s-image").First().AttrOr("src", "")
		c.Rating = extractRating(sel)
		c.ReviewCount = extractReviewCount(sel)

		if c.Title == "" || c.Link == "" {
			return
		}
		out = append(out, c)
	})

	return out, nil
}

func extractLink(sel *goquery.Selection, base *url.URL, asin string) string {
	href := sel.Find("a.a-link-normal").First().AttrOr("href", "")
	if href == "" {
		href = sel.Find("h2 a").First().AttrOr("href", "")
	}
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)

	// Listing links carry heavy tracking query state. Collapse to the
	// canonical product URL when the ASIN is visible in the path.
	if m := asinPattern.FindStringSubmatch(abs.Path); len(m) == 2 {
		return fmt.Sprintf("https://%s/dp/%s", abs.Host, m[1])
	}
	if asin != "" {
		return fmt.Sprintf("https://%s/dp/%s", abs.Host, asin)
	}
	return abs.String()
}

func extractDiscount(sel *goquery.Selection) string {
	badge := strings.TrimSpace(sel.Find("span.a-badge-text").First().Text())
	if m := percentPattern.FindString(badge); m != "" {
		return strings.TrimPrefix(m, "-") + " off"
	}

	var found string
	sel.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if m := percentPattern.FindString(text); m != "" && strings.Contains(strings.ToLower(text), "off") {
			found = strings.TrimPrefix(m, "-") + " off"
			return false
		}
		return true
	})
	return found
}

func extractRating(sel *goquery.Selection) float64 {
	alt := sel.Find("span.a-icon-alt").First().Text()
	m := ratingPattern.FindStringSubmatch(alt)
	if len(m) != 2 {
		return 0
	}
	rating, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return rating
}

func extractReviewCount(sel *goquery.Selection) int {
	text := strings.TrimSpace(sel.Find("span.s-underline-text").First().Text())
	if text == "" {
		return 0
	}
	text = strings.NewReplacer(",", "", "(", "", ")", "").Replace(text)
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return count
}
