// Package pipeline runs one posting cycle: filter, validate, dedup,
// generate, post, persist.
package pipeline

import (
	"context"
	"time"

	"github.com/dealwire-hq/dealwire/internal/domain"
	"github.com/dealwire-hq/dealwire/internal/logger"
	"github.com/dealwire-hq/dealwire/pkg/affiliate"
	"github.com/dealwire-hq/dealwire/pkg/announce"
	"github.com/dealwire-hq/dealwire/pkg/linkcheck"
)

// Validator checks a batch of links concurrently.
type Validator interface {
	ValidateBatch(ctx context.Context, urls []string, maxConcurrent int) ([]linkcheck.Result, error)
}

// Guard answers repost checks.
type Guard interface {
	IsDuplicate(ctx context.Context, asin string, lookback time.Duration) bool
}

// Generator produces the post text for a candidate.
type Generator interface {
	Generate(ctx context.Context, c domain.Candidate, affiliateURL, style string) string
}

// Channel posts text to the outbound channel.
type Channel interface {
	Send(ctx context.Context, text string) error
}

// DealStore persists posted deals.
type DealStore interface {
	AddDeal(ctx context.Context, c domain.Candidate, affiliateLink, source, style string) (domain.Deal, error)
}

// Announcer fans a posted-deal event out to downstream sinks.
type Announcer interface {
	Announce(ctx context.Context, evt announce.DealPosted) (int, error)
	Size() int
}

// Options tunes one pipeline instance.
type Options struct {
	Style         string
	Region        string
	DedupLookback time.Duration
	ItemDelay     time.Duration
	MaxConcurrent int
}

// Pipeline orchestrates a posting cycle end to end.
type Pipeline struct {
	validator Validator
	guard     Guard
	generator Generator
	channel   Channel
	store     DealStore
	links     *affiliate.Builder
	announcer Announcer
	opts      Options
	log       logger.Logger
}

// New wires a pipeline. The announcer may be nil when no sinks are
// configured.
func New(validator Validator, guard Guard, generator Generator, channel Channel, store DealStore, links *affiliate.Builder, announcer Announcer, opts Options, log logger.Logger) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = linkcheck.DefaultMaxConcurrent
	}
	return &Pipeline{
		validator: validator,
		guard:     guard,
		generator: generator,
		channel:   channel,
		store:     store,
		links:     links,
		announcer: announcer,
		opts:      opts,
		log:       logger.Ensure(log),
	}
}

// RunCycle processes one batch of candidates for a source and returns how
// many deals were posted. Per-item failures are contained: one bad item
// never aborts the cycle, and zero posts is a normal outcome.
func (p *Pipeline) RunCycle(ctx context.Context, source string, candidates []domain.Candidate) int {
	postable := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Postable() {
			postable = append(postable, c)
		}
	}
	if len(postable) == 0 {
		return 0
	}

	// Validation runs against the affiliate URLs, not the raw listing links.
	affiliateURLs := make([]string, len(postable))
	for i, c := range postable {
		affiliateURLs[i] = p.links.Build(c.Link, p.opts.Region)
	}
	results, err := p.validator.ValidateBatch(ctx, affiliateURLs, p.opts.MaxConcurrent)
	if err != nil {
		p.log.ErrorObj("link validation aborted", "pipeline_error", map[string]any{
			"source": source,
			"error":  err.Error(),
		})
		return 0
	}

	posted := 0
	for i, c := range postable {
		select {
		case <-ctx.Done():
			return posted
		default:
		}

		result := results[i]
		if !result.Valid {
			p.log.DebugObj("candidate rejected by link check", "pipeline_reject", map[string]any{
				"source": source,
				"url":    affiliateURLs[i],
				"reason": result.Reason,
			})
			continue
		}

		asin := c.ASIN
		if asin == "" {
			asin = affiliate.ExtractASIN(c.Link)
			c.ASIN = asin
		}
		if p.guard.IsDuplicate(ctx, asin, p.opts.DedupLookback) {
			p.log.DebugObj("candidate skipped as recent repost", "pipeline_duplicate", map[string]any{
				"source": source,
				"asin":   asin,
			})
			continue
		}

		if p.postOne(ctx, source, c, affiliateURLs[i]) {
			posted++
		}

		if p.opts.ItemDelay > 0 && i < len(postable)-1 {
			if !sleepCtx(ctx, p.opts.ItemDelay) {
				return posted
			}
		}
	}

	p.log.InfoObj("posting cycle finished", "pipeline", map[string]any{
		"source":     source,
		"candidates": len(candidates),
		"posted":     posted,
	})
	return posted
}

// postOne generates, sends, and persists a single deal. A send failure is
// logged but the deal is still persisted so the dedup horizon covers it.
func (p *Pipeline) postOne(ctx context.Context, source string, c domain.Candidate, affiliateURL string) bool {
	text := p.generator.Generate(ctx, c, affiliateURL, p.opts.Style)

	if err := p.channel.Send(ctx, text); err != nil {
		p.log.WarnObj("channel send failed, persisting anyway", "pipeline_send_error", map[string]any{
			"source": source,
			"asin":   c.ASIN,
			"error":  err.Error(),
		})
	}

	deal, err := p.store.AddDeal(ctx, c, affiliateURL, source, p.opts.Style)
	if err != nil {
		p.log.ErrorObj("deal persist failed", "pipeline_store_error", map[string]any{
			"source": source,
			"asin":   c.ASIN,
			"error":  err.Error(),
		})
		return false
	}

	if p.announcer != nil && p.announcer.Size() > 0 {
		if _, err := p.announcer.Announce(ctx, announce.NewDealPosted(deal)); err != nil {
			p.log.WarnObj("announce fanout reported failures", "pipeline_announce_error", map[string]any{
				"deal_id": deal.ID,
				"error":   err.Error(),
			})
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
