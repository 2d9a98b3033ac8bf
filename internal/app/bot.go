// Package app wires the deal bot runtime and drives its posting loop.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dealwire-hq/dealwire/internal/config"
	"github.com/dealwire-hq/dealwire/internal/content"
	"github.com/dealwire-hq/dealwire/internal/dashboard"
	"github.com/dealwire-hq/dealwire/internal/dedup"
	"github.com/dealwire-hq/dealwire/internal/logger"
	"github.com/dealwire-hq/dealwire/internal/pipeline"
	"github.com/dealwire-hq/dealwire/internal/scraper"
	"github.com/dealwire-hq/dealwire/internal/storage"
	"github.com/dealwire-hq/dealwire/internal/telegram"
	"github.com/dealwire-hq/dealwire/pkg/affiliate"
	"github.com/dealwire-hq/dealwire/pkg/announce"
	"github.com/dealwire-hq/dealwire/pkg/linkcheck"
)

// Bot is the deal bot runtime. It owns the scraper, the posting pipeline,
// and the storage backend, and runs the scheduled posting loop.
type Bot struct {
	cfg       *config.Config
	sources   []scraper.Source
	scraper   *scraper.Scraper
	validator *linkcheck.Validator
	generator *content.Generator
	pipe      *pipeline.Pipeline
	fanout    *announce.Fanout
	store     storage.Store
	dash      *dashboard.Server
	log       logger.Logger
}

// NewBot builds the runtime from config files.
func NewBot(ctx context.Context, cfg *config.Config, log logger.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	sources, err := scraper.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	for i := range sources {
		if cfg.MaxDealsPerSource > 0 && sources[i].MaxItems > cfg.MaxDealsPerSource {
			sources[i].MaxItems = cfg.MaxDealsPerSource
		}
	}
	sourceIDs := make([]string, 0, len(sources))
	for _, src := range sources {
		sourceIDs = append(sourceIDs, src.ID)
	}
	log.InfoObj("sources loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                 cfg.StorageType,
		"path":                 cfg.BBoltPath,
		"retention_days":       cfg.DealRetentionDays,
		"cleanup_interval_hrs": cfg.CleanupIntervalHours,
	})

	validator := linkcheck.New(linkcheck.Config{
		Timeout:    cfg.ValidatorTimeout,
		MaxRetries: cfg.ValidatorMaxRetries,
	}, log)

	guard := dedup.New(store, log)

	var backend content.Backend
	if cfg.ContentConfigured() {
		backend = content.NewAnthropicBackend(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	} else {
		log.WarnObj("no content backend configured, using templates", "content_config", cfg.ContentStyle)
	}
	generator := content.New(backend, log)

	var channel pipeline.Channel
	if cfg.BotConfigured() {
		tg, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramChannel, log)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init telegram client: %w", err)
		}
		channel = tg
	} else {
		log.WarnObj("telegram not configured, running in dry mode", "channel_config", cfg.TelegramChannel)
		channel = telegram.NopChannel{}
	}

	fanout, err := buildFanout(ctx, cfg.AnnouncersFile, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	links := affiliate.NewBuilder(cfg.AffiliateTag, cfg.DefaultRegion, nil)

	pipe := pipeline.New(validator, guard, generator, channel, store, links, fanout, pipeline.Options{
		Style:         cfg.ContentStyle,
		Region:        cfg.DefaultRegion,
		DedupLookback: cfg.DedupLookback,
		ItemDelay:     cfg.ItemDelay,
		MaxConcurrent: cfg.MaxConcurrentChecks,
	}, log)

	var dash *dashboard.Server
	if cfg.DashboardAddr != "" {
		dash = dashboard.New(cfg.DashboardAddr, store, log)
	}

	return &Bot{
		cfg:       cfg,
		sources:   sources,
		scraper:   scraper.New(nil, log),
		validator: validator,
		generator: generator,
		pipe:      pipe,
		fanout:    fanout,
		store:     store,
		dash:      dash,
		log:       log,
	}, nil
}

// buildFanout constructs the announce fanout, or nil when no announcers
// file is configured.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*announce.Fanout, error) {
	if path == "" {
		return nil, nil
	}

	reg, err := announce.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load announcers registry: %w", err)
	}
	enabled := reg.Enabled()
	sinks, err := announce.BuildAll(ctx, announce.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build announcers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, cfg := range enabled {
		summaries = append(summaries, map[string]string{"id": cfg.ID, "type": cfg.Type})
	}
	log.InfoObj("announcers loaded", "announcers_meta", map[string]any{
		"count":      len(enabled),
		"announcers": summaries,
	})
	return announce.NewFanout(sinks), nil
}

// Run starts the posting loop until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b == nil || b.pipe == nil {
		return fmt.Errorf("bot is not initialized")
	}
	defer b.close()

	if b.dash != nil {
		go func() {
			if err := b.dash.Run(ctx); err != nil {
				b.log.ErrorObj("dashboard stopped", "error", err)
			}
		}()
	}

	if len(b.sources) == 0 {
		b.log.WarnObj("no sources configured; bot idle", "sources_file", b.cfg.SourcesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	b.log.InfoObj("posting loop starting", "bot_state", map[string]any{
		"sources_count": len(b.sources),
		"post_interval": b.cfg.PostInterval.String(),
		"content_state": b.generator.State().String(),
	})

	b.runOnce(ctx)

	ticker := time.NewTicker(b.cfg.PostInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(b.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.InfoObj("posting loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			b.runOnce(ctx)
		case <-cleanup.C:
			b.cleanupOnce(ctx)
		}
	}
}

// runOnce harvests every source and runs the posting pipeline over it.
func (b *Bot) runOnce(ctx context.Context) {
	start := time.Now()

	if b.generator.State() == content.StateDegraded && b.cfg.ContentConfigured() {
		b.generator.Recheck(ctx)
	}

	posted := 0
	for _, src := range b.sources {
		select {
		case <-ctx.Done():
			return
		default:
		}

		candidates := b.scraper.Harvest(ctx, []scraper.Source{src})
		posted += b.pipe.RunCycle(ctx, src.ID, candidates)
	}

	b.log.InfoObj("posting run completed", "run_meta", map[string]any{
		"sources_count": len(b.sources),
		"posted":        posted,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
}

// cleanupOnce removes deals past the retention horizon.
func (b *Bot) cleanupOnce(ctx context.Context) {
	deleted, err := b.store.CleanupOldDeals(ctx, b.cfg.DealRetention)
	if err != nil {
		b.log.ErrorObj("deal cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		b.log.InfoObj("old deals removed", "cleanup_meta", map[string]any{"deleted": deleted})
	}
}

// close releases the validator and storage backend.
func (b *Bot) close() {
	if b == nil {
		return
	}
	if b.validator != nil {
		b.validator.Close()
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			b.log.ErrorObj("storage close failed", "error", err)
		}
	}
}
