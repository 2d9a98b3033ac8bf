// Package dashboard serves deal stats and the click-through redirect.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealwire-hq/dealwire/internal/domain"
	"github.com/dealwire-hq/dealwire/internal/logger"
)

const (
	defaultRecentHours = 24
	defaultDealLimit   = 50
	maxDealLimit       = 200
)

// DealReader is the slice of the store the dashboard needs.
type DealReader interface {
	Deal(ctx context.Context, id int64) (domain.Deal, bool, error)
	RecentDeals(ctx context.Context, window time.Duration, limit int, category string) ([]domain.Deal, error)
	RecordClick(ctx context.Context, evt domain.ClickEvent) error
	Stats(ctx context.Context) (domain.DealStats, error)
}

// Server exposes the HTTP dashboard and the /go/:id redirect.
type Server struct {
	store DealReader
	log   logger.Logger
	http  *http.Server
}

// New builds the server for the given listen address.
func New(addr string, store DealReader, log logger.Logger) *Server {
	s := &Server{store: store, log: logger.Ensure(log)}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/stats", s.handleStats)
	router.GET("/api/deals", s.handleDeals)
	router.GET("/go/:id", s.handleRedirect)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.InfoObj("dashboard listening", "dashboard", map[string]any{"addr": s.http.Addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.log.ErrorObj("stats query failed", "dashboard_error", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_deals":       stats.TotalDeals,
		"recent_deals":      stats.RecentDeals,
		"total_clicks":      stats.TotalClicks,
		"total_conversions": stats.TotalConversions,
		"total_earnings":    stats.TotalEarnings,
		"active_users":      stats.ActiveUsers,
		"conversion_rate":   stats.ConversionRate(),
		"category_stats":    stats.CategoryCounts,
		"source_stats":      stats.SourceCounts,
	})
}

func (s *Server) handleDeals(c *gin.Context) {
	hours := intQuery(c, "hours", defaultRecentHours)
	limit := intQuery(c, "limit", defaultDealLimit)
	if limit > maxDealLimit {
		limit = maxDealLimit
	}
	category := c.Query("category")

	deals, err := s.store.RecentDeals(c.Request.Context(), time.Duration(hours)*time.Hour, limit, category)
	if err != nil {
		s.log.ErrorObj("deals query failed", "dashboard_error", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deals unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(deals),
		"deals": deals,
	})
}

// handleRedirect records the click and bounces the visitor to the
// affiliate link.
func (s *Server) handleRedirect(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deal id"})
		return
	}

	deal, found, err := s.store.Deal(c.Request.Context(), id)
	if err != nil {
		s.log.ErrorObj("deal lookup failed", "dashboard_error", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if !found || !deal.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "deal not found"})
		return
	}

	evt := domain.ClickEvent{
		DealID:    id,
		ClickedAt: time.Now().UTC(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
	if err := s.store.RecordClick(c.Request.Context(), evt); err != nil {
		// The redirect still happens, a lost click is not worth a 500.
		s.log.WarnObj("click record failed", "dashboard_click_error", map[string]any{
			"deal_id": id,
			"error":   err.Error(),
		})
	}

	c.Redirect(http.StatusFound, deal.AffiliateLink)
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
