package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dealwire-hq/dealwire/internal/logger"
)

// Package linkcheck verifies that affiliate links are reachable before they
// are posted. Probes request only the first kilobyte of the body so a batch
// of checks stays cheap.

const (
	// DefaultMaxConcurrent bounds in-flight probes in ValidateBatch.
	DefaultMaxConcurrent = 10

	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = time.Second

	rangeHeader = "bytes=0-1023"
)

// ErrClosed is returned when a validator is used after Close.
var ErrClosed = errors.New("linkcheck: validator is closed")

// Reasons for locally rejected URLs. Probed failures carry "HTTP <code>"
// or a transport classification instead.
const (
	ReasonBadFormat    = "Invalid URL format"
	ReasonBadDomain    = "Not an accepted marketplace domain"
	ReasonTimeout      = "Request timeout"
	reasonClientPrefix = "Client error: "
	reasonExceptPrefix = "Exception: "
)

// defaultDomains are the marketplace hosts accepted out of the box.
var defaultDomains = []string{
	"amazon.com", "amazon.co.uk", "amazon.de", "amazon.fr",
	"amazon.it", "amazon.es", "amazon.ca", "amazon.com.mx",
	"amazon.com.br", "amazon.in", "amazon.co.jp", "amazon.com.au",
}

// browserHeaders reduce false rejections from anti-bot filters.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "no-cache",
	"Upgrade-Insecure-Requests": "1",
}

// Result is the outcome of a single validation attempt. It is immutable
// once returned and never persisted.
type Result struct {
	URL         string
	Valid       bool
	StatusCode  int
	Reason      string
	RedirectURL string
	Elapsed     time.Duration
}

// Config tunes a Validator. Zero values select sensible defaults.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	AllowedDomains []string
	// Transport overrides the HTTP transport, used by tests to count calls.
	Transport http.RoundTripper
}

// Validator classifies URLs as safe-to-post or not. It owns one pooled
// HTTP client and is safe for concurrent use until Close is called.
type Validator struct {
	client  *resty.Client
	domains map[string]struct{}
	retries int
	backoff time.Duration
	log     logger.Logger
	closed  atomic.Bool
}

// New builds a Validator. Close must be called when it is no longer needed.
func New(cfg Config, log logger.Logger) *Validator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if len(cfg.AllowedDomains) == 0 {
		cfg.AllowedDomains = defaultDomains
	}

	c := resty.New()
	c.SetTimeout(cfg.Timeout)
	c.SetHeaders(browserHeaders)
	if cfg.Transport != nil {
		c.SetTransport(cfg.Transport)
	} else {
		c.SetTransport(&http.Transport{
			MaxIdleConns:        20,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		})
	}

	domains := make(map[string]struct{}, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		domains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	return &Validator{
		client:  c,
		domains: domains,
		retries: cfg.MaxRetries,
		backoff: cfg.Backoff,
		log:     logger.Ensure(log),
	}
}

// Close shuts down the pooled connections. Using the validator afterwards
// is a programming error and reports ErrClosed.
func (v *Validator) Close() {
	if v.closed.Swap(true) {
		return
	}
	if t, ok := v.client.GetClient().Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	v.log.InfoObj("link validator closed", "component", "linkcheck")
}

// Validate classifies a single URL. The only error it returns is ErrClosed;
// every network or format problem is reported inside the Result.
func (v *Validator) Validate(ctx context.Context, rawURL string) (Result, error) {
	if v.closed.Load() {
		return Result{}, ErrClosed
	}

	start := time.Now()

	if !validFormat(rawURL) {
		return Result{URL: rawURL, Reason: ReasonBadFormat}, nil
	}
	if !v.acceptedDomain(rawURL) {
		return Result{URL: rawURL, Reason: ReasonBadDomain}, nil
	}

	for attempt := 0; ; attempt++ {
		res, retryable := v.probe(ctx, rawURL, start)
		if !retryable {
			return res, nil
		}
		if attempt >= v.retries {
			return res, nil
		}
		v.log.DebugObj("probe failed, retrying", "retry", map[string]any{
			"url":     rawURL,
			"attempt": attempt + 1,
			"reason":  res.Reason,
		})
		if !sleepCtx(ctx, v.backoff) {
			return res, nil
		}
	}
}

// probe issues one ranged GET. retryable is true only for transient
// transport failures; HTTP statuses are considered final.
func (v *Validator) probe(ctx context.Context, rawURL string, start time.Time) (Result, bool) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("Range", rangeHeader).
		Get(rawURL)
	if err != nil {
		return Result{
			URL:     rawURL,
			Reason:  classifyTransportErr(err),
			Elapsed: time.Since(start),
		}, true
	}

	status := resp.StatusCode()
	switch status {
	case http.StatusOK, http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		// 416 means the server refused the range but the resource exists.
		return Result{
			URL:         rawURL,
			Valid:       true,
			StatusCode:  status,
			RedirectURL: redirectOf(rawURL, resp),
			Elapsed:     time.Since(start),
		}, false
	case http.StatusMethodNotAllowed:
		return v.probePlain(ctx, rawURL, start), false
	default:
		return Result{
			URL:        rawURL,
			StatusCode: status,
			Reason:     fmt.Sprintf("HTTP %d", status),
			Elapsed:    time.Since(start),
		}, false
	}
}

// probePlain retries without the Range header for servers that reject the
// range mechanism outright. Only a plain 200 counts as success here.
func (v *Validator) probePlain(ctx context.Context, rawURL string, start time.Time) Result {
	resp, err := v.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return Result{
			URL:     rawURL,
			Reason:  classifyTransportErr(err),
			Elapsed: time.Since(start),
		}
	}
	if resp.StatusCode() == http.StatusOK {
		return Result{
			URL:         rawURL,
			Valid:       true,
			StatusCode:  http.StatusOK,
			RedirectURL: redirectOf(rawURL, resp),
			Elapsed:     time.Since(start),
		}
	}
	return Result{
		URL:        rawURL,
		StatusCode: resp.StatusCode(),
		Reason:     fmt.Sprintf("HTTP %d", resp.StatusCode()),
		Elapsed:    time.Since(start),
	}
}

// ValidateBatch validates urls concurrently with at most maxConcurrent
// in-flight probes. The output preserves input order: out[i] corresponds
// to urls[i]. A panic while validating one URL becomes a failure outcome
// for that URL alone.
func (v *Validator) ValidateBatch(ctx context.Context, urls []string, maxConcurrent int) ([]Result, error) {
	if v.closed.Load() {
		return nil, ErrClosed
	}
	if len(urls) == 0 {
		return []Result{}, nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	results := make([]Result, len(urls))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{URL: u, Reason: fmt.Sprintf("%s%v", reasonExceptPrefix, r)}
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := v.Validate(ctx, u)
			if err != nil {
				results[i] = Result{URL: u, Reason: reasonExceptPrefix + err.Error()}
				return
			}
			results[i] = res
		}(i, u)
	}
	wg.Wait()

	valid := 0
	for _, r := range results {
		if r.Valid {
			valid++
		}
	}
	v.log.InfoObj("link validation batch complete", "validation_summary", map[string]any{
		"total":   len(results),
		"valid":   valid,
		"invalid": len(results) - valid,
	})

	return results, nil
}

// Stats summarizes a slice of results, grouping failures by reason.
func Stats(results []Result) map[string]any {
	if len(results) == 0 {
		return map[string]any{}
	}

	valid := 0
	reasons := map[string]int{}
	var totalElapsed time.Duration
	timed := 0
	for _, r := range results {
		if r.Valid {
			valid++
		} else {
			reason := r.Reason
			if reason == "" {
				reason = "Unknown error"
			}
			reasons[reason]++
		}
		if r.Elapsed > 0 {
			totalElapsed += r.Elapsed
			timed++
		}
	}

	stats := map[string]any{
		"total_links":   len(results),
		"valid_links":   valid,
		"invalid_links": len(results) - valid,
		"success_rate":  float64(valid) / float64(len(results)) * 100,
	}
	if timed > 0 {
		stats["average_elapsed_ms"] = (totalElapsed / time.Duration(timed)).Milliseconds()
	}
	if len(reasons) > 0 {
		stats["error_breakdown"] = reasons
	}
	return stats
}

func validFormat(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func (v *Validator) acceptedDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	_, ok := v.domains[host]
	return ok
}

func redirectOf(rawURL string, resp *resty.Response) string {
	final := ""
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	if final == "" || final == rawURL {
		return ""
	}
	return final
}

func classifyTransportErr(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return reasonClientPrefix + err.Error()
}

// sleepCtx waits for d unless ctx is cancelled first.
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
