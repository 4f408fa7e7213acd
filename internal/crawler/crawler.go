// Package crawler implements the server-side fallback scraping path: when
// the browser extension cannot operate, the privacy page is fetched over
// plain HTTP and its settings controls are extracted from the static HTML.
// No browser, no JS — covers pages that render their settings server-side.
//
// Rate limiting, retries, and response caching are handled here, configured
// at construction time; callers just ask for a page.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/AustinZ21/Privyloop-sub001/internal/idgen"
	"github.com/AustinZ21/Privyloop-sub001/internal/scrape"
)

// Config configures the crawler.
type Config struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxBytes          int64         `yaml:"max_bytes"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "privyloop-crawler/1.0"
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 10
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

type cachedPage struct {
	html      string
	fetchedAt time.Time
}

// Crawler fetches privacy pages and extracts settings from static HTML.
type Crawler struct {
	cfg         Config
	client      *http.Client
	logger      *slog.Logger
	newID       idgen.Generator
	mdConverter *converter.Converter

	mu     sync.Mutex
	recent []time.Time // request timestamps inside the sliding window
	cache  map[string]cachedPage
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(cr *Crawler) { cr.client = c }
}

// New creates a Crawler.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Crawler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Crawler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		newID:  idgen.Prefixed("scan_", idgen.Default),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		cache: make(map[string]cachedPage),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ScrapePrivacyPage fetches pageURL (through the cache and rate limiter) and
// extracts settings controls from its HTML. Implements scrape.RemoteCrawler.
func (c *Crawler) ScrapePrivacyPage(ctx context.Context, pageURL string, sc *scrape.Context) (*scrape.Result, error) {
	start := time.Now()

	html, err := c.page(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	data, found, err := extractSettings(html)
	if err != nil {
		return nil, fmt.Errorf("crawler: parse %s: %w", pageURL, err)
	}
	if found == 0 {
		return nil, fmt.Errorf("crawler: no settings controls found on %s", pageURL)
	}

	markdown := ""
	if md, err := c.mdConverter.ConvertString(html, converter.WithDomain(pageURL)); err == nil {
		markdown = md
	}

	completed := time.Now()
	return &scrape.Result{
		Success: true,
		Data:    data,
		Metadata: &scrape.Metadata{
			ScanID:           c.newID(),
			StartedAt:        start.UnixMilli(),
			CompletedAt:      completed.UnixMilli(),
			DurationMs:       completed.Sub(start).Milliseconds(),
			CompletionRate:   1.0,
			Confidence:       serverSideConfidence,
			ElementsFound:    found,
			ElementsExpected: found,
			Method:           scrape.MethodFirecrawl,
			PageMarkdown:     markdown,
		},
	}, nil
}

// serverSideConfidence is deliberately below the extension's: static HTML
// misses controls rendered client-side.
const serverSideConfidence = 0.6

// page returns a cached page when fresh, otherwise fetches it.
func (c *Crawler) page(ctx context.Context, pageURL string) (string, error) {
	c.mu.Lock()
	if entry, ok := c.cache[pageURL]; ok && time.Since(entry.fetchedAt) < c.cfg.CacheTTL {
		c.mu.Unlock()
		c.logger.Debug("crawler: cache hit", "url", pageURL)
		return entry.html, nil
	}
	c.mu.Unlock()

	html, err := c.fetchWithRetry(ctx, pageURL)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[pageURL] = cachedPage{html: html, fetchedAt: time.Now()}
	c.mu.Unlock()
	return html, nil
}

// fetchWithRetry GETs the page, retrying transient failures (network errors
// and 5xx) with exponential backoff. 4xx responses are not retried.
func (c *Crawler) fetchWithRetry(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.RetryBackoff * (1 << uint(attempt-1))
			c.logger.Warn("crawler: retrying fetch",
				"url", pageURL, "attempt", attempt, "backoff_ms", wait.Milliseconds(), "error", lastErr)
			select {
			case <-ctx.Done():
				return "", lastErr
			case <-time.After(wait):
			}
		}

		html, retryable, err := c.fetch(ctx, pageURL)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (html string, retryable bool, err error) {
	if err := c.waitForSlot(ctx); err != nil {
		return "", false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("crawler: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("crawler: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("crawler: %s returned %d", pageURL, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", false, fmt.Errorf("crawler: %s returned %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes))
	if err != nil {
		return "", true, fmt.Errorf("crawler: read body: %w", err)
	}

	c.logger.Debug("crawler: fetched", "url", pageURL, "status", resp.StatusCode, "size", len(body))
	return string(body), false, nil
}

// waitForSlot blocks until the sliding-window rate limit admits a request.
func (c *Crawler) waitForSlot(ctx context.Context) error {
	for {
		c.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)
		keep := c.recent[:0]
		for _, t := range c.recent {
			if t.After(cutoff) {
				keep = append(keep, t)
			}
		}
		c.recent = keep

		if len(c.recent) < c.cfg.RequestsPerMinute {
			c.recent = append(c.recent, now)
			c.mu.Unlock()
			return nil
		}
		wait := c.recent[0].Sub(cutoff)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
