// Package scrape orchestrates privacy-settings scraping: it resolves the
// platform and a scraper capability, races the scrape against a per-method
// timeout, falls back to a remote crawler when the primary path cannot
// operate, and hands successful extractions to the template engine for
// compression and persistence.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/AustinZ21/Privyloop-sub001/internal/idgen"
	"github.com/AustinZ21/Privyloop-sub001/internal/registry"
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"
	"github.com/AustinZ21/Privyloop-sub001/internal/template"
)

// Config holds the engine's timeout table. Timeouts are fixed at process
// start; there is no runtime reconfiguration.
type Config struct {
	// Timeouts maps scan method → scrape deadline.
	Timeouts map[string]time.Duration
	// DefaultTimeout applies to unrecognised methods.
	DefaultTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Timeouts == nil {
		c.Timeouts = make(map[string]time.Duration)
	}
	if c.Timeouts[MethodExtension] <= 0 {
		c.Timeouts[MethodExtension] = 2 * time.Minute
	}
	if c.Timeouts[MethodFirecrawl] <= 0 {
		c.Timeouts[MethodFirecrawl] = time.Minute
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 90 * time.Second
	}
}

// Engine is the scraping orchestrator. The sole mutation entry point is
// Scrape; everything else is registration and observability.
type Engine struct {
	registry  *registry.Registry
	templates *template.System
	store     *store.Store
	crawler   RemoteCrawler // nil when no fallback is configured
	cfg       Config
	logger    *slog.Logger
	newScanID idgen.Generator
	newSnapID idgen.Generator
	locks     *keyedMutex

	mu       sync.RWMutex
	scrapers map[string]Scraper // keyed by platform slug
}

// New creates an Engine. The crawler may be nil; the fallback path then
// reports fallback_unavailable.
func New(reg *registry.Registry, templates *template.System, s *store.Store, crawler RemoteCrawler, cfg Config, logger *slog.Logger) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:  reg,
		templates: templates,
		store:     s,
		crawler:   crawler,
		cfg:       cfg,
		logger:    logger,
		newScanID: idgen.Prefixed("scan_", idgen.Default),
		newSnapID: idgen.Prefixed("snap_", idgen.Default),
		locks:     newKeyedMutex(),
		scrapers:  make(map[string]Scraper),
	}
}

// RegisterScraper registers the scraping capability for a platform slug.
// Called once at startup per supported platform.
func (e *Engine) RegisterScraper(slug string, s Scraper) {
	e.mu.Lock()
	e.scrapers[slug] = s
	e.mu.Unlock()
	e.logger.Info("engine: scraper registered", "slug", slug)
}

// AvailableScrapers returns the slugs with a registered scraper, sorted.
func (e *Engine) AvailableScrapers() []string {
	e.mu.RLock()
	slugs := make([]string, 0, len(e.scrapers))
	for slug := range e.scrapers {
		slugs = append(slugs, slug)
	}
	e.mu.RUnlock()
	sort.Strings(slugs)
	return slugs
}

func (e *Engine) scraperFor(slug string) Scraper {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scrapers[slug]
}

// Scrape runs one scrape request end to end and always returns a typed
// Result — panics and internal errors are converted, never propagated.
func (e *Engine) Scrape(ctx context.Context, sc *Context) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine: panic during scrape", "panic", r)
			res = errorResult(CodeUnknown, fmt.Sprintf("internal error: %v", r), true, nil)
		}
	}()

	if err := sc.Validate(); err != nil {
		return errorResult(CodeValidation, err.Error(), false, nil)
	}

	platform, err := e.registry.GetPlatformConfig(ctx, sc.PlatformID)
	if err != nil {
		return errorResult(CodeUnknown, err.Error(), true, nil)
	}
	if platform == nil {
		return errorResult(CodePlatformNotFound,
			fmt.Sprintf("platform %q not found or inactive", sc.PlatformID), false, nil)
	}

	scraper := e.scraperFor(platform.Slug)
	if scraper == nil {
		return errorResult(CodeScraperNotAvailable,
			fmt.Sprintf("no scraper registered for platform %q", platform.Slug), false, nil)
	}

	start := time.Now()

	if !scraper.CanScrape(ctx, sc) {
		e.logger.Info("engine: primary scraper declined, using fallback",
			"platform", platform.Slug, "user_id", sc.UserID)
		return e.fallback(ctx, platform, sc, start)
	}

	result := e.race(ctx, scraper, sc)
	if !result.Success {
		return result
	}

	e.stampMetadata(result, sc.Method, start)
	e.finish(ctx, platform, sc, result)
	return result
}

// race runs the scraper against the per-method timeout with first-to-settle
// semantics. The losing scrape is not cancelled — its result is simply
// discarded, so scrapers must not write anything until told to commit.
func (e *Engine) race(ctx context.Context, scraper Scraper, sc *Context) *Result {
	timeout := e.timeoutFor(sc.Method)

	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("scraper panic: %v", r)}
			}
		}()
		res, err := scraper.Scrape(ctx, sc)
		ch <- outcome{res: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			return errorResult(CodeScrapingError, out.err.Error(), true, nil)
		}
		if out.res == nil {
			return errorResult(CodeScrapingError, "scraper returned no result", true, nil)
		}
		return out.res
	case <-timer.C:
		return errorResult(CodeScrapingError,
			fmt.Sprintf("scrape timed out after %s", timeout), true,
			map[string]any{"elapsedMs": timeout.Milliseconds()})
	case <-ctx.Done():
		return errorResult(CodeScrapingError, ctx.Err().Error(), true, nil)
	}
}

// fallback routes the request through the remote crawler.
func (e *Engine) fallback(ctx context.Context, platform *registry.Platform, sc *Context, start time.Time) *Result {
	if e.crawler == nil {
		return errorResult(CodeFallbackUnavailable, "no remote crawler configured", false, nil)
	}

	pageURL := platform.PrivacyPageURL
	if pageURL == "" {
		pageURL = platform.WebsiteURL
	}
	if pageURL == "" {
		pageURL = "https://" + platform.Domain
	}

	fc := *sc
	fc.Method = MethodFirecrawl

	res, err := e.crawler.ScrapePrivacyPage(ctx, pageURL, &fc)
	if err != nil {
		return errorResult(CodeFallbackError, err.Error(), true,
			map[string]any{"url": pageURL})
	}
	if !res.Success {
		details := map[string]any{"url": pageURL}
		if res.Error != nil {
			details["cause"] = res.Error.Message
		}
		return errorResult(CodeFallbackError, "remote crawler failed", true, details)
	}

	e.stampMetadata(res, MethodFirecrawl, start)
	e.finish(ctx, platform, &fc, res)
	return res
}

// Submit ingests an extraction performed outside the engine — the browser
// extension scrapes in-page and posts its results. The data goes through the
// same post-processing pipeline as an engine-driven scrape: template
// matching, compression, diffing, persistence.
func (e *Engine) Submit(ctx context.Context, sc *Context, data settings.UserSettings, meta *Metadata) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine: panic during submit", "panic", r)
			res = errorResult(CodeUnknown, fmt.Sprintf("internal error: %v", r), true, nil)
		}
	}()

	if err := sc.Validate(); err != nil {
		return errorResult(CodeValidation, err.Error(), false, nil)
	}
	if len(data) == 0 {
		return errorResult(CodeValidation, "data is required", false, nil)
	}

	platform, err := e.registry.GetPlatformConfig(ctx, sc.PlatformID)
	if err != nil {
		return errorResult(CodeUnknown, err.Error(), true, nil)
	}
	if platform == nil {
		return errorResult(CodePlatformNotFound,
			fmt.Sprintf("platform %q not found or inactive", sc.PlatformID), false, nil)
	}

	res = &Result{Success: true, Data: data, Metadata: meta}
	e.stampMetadata(res, sc.Method, time.Now())
	e.finish(ctx, platform, sc, res)
	return res
}

// stampMetadata fills in scan identity and timing the scraper did not set.
// Values the scraper already reported are kept.
func (e *Engine) stampMetadata(res *Result, method string, start time.Time) {
	if res.Metadata == nil {
		res.Metadata = &Metadata{}
	}
	m := res.Metadata
	if m.ScanID == "" {
		m.ScanID = e.newScanID()
	}
	if m.StartedAt == 0 {
		m.StartedAt = start.UnixMilli()
	}
	if m.CompletedAt == 0 {
		m.CompletedAt = time.Now().UnixMilli()
	}
	if m.DurationMs == 0 {
		m.DurationMs = m.CompletedAt - m.StartedAt
	}
	if m.Method == "" {
		m.Method = method
	}
}

func (e *Engine) timeoutFor(method string) time.Duration {
	if t, ok := e.cfg.Timeouts[method]; ok && t > 0 {
		return t
	}
	return e.cfg.DefaultTimeout
}

// Stats reports snapshot counters and the derived success rate, optionally
// scoped to one platform. Read-only.
type Stats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"successRate"`
}

// Stats returns scraping statistics. An empty platformID means all
// platforms.
func (e *Engine) Stats(ctx context.Context, platformID string) (*Stats, error) {
	counts, err := e.store.ScrapeCounts(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("engine: counts: %w", err)
	}
	stats := &Stats{Total: counts.Total, Successful: counts.Successful}
	if stats.Total > 0 {
		stats.SuccessRate = math.Round(float64(stats.Successful)/float64(stats.Total)*100) / 100
	}
	return stats, nil
}
