package scrape

import (
	"context"
	"errors"
	"fmt"

	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// Scan methods.
const (
	MethodExtension = "extension"
	MethodFirecrawl = "firecrawl"
)

// Context describes one scrape request.
type Context struct {
	PlatformID  string `json:"platformId"`
	UserID      string `json:"userId"`
	Method      string `json:"method"`
	SessionHint string `json:"sessionHint,omitempty"`
}

// ErrInvalidContext is returned when a scrape request fails validation.
var ErrInvalidContext = errors.New("scrape: invalid context")

// Validate checks the request before any work begins. The method set is
// open-ended (unrecognised methods fall back to the default timeout), but a
// method must be named.
func (c *Context) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: context is required", ErrInvalidContext)
	}
	if c.PlatformID == "" {
		return fmt.Errorf("%w: platformId is required", ErrInvalidContext)
	}
	if c.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidContext)
	}
	if c.Method == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidContext)
	}
	return nil
}

// Error codes. Non-retryable codes mean the caller must change the request;
// retryable ones should be retried with backoff — the engine itself never
// retries.
const (
	CodeValidation          = "validation"
	CodePlatformNotFound    = "platform_not_found"
	CodeScraperNotAvailable = "scraper_not_available"
	CodeFallbackUnavailable = "fallback_unavailable"
	CodeScrapingError       = "scraping_error"
	CodeFallbackError       = "fallback_error"
	CodeUnknown             = "unknown"
)

// Error is the typed failure carried by a Result.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Type      string         `json:"type"` // configuration | transient
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// Metadata describes how a scrape went.
type Metadata struct {
	ScanID           string  `json:"scanId"`
	StartedAt        int64   `json:"startedAt"`
	CompletedAt      int64   `json:"completedAt"`
	DurationMs       int64   `json:"durationMs"`
	CompletionRate   float64 `json:"completionRate"`
	Confidence       float64 `json:"confidenceScore"`
	ElementsFound    int     `json:"elementsFound"`
	ElementsExpected int     `json:"elementsExpected"`
	Method           string  `json:"method"`
	PageMarkdown     string  `json:"pageMarkdown,omitempty"`
}

// Result is the typed outcome of a scrape. Every path through the engine
// returns one; exceptions never cross the boundary.
type Result struct {
	Success  bool                  `json:"success"`
	Data     settings.UserSettings `json:"data,omitempty"`
	Metadata *Metadata             `json:"metadata,omitempty"`
	Error    *Error                `json:"error,omitempty"`
}

// Scraper is the opaque per-platform scraping capability, typically backed
// by the browser extension. It may be slow and may fail.
type Scraper interface {
	CanScrape(ctx context.Context, sc *Context) bool
	Scrape(ctx context.Context, sc *Context) (*Result, error)
}

// RemoteCrawler is the server-side fallback path used when the primary
// scraper cannot operate. Rate limiting and retries are the crawler's own
// concern, configured at construction time.
type RemoteCrawler interface {
	ScrapePrivacyPage(ctx context.Context, pageURL string, sc *Context) (*Result, error)
}

func errorResult(code, message string, retryable bool, details map[string]any) *Result {
	errType := "configuration"
	if retryable {
		errType = "transient"
	}
	return &Result{
		Success: false,
		Error: &Error{
			Code:      code,
			Message:   message,
			Type:      errType,
			Retryable: retryable,
			Details:   details,
		},
	}
}
