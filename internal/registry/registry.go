// Package registry owns platform configuration: validated registration and
// updates, TTL-cached lookups, derived extension configs, and manifest
// permission checks.
//
// Reads are cache-first with a short TTL; writes evict eagerly. Correctness
// over efficiency: registrations are rare, lookups are hot.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/AustinZ21/Privyloop-sub001/internal/idgen"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"
)

// Re-exported types from internal/store for use by cmd/ and external callers.
type (
	Platform  = store.Platform
	Selector  = store.Selector
	RateLimit = store.RateLimit
)

// DefaultTTL is how long platform configs stay cached.
const DefaultTTL = 5 * time.Minute

// defaultRateLimit applies when a platform omits its own rate policy.
var defaultRateLimit = RateLimit{RequestsPerMinute: 10, CooldownMinutes: 1}

// ExtensionConfig is the derived view served to the browser extension:
// everything it needs to scrape one platform, JSON-serialisable.
type ExtensionConfig struct {
	PlatformID     string              `json:"platformId"`
	ScrapingConfig map[string]Selector `json:"selectors"`
	Permissions    []string            `json:"permissions"`
	RateLimit      RateLimit           `json:"rateLimit"`
	Version        string              `json:"version"`
}

// Registry serves validated platform configuration.
type Registry struct {
	store  *store.Store
	cache  Cache
	logger *slog.Logger
	newID  idgen.Generator
}

// New creates a Registry. A nil cache gets a MemoryCache with DefaultTTL.
func New(s *store.Store, cache Cache, logger *slog.Logger) *Registry {
	if cache == nil {
		cache = NewMemoryCache(DefaultTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  s,
		cache:  cache,
		logger: logger,
		newID:  idgen.Prefixed("plt_", idgen.Default),
	}
}

// GetPlatformConfig returns an active platform by ID, cache-first. Unknown
// or inactive platforms yield (nil, nil).
func (r *Registry) GetPlatformConfig(ctx context.Context, id string) (*Platform, error) {
	if p, ok := r.cache.Get(id); ok {
		return p, nil
	}
	p, err := r.store.GetPlatform(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("registry: get platform: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	r.cache.Set(id, p)
	return p, nil
}

// GetPlatformBySlug returns an active, supported platform by slug. Not
// cached — slug lookups are far less frequent than ID lookups.
func (r *Registry) GetPlatformBySlug(ctx context.Context, slug string) (*Platform, error) {
	p, err := r.store.GetPlatformBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("registry: get platform by slug: %w", err)
	}
	return p, nil
}

// GetExtensionConfig returns the scraping view for the extension client, or
// nil for unknown platforms. The rate limit falls back to the registry-wide
// default when the platform omits one.
func (r *Registry) GetExtensionConfig(ctx context.Context, id string) (*ExtensionConfig, error) {
	p, err := r.GetPlatformConfig(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}

	rateLimit := defaultRateLimit
	if p.RateLimit != nil {
		rateLimit = *p.RateLimit
	}
	return &ExtensionConfig{
		PlatformID:     p.ID,
		ScrapingConfig: p.Selectors,
		Permissions:    p.ManifestPatterns,
		RateLimit:      rateLimit,
		Version:        p.ConfigVersion,
	}, nil
}

// RegisterPlatform validates and inserts a new platform, returning its ID.
// The whole cache is invalidated: registrations are rare enough that the
// simple, obviously-correct eviction wins.
func (r *Registry) RegisterPlatform(ctx context.Context, p *Platform) (string, error) {
	if err := validatePlatformInput(p); err != nil {
		return "", err
	}

	if p.ID == "" {
		p.ID = r.newID()
	}
	if p.ConfigVersion == "" {
		p.ConfigVersion = "v1"
	}
	p.IsActive = true

	if err := r.store.InsertPlatform(ctx, p); err != nil {
		return "", fmt.Errorf("registry: insert platform: %w", err)
	}
	r.cache.Purge()

	r.logger.Info("registry: platform registered",
		"platform_id", p.ID, "slug", p.Slug, "config_version", p.ConfigVersion)
	return p.ID, nil
}

// PlatformUpdate holds the fields UpdatePlatform may change. Nil pointers
// and nil maps mean "leave as is".
type PlatformUpdate struct {
	Name             *string
	Domain           *string
	WebsiteURL       *string
	PrivacyPageURL   *string
	Selectors        map[string]Selector
	RateLimit        *RateLimit
	ManifestPatterns []string
	IsSupported      *bool
}

// UpdatePlatform applies a partial update, validating any changed scraping
// config, bumps the config version, and evicts the platform's cache entry.
// Returns false if the platform does not exist.
func (r *Registry) UpdatePlatform(ctx context.Context, id string, upd *PlatformUpdate) (bool, error) {
	p, err := r.store.GetPlatform(ctx, id, false)
	if err != nil {
		return false, fmt.Errorf("registry: get platform: %w", err)
	}
	if p == nil {
		return false, nil
	}

	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Domain != nil {
		p.Domain = *upd.Domain
	}
	if upd.WebsiteURL != nil {
		p.WebsiteURL = *upd.WebsiteURL
	}
	if upd.PrivacyPageURL != nil {
		p.PrivacyPageURL = *upd.PrivacyPageURL
	}
	if upd.Selectors != nil {
		if err := validateSelectors(upd.Selectors); err != nil {
			return false, err
		}
		p.Selectors = upd.Selectors
	}
	if upd.RateLimit != nil {
		if err := validateRateLimit(upd.RateLimit); err != nil {
			return false, err
		}
		p.RateLimit = upd.RateLimit
	}
	if upd.ManifestPatterns != nil {
		p.ManifestPatterns = upd.ManifestPatterns
	}
	if upd.IsSupported != nil {
		p.IsSupported = *upd.IsSupported
	}
	p.ConfigVersion = bumpVersion(p.ConfigVersion)

	ok, err := r.store.UpdatePlatform(ctx, p)
	if err != nil {
		return false, fmt.Errorf("registry: update platform: %w", err)
	}
	r.cache.Delete(id)

	if ok {
		r.logger.Info("registry: platform updated",
			"platform_id", id, "config_version", p.ConfigVersion)
	}
	return ok, nil
}

// DeactivatePlatform marks a platform inactive and evicts its cache entry.
func (r *Registry) DeactivatePlatform(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.DeactivatePlatform(ctx, id)
	if err != nil {
		return false, fmt.Errorf("registry: deactivate platform: %w", err)
	}
	r.cache.Delete(id)

	if ok {
		r.logger.Info("registry: platform deactivated", "platform_id", id)
	}
	return ok, nil
}

// ValidatePermissions reports whether every URL matches at least one of the
// platform's manifest glob patterns. Evaluated only against the cached
// entry: nothing cached means false, not "unknown" — fail closed.
func (r *Registry) ValidatePermissions(id string, urls []string) bool {
	p, ok := r.cache.Get(id)
	if !ok {
		return false
	}

	patterns := make([]*regexp.Regexp, 0, len(p.ManifestPatterns))
	for _, pat := range p.ManifestPatterns {
		re, err := compileGlob(pat)
		if err != nil {
			r.logger.Warn("registry: bad manifest pattern", "platform_id", id, "pattern", pat)
			continue
		}
		patterns = append(patterns, re)
	}

	for _, u := range urls {
		matched := false
		for _, re := range patterns {
			if re.MatchString(u) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// compileGlob turns a manifest glob into an anchored regexp:
// '*' matches any run, '?' any single character, everything else literal.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// bumpVersion advances a monotonic "vN" config version.
func bumpVersion(v string) string {
	var n int
	if _, err := fmt.Sscanf(v, "v%d", &n); err != nil {
		return v + ".1"
	}
	return fmt.Sprintf("v%d", n+1)
}
