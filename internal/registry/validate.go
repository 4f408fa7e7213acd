package registry

import (
	"errors"
	"fmt"

	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// ErrInvalidConfig is returned when a platform configuration fails
// validation. Callers should surface it as a 4xx-class failure.
var ErrInvalidConfig = errors.New("registry: invalid platform configuration")

// supportedSlugs is the fixed set of platforms the scraping stack knows how
// to handle. Registering anything else is a configuration error.
var supportedSlugs = map[string]bool{
	"google":    true,
	"facebook":  true,
	"instagram": true,
	"linkedin":  true,
	"twitter":   true,
	"tiktok":    true,
	"microsoft": true,
	"amazon":    true,
	"openai":    true,
	"anthropic": true,
}

// Rate limit bounds.
const (
	minRequestsPerMinute = 1
	maxRequestsPerMinute = 60
	minCooldownMinutes   = 0
	maxCooldownMinutes   = 60
)

// validatePlatformInput checks a full platform record before insert.
func validatePlatformInput(p *Platform) error {
	if !supportedSlugs[p.Slug] {
		return fmt.Errorf("%w: unsupported platform slug %q", ErrInvalidConfig, p.Slug)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if p.Domain == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidConfig)
	}
	if p.PrivacyPageURL == "" {
		return fmt.Errorf("%w: privacy page URL is required", ErrInvalidConfig)
	}
	if err := validateSelectors(p.Selectors); err != nil {
		return err
	}
	if err := validateRateLimit(p.RateLimit); err != nil {
		return err
	}
	return nil
}

// validateSelectors checks the scraping recipe: non-empty, valid selector
// types, non-empty locators.
func validateSelectors(selectors map[string]Selector) error {
	if len(selectors) == 0 {
		return fmt.Errorf("%w: scraping config must declare at least one selector", ErrInvalidConfig)
	}
	for id, sel := range selectors {
		if sel.Locator == "" {
			return fmt.Errorf("%w: selector %q has an empty locator", ErrInvalidConfig, id)
		}
		if !settings.KnownType(sel.Type) {
			return fmt.Errorf("%w: selector %q has unknown type %q", ErrInvalidConfig, id, sel.Type)
		}
	}
	return nil
}

// validateRateLimit checks bounds on an optional rate policy.
func validateRateLimit(rl *RateLimit) error {
	if rl == nil {
		return nil
	}
	if rl.RequestsPerMinute < minRequestsPerMinute || rl.RequestsPerMinute > maxRequestsPerMinute {
		return fmt.Errorf("%w: requests per minute must be in [%d,%d]",
			ErrInvalidConfig, minRequestsPerMinute, maxRequestsPerMinute)
	}
	if rl.CooldownMinutes < minCooldownMinutes || rl.CooldownMinutes > maxCooldownMinutes {
		return fmt.Errorf("%w: cooldown minutes must be in [%d,%d]",
			ErrInvalidConfig, minCooldownMinutes, maxCooldownMinutes)
	}
	return nil
}
