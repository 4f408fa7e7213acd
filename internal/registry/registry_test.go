package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AustinZ21/Privyloop-sub001/internal/dbopen"
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"

	_ "modernc.org/sqlite"
)

func testRegistry(t *testing.T) (*Registry, *MemoryCache) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	cache := NewMemoryCache(DefaultTTL)
	return New(store.New(db), cache, nil), cache
}

func validPlatform() *Platform {
	return &Platform{
		Slug:           "google",
		Name:           "Google",
		Domain:         "google.com",
		WebsiteURL:     "https://google.com",
		PrivacyPageURL: "https://myaccount.google.com/privacy",
		Selectors: map[string]Selector{
			"ad-personalization": {Locator: "#ad-toggle", Type: settings.TypeToggle},
		},
		ManifestPatterns: []string{"*://myaccount.google.com/*"},
		IsSupported:      true,
	}
}

func TestRegisterPlatform(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterPlatform(ctx, validPlatform())
	if err != nil {
		t.Fatalf("RegisterPlatform: %v", err)
	}
	if id == "" {
		t.Fatal("empty platform id")
	}

	p, err := r.GetPlatformConfig(ctx, id)
	if err != nil {
		t.Fatalf("GetPlatformConfig: %v", err)
	}
	if p == nil {
		t.Fatal("registered platform not found")
	}
	if p.ConfigVersion != "v1" {
		t.Errorf("ConfigVersion = %q, want v1", p.ConfigVersion)
	}
	if !p.IsActive {
		t.Error("registered platform not active")
	}
}

func TestRegisterPlatformValidation(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Platform)
	}{
		{"unsupported slug", func(p *Platform) { p.Slug = "myspace" }},
		{"missing name", func(p *Platform) { p.Name = "" }},
		{"missing domain", func(p *Platform) { p.Domain = "" }},
		{"missing privacy page", func(p *Platform) { p.PrivacyPageURL = "" }},
		{"no selectors", func(p *Platform) { p.Selectors = nil }},
		{"empty locator", func(p *Platform) {
			p.Selectors = map[string]Selector{"x": {Locator: "", Type: settings.TypeToggle}}
		}},
		{"unknown selector type", func(p *Platform) {
			p.Selectors = map[string]Selector{"x": {Locator: "#x", Type: "slider"}}
		}},
		{"rpm too high", func(p *Platform) {
			p.RateLimit = &RateLimit{RequestsPerMinute: 120, CooldownMinutes: 1}
		}},
		{"rpm too low", func(p *Platform) {
			p.RateLimit = &RateLimit{RequestsPerMinute: 0, CooldownMinutes: 1}
		}},
		{"cooldown too high", func(p *Platform) {
			p.RateLimit = &RateLimit{RequestsPerMinute: 10, CooldownMinutes: 90}
		}},
	}
	for _, tc := range cases {
		p := validPlatform()
		tc.mutate(p)
		if _, err := r.RegisterPlatform(ctx, p); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: err = %v, want ErrInvalidConfig", tc.name, err)
		}
	}
}

func TestUpdatePlatformBumpsVersion(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterPlatform(ctx, validPlatform())
	if err != nil {
		t.Fatalf("RegisterPlatform: %v", err)
	}

	name := "Google Accounts"
	ok, err := r.UpdatePlatform(ctx, id, &PlatformUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdatePlatform: %v", err)
	}
	if !ok {
		t.Fatal("update reported not found")
	}

	p, err := r.GetPlatformConfig(ctx, id)
	if err != nil {
		t.Fatalf("GetPlatformConfig: %v", err)
	}
	if p.Name != name {
		t.Errorf("Name = %q, want %q", p.Name, name)
	}
	if p.ConfigVersion != "v2" {
		t.Errorf("ConfigVersion = %q, want v2", p.ConfigVersion)
	}

	// Invalid partial updates are rejected before touching the store.
	bad := &PlatformUpdate{RateLimit: &RateLimit{RequestsPerMinute: 500}}
	if _, err := r.UpdatePlatform(ctx, id, bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad update err = %v, want ErrInvalidConfig", err)
	}

	// Unknown platform.
	ok, err = r.UpdatePlatform(ctx, "plt_missing", &PlatformUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdatePlatform missing: %v", err)
	}
	if ok {
		t.Error("update of missing platform reported ok")
	}
}

func TestDeactivatePlatformHidesIt(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterPlatform(ctx, validPlatform())
	if err != nil {
		t.Fatalf("RegisterPlatform: %v", err)
	}

	ok, err := r.DeactivatePlatform(ctx, id)
	if err != nil || !ok {
		t.Fatalf("DeactivatePlatform: ok=%v err=%v", ok, err)
	}

	p, err := r.GetPlatformConfig(ctx, id)
	if err != nil {
		t.Fatalf("GetPlatformConfig: %v", err)
	}
	if p != nil {
		t.Errorf("deactivated platform still served: %+v", p)
	}
}

func TestGetExtensionConfig(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	plat := validPlatform()
	id, err := r.RegisterPlatform(ctx, plat)
	if err != nil {
		t.Fatalf("RegisterPlatform: %v", err)
	}

	ec, err := r.GetExtensionConfig(ctx, id)
	if err != nil {
		t.Fatalf("GetExtensionConfig: %v", err)
	}
	if ec == nil {
		t.Fatal("extension config not found")
	}
	if ec.PlatformID != id {
		t.Errorf("PlatformID = %q, want %q", ec.PlatformID, id)
	}
	if len(ec.ScrapingConfig) != 1 {
		t.Errorf("ScrapingConfig has %d selectors, want 1", len(ec.ScrapingConfig))
	}
	// No platform rate limit → registry default.
	if ec.RateLimit != defaultRateLimit {
		t.Errorf("RateLimit = %+v, want default %+v", ec.RateLimit, defaultRateLimit)
	}
	if ec.Version != "v1" {
		t.Errorf("Version = %q, want v1", ec.Version)
	}

	// Unknown platform → nil, nil.
	ec, err = r.GetExtensionConfig(ctx, "plt_missing")
	if err != nil {
		t.Fatalf("GetExtensionConfig missing: %v", err)
	}
	if ec != nil {
		t.Errorf("config for missing platform: %+v", ec)
	}
}

func TestValidatePermissions(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterPlatform(ctx, validPlatform())
	if err != nil {
		t.Fatalf("RegisterPlatform: %v", err)
	}

	// Fail closed: nothing cached yet (registration purges the cache).
	if r.ValidatePermissions(id, []string{"https://myaccount.google.com/privacy"}) {
		t.Error("uncached platform passed permission check")
	}

	// A read warms the cache.
	if _, err := r.GetPlatformConfig(ctx, id); err != nil {
		t.Fatalf("GetPlatformConfig: %v", err)
	}

	if !r.ValidatePermissions(id, []string{"https://myaccount.google.com/privacy"}) {
		t.Error("matching URL rejected")
	}
	if !r.ValidatePermissions(id, nil) {
		t.Error("empty URL list rejected")
	}
	if r.ValidatePermissions(id, []string{"https://evil.com/myaccount.google.com/"}) {
		t.Error("non-matching URL accepted")
	}
	if r.ValidatePermissions(id, []string{
		"https://myaccount.google.com/privacy",
		"https://evil.com/",
	}) {
		t.Error("mixed list accepted despite one non-matching URL")
	}
}

func TestCompileGlob(t *testing.T) {
	cases := []struct {
		pattern string
		url     string
		want    bool
	}{
		{"*://example.com/*", "https://example.com/settings", true},
		{"*://example.com/*", "http://example.com/", true},
		{"*://example.com/*", "https://evil.com/example.com/x", false},
		{"https://a.com/p?ge", "https://a.com/page", true}, // '?' is single-char
		{"https://a.com/p?ge", "https://a.com/pge", false},
		{"https://exact.com/", "https://exact.com/", true},
		{"https://exact.com/", "https://exact.com/more", false},
	}
	for _, tc := range cases {
		re, err := compileGlob(tc.pattern)
		if err != nil {
			t.Fatalf("compileGlob(%q): %v", tc.pattern, err)
		}
		if got := re.MatchString(tc.url); got != tc.want {
			t.Errorf("%q vs %q = %v, want %v", tc.pattern, tc.url, got, tc.want)
		}
	}
}

func TestBumpVersion(t *testing.T) {
	if got := bumpVersion("v1"); got != "v2" {
		t.Errorf("bumpVersion(v1) = %q", got)
	}
	if got := bumpVersion("v41"); got != "v42" {
		t.Errorf("bumpVersion(v41) = %q", got)
	}
	if got := bumpVersion("weird"); got != "weird.1" {
		t.Errorf("bumpVersion(weird) = %q", got)
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("plt_1", &Platform{ID: "plt_1"})
	if _, ok := cache.Get("plt_1"); !ok {
		t.Fatal("fresh entry missing")
	}

	// Advance past the TTL: entry is expired, not served.
	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("plt_1"); ok {
		t.Error("expired entry served")
	}
}

func TestMemoryCacheDeleteAndPurge(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	cache.Set("a", &Platform{ID: "a"})
	cache.Set("b", &Platform{ID: "b"})

	cache.Delete("a")
	if _, ok := cache.Get("a"); ok {
		t.Error("deleted entry served")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Error("unrelated entry evicted by Delete")
	}

	cache.Purge()
	if _, ok := cache.Get("b"); ok {
		t.Error("entry survived Purge")
	}
}
