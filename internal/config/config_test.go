package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privyloop.yaml")
	data := []byte(`
listen: ":9090"
log_level: debug
database:
  path: /tmp/test.db
registry:
  cache_ttl: 30s
scrape:
  timeouts:
    extension: 45s
  default_timeout: 20s
crawler:
  requests_per_minute: 5
  max_retries: 3
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Registry.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.Registry.CacheTTL)
	}
	if cfg.Scrape.Timeouts["extension"] != 45*time.Second {
		t.Errorf("extension timeout = %v", cfg.Scrape.Timeouts["extension"])
	}
	if cfg.Scrape.DefaultTimeout != 20*time.Second {
		t.Errorf("DefaultTimeout = %v", cfg.Scrape.DefaultTimeout)
	}
	if cfg.Crawler.RequestsPerMinute != 5 {
		t.Errorf("Crawler.RequestsPerMinute = %d", cfg.Crawler.RequestsPerMinute)
	}
	if cfg.Crawler.MaxRetries != 3 {
		t.Errorf("Crawler.MaxRetries = %d", cfg.Crawler.MaxRetries)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Listen == "" || cfg.Database.Path == "" {
		t.Errorf("defaults incomplete: %+v", cfg)
	}
	if cfg.Registry.CacheTTL <= 0 || cfg.Scrape.DefaultTimeout <= 0 {
		t.Errorf("duration defaults missing: %+v", cfg)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
