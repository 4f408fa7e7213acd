// Package config handles privyloop configuration from YAML files.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AustinZ21/Privyloop-sub001/internal/crawler"
)

// Config is the top-level privyloop configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	LogLevel string         `yaml:"log_level"` // debug | info | warn | error
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Crawler  crawler.Config `yaml:"crawler"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig controls the platform config cache.
type RegistryConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ScrapeConfig holds the per-method scrape timeout table.
type ScrapeConfig struct {
	Timeouts       map[string]time.Duration `yaml:"timeouts"`
	DefaultTimeout time.Duration            `yaml:"default_timeout"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8086"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "db/privyloop.db"
	}
	if c.Registry.CacheTTL <= 0 {
		c.Registry.CacheTTL = 5 * time.Minute
	}
	if c.Scrape.DefaultTimeout <= 0 {
		c.Scrape.DefaultTimeout = 90 * time.Second
	}
}
