package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Selector describes how to locate and read one setting on a platform page.
type Selector struct {
	Locator        string   `json:"locator"`
	Type           string   `json:"type"` // toggle | radio | select | text
	ExpectedValues []string `json:"expectedValues,omitempty"`
}

// RateLimit is a platform's scraping rate policy.
type RateLimit struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
	CooldownMinutes   int `json:"cooldownMinutes"`
}

// Platform is one monitored third-party platform: identity, scraping recipe,
// rate policy, and manifest permission patterns for the extension.
type Platform struct {
	ID               string              `json:"id"`
	Slug             string              `json:"slug"`
	Name             string              `json:"name"`
	Domain           string              `json:"domain"`
	WebsiteURL       string              `json:"websiteUrl,omitempty"`
	PrivacyPageURL   string              `json:"privacyPageUrl"`
	ConfigVersion    string              `json:"configVersion"`
	Selectors        map[string]Selector `json:"selectors"`
	RateLimit        *RateLimit          `json:"rateLimit,omitempty"`
	ManifestPatterns []string            `json:"manifestPatterns"`
	IsActive         bool                `json:"isActive"`
	IsSupported      bool                `json:"isSupported"`
	CreatedAt        int64               `json:"createdAt"`
	UpdatedAt        int64               `json:"updatedAt"`
}

const platformCols = `id, slug, name, domain, website_url, privacy_page_url, config_version,
       selectors, rate_limit, manifest_patterns, is_active, is_supported, created_at, updated_at`

// InsertPlatform inserts a new platform configuration.
func (s *Store) InsertPlatform(ctx context.Context, p *Platform) error {
	selectors, err := json.Marshal(p.Selectors)
	if err != nil {
		return err
	}
	rateLimit := ""
	if p.RateLimit != nil {
		b, err := json.Marshal(p.RateLimit)
		if err != nil {
			return err
		}
		rateLimit = string(b)
	}
	patterns, err := json.Marshal(p.ManifestPatterns)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO platforms
			(id, slug, name, domain, website_url, privacy_page_url, config_version,
			 selectors, rate_limit, manifest_patterns, is_active, is_supported, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Slug, p.Name, p.Domain, p.WebsiteURL, p.PrivacyPageURL, p.ConfigVersion,
		string(selectors), rateLimit, string(patterns),
		boolInt(p.IsActive), boolInt(p.IsSupported), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetPlatform retrieves a platform by ID. When activeOnly is set, inactive
// platforms are treated as absent.
func (s *Store) GetPlatform(ctx context.Context, id string, activeOnly bool) (*Platform, error) {
	query := `SELECT ` + platformCols + ` FROM platforms WHERE id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	return s.scanPlatformRow(s.DB.QueryRowContext(ctx, query, id))
}

// GetPlatformBySlug retrieves an active, supported platform by slug.
func (s *Store) GetPlatformBySlug(ctx context.Context, slug string) (*Platform, error) {
	return s.scanPlatformRow(s.DB.QueryRowContext(ctx, `
		SELECT `+platformCols+`
		FROM platforms WHERE slug = ? AND is_active = 1 AND is_supported = 1`, slug))
}

// UpdatePlatform rewrites a platform's mutable fields and bumps updated_at.
// Returns false if the platform does not exist.
func (s *Store) UpdatePlatform(ctx context.Context, p *Platform) (bool, error) {
	selectors, err := json.Marshal(p.Selectors)
	if err != nil {
		return false, err
	}
	rateLimit := ""
	if p.RateLimit != nil {
		b, err := json.Marshal(p.RateLimit)
		if err != nil {
			return false, err
		}
		rateLimit = string(b)
	}
	patterns, err := json.Marshal(p.ManifestPatterns)
	if err != nil {
		return false, err
	}
	p.UpdatedAt = time.Now().UnixMilli()

	res, err := s.DB.ExecContext(ctx, `
		UPDATE platforms SET
			name=?, domain=?, website_url=?, privacy_page_url=?, config_version=?,
			selectors=?, rate_limit=?, manifest_patterns=?, is_supported=?, updated_at=?
		WHERE id=?`,
		p.Name, p.Domain, p.WebsiteURL, p.PrivacyPageURL, p.ConfigVersion,
		string(selectors), rateLimit, string(patterns), boolInt(p.IsSupported), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeactivatePlatform marks a platform inactive. Returns false if absent.
func (s *Store) DeactivatePlatform(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE platforms SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListPlatforms returns all active platforms.
func (s *Store) ListPlatforms(ctx context.Context) ([]*Platform, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+platformCols+` FROM platforms WHERE is_active = 1 ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var platforms []*Platform
	for rows.Next() {
		p, err := scanPlatform(rows.Scan)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

func (s *Store) scanPlatformRow(row *sql.Row) (*Platform, error) {
	p, err := scanPlatform(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanPlatform(scan func(...any) error) (*Platform, error) {
	p := &Platform{}
	var selectors, rateLimit, patterns string
	var active, supported int

	err := scan(
		&p.ID, &p.Slug, &p.Name, &p.Domain, &p.WebsiteURL, &p.PrivacyPageURL, &p.ConfigVersion,
		&selectors, &rateLimit, &patterns, &active, &supported, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(selectors), &p.Selectors); err != nil {
		return nil, err
	}
	if rateLimit != "" {
		p.RateLimit = &RateLimit{}
		if err := json.Unmarshal([]byte(rateLimit), p.RateLimit); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal([]byte(patterns), &p.ManifestPatterns); err != nil {
		return nil, err
	}
	p.IsActive = active != 0
	p.IsSupported = supported != 0
	return p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
