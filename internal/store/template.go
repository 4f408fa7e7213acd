package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// Template is one versioned structural schema for a platform's settings page.
// Superseded templates are archived, never deleted: existing snapshots
// reference them and migrations read from them.
type Template struct {
	ID              string              `json:"id"`
	PlatformID      string              `json:"platformId"`
	Version         string              `json:"version"`
	Hash            string              `json:"templateHash"`
	Structure       settings.Structure  `json:"structure"`
	UsageCount      int                 `json:"usageCount"`
	ActiveUserCount int                 `json:"activeUserCount"`
	IsActive        bool                `json:"isActive"`
	CreatedAt       int64               `json:"createdAt"`
}

const templateCols = `id, platform_id, version, template_hash, structure,
       usage_count, active_user_count, is_active, created_at`

// InsertTemplate inserts a new template.
func (s *Store) InsertTemplate(ctx context.Context, t *Template) error {
	structure, err := json.Marshal(t.Structure)
	if err != nil {
		return err
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO privacy_templates
			(id, platform_id, version, template_hash, structure,
			 usage_count, active_user_count, is_active, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.PlatformID, t.Version, t.Hash, string(structure),
		t.UsageCount, t.ActiveUserCount, boolInt(t.IsActive), t.CreatedAt,
	)
	return err
}

// GetTemplate retrieves a template by ID.
func (s *Store) GetTemplate(ctx context.Context, id string) (*Template, error) {
	t, err := scanTemplate(s.DB.QueryRowContext(ctx, `
		SELECT `+templateCols+` FROM privacy_templates WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListActiveTemplates returns a platform's active templates, newest first.
func (s *Store) ListActiveTemplates(ctx context.Context, platformID string) ([]*Template, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+templateCols+`
		FROM privacy_templates
		WHERE platform_id = ? AND is_active = 1
		ORDER BY created_at DESC, rowid DESC`, platformID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// CountTemplates returns how many templates exist for a platform, archived
// ones included (feeds version numbering).
func (s *Store) CountTemplates(ctx context.Context, platformID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM privacy_templates WHERE platform_id = ?`, platformID).Scan(&n)
	return n, err
}

// ArchiveTemplate marks a template inactive. Returns false if absent.
func (s *Store) ArchiveTemplate(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE privacy_templates SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IncrementTemplateUsage bumps usage_count for a template.
func (s *Store) IncrementTemplateUsage(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE privacy_templates SET usage_count = usage_count + 1 WHERE id = ?`, id)
	return err
}

func scanTemplate(scan func(...any) error) (*Template, error) {
	t := &Template{}
	var structure string
	var active int

	err := scan(
		&t.ID, &t.PlatformID, &t.Version, &t.Hash, &structure,
		&t.UsageCount, &t.ActiveUserCount, &active, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(structure), &t.Structure); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	return t, nil
}
