package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// Scan statuses recorded on snapshots.
const (
	ScanCompleted = "completed"
	// ScanDegraded marks a snapshot stored uncompressed because
	// post-processing failed; the scraped data was kept anyway.
	ScanDegraded = "degraded"
)

// Change records one setting value transition between consecutive snapshots.
type Change struct {
	OldValue   json.RawMessage `json:"oldValue"`
	NewValue   json.RawMessage `json:"newValue"`
	ChangeType string          `json:"changeType"`
	DetectedAt int64           `json:"detectedAt"`
}

// ChangeSet maps category → setting → change.
type ChangeSet map[string]map[string]Change

// Snapshot is one persisted scan result for a user+platform. Immutable after
// insert: history is append-only.
type Snapshot struct {
	ID             string                `json:"id"`
	UserID         string                `json:"userId"`
	PlatformID     string                `json:"platformId"`
	TemplateID     string                `json:"templateId,omitempty"`
	Settings       settings.UserSettings `json:"userSettings"`
	ScanID         string                `json:"scanId"`
	ScanMethod     string                `json:"scanMethod"`
	Changes        ChangeSet             `json:"changesSincePrevious,omitempty"`
	HasChanges     bool                  `json:"hasChanges"`
	ScanStatus     string                `json:"scanStatus"`
	DurationMs     int64                 `json:"durationMs"`
	CompletionRate float64               `json:"completionRate"`
	Confidence     float64               `json:"confidence"`
	ScannedAt      int64                 `json:"scannedAt"`
}

const snapshotCols = `id, user_id, platform_id, template_id, settings, scan_id, scan_method,
       changes, has_changes, scan_status, duration_ms, completion_rate, confidence, scanned_at`

// InsertSnapshot appends a new snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	settingsJSON, err := json.Marshal(snap.Settings)
	if err != nil {
		return err
	}
	changes := ""
	if len(snap.Changes) > 0 {
		b, err := json.Marshal(snap.Changes)
		if err != nil {
			return err
		}
		changes = string(b)
	}
	if snap.ScannedAt == 0 {
		snap.ScannedAt = time.Now().UnixMilli()
	}
	if snap.ScanStatus == "" {
		snap.ScanStatus = ScanCompleted
	}

	var templateID any
	if snap.TemplateID != "" {
		templateID = snap.TemplateID
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO snapshots
			(id, user_id, platform_id, template_id, settings, scan_id, scan_method,
			 changes, has_changes, scan_status, duration_ms, completion_rate, confidence, scanned_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.UserID, snap.PlatformID, templateID, string(settingsJSON),
		snap.ScanID, snap.ScanMethod, changes, boolInt(snap.HasChanges), snap.ScanStatus,
		snap.DurationMs, snap.CompletionRate, snap.Confidence, snap.ScannedAt,
	)
	return err
}

// LatestSnapshot returns the most recent snapshot for a user+platform, or nil.
func (s *Store) LatestSnapshot(ctx context.Context, userID, platformID string) (*Snapshot, error) {
	snap, err := scanSnapshot(s.DB.QueryRowContext(ctx, `
		SELECT `+snapshotCols+`
		FROM snapshots
		WHERE user_id = ? AND platform_id = ?
		ORDER BY scanned_at DESC, rowid DESC
		LIMIT 1`, userID, platformID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

// ListSnapshots returns a user+platform's history, newest first.
func (s *Store) ListSnapshots(ctx context.Context, userID, platformID string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+snapshotCols+`
		FROM snapshots
		WHERE user_id = ? AND platform_id = ?
		ORDER BY scanned_at DESC, rowid DESC
		LIMIT ?`, userID, platformID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(scan func(...any) error) (*Snapshot, error) {
	snap := &Snapshot{}
	var templateID sql.NullString
	var settingsJSON, changes string
	var hasChanges int

	err := scan(
		&snap.ID, &snap.UserID, &snap.PlatformID, &templateID, &settingsJSON,
		&snap.ScanID, &snap.ScanMethod, &changes, &hasChanges, &snap.ScanStatus,
		&snap.DurationMs, &snap.CompletionRate, &snap.Confidence, &snap.ScannedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.TemplateID = templateID.String
	if err := json.Unmarshal([]byte(settingsJSON), &snap.Settings); err != nil {
		return nil, err
	}
	if changes != "" {
		if err := json.Unmarshal([]byte(changes), &snap.Changes); err != nil {
			return nil, err
		}
	}
	snap.HasChanges = hasChanges != 0
	return snap, nil
}
