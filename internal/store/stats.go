package store

import "context"

// ScrapeStats holds snapshot counters, optionally scoped to one platform.
type ScrapeStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}

// ScrapeCounts returns total and completed snapshot counts. An empty
// platformID means all platforms.
func (s *Store) ScrapeCounts(ctx context.Context, platformID string) (*ScrapeStats, error) {
	var stats ScrapeStats

	query := `SELECT COUNT(*), COALESCE(SUM(scan_status = ?), 0) FROM snapshots`
	args := []any{ScanCompleted}
	if platformID != "" {
		query += ` WHERE platform_id = ?`
		args = append(args, platformID)
	}

	err := s.DB.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &stats.Successful)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
