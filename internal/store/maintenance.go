package store

import (
	"context"
)

// StoreInfo summarizes database state.
type StoreInfo struct {
	SchemaVersion int            `json:"schema_version"`
	TotalRecords  int            `json:"total_records"`
	GenderCounts  map[string]int `json:"gender_counts"`
}

// StoreInfo returns schema version and record counts.
func (s *Store) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	info := &StoreInfo{GenderCounts: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&info.SchemaVersion); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT gender, COUNT(*) FROM records GROUP BY gender")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var gender string
		var count int
		if err := rows.Scan(&gender, &count); err != nil {
			return nil, err
		}
		info.GenderCounts[gender] = count
		info.TotalRecords += count
	}
	return info, rows.Err()
}
