package store

import "context"

// Stats summarizes the stored records.
type Stats struct {
	Originals        int64 `json:"originals" yaml:"originals"`
	Derivatives      int64 `json:"derivatives" yaml:"derivatives"`
	Unreferenced     int64 `json:"unreferenced" yaml:"unreferenced"`
	TotalBytes       int64 `json:"total_bytes" yaml:"total_bytes"`
	SchemaVersion    int   `json:"schema_version" yaml:"schema_version"`
	AvailableVersion int   `json:"available_version" yaml:"available_version"`
}

// Stats returns record counts and the schema version.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_derivative = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_derivative = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_derivative = 0 AND reference_count <= 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(size_bytes), 0)
		FROM blobs
	`).Scan(&stats.Originals, &stats.Derivatives, &stats.Unreferenced, &stats.TotalBytes)
	if err != nil {
		return stats, err
	}

	plan, err := MigrationPlan(s.db)
	if err != nil {
		return stats, err
	}
	stats.SchemaVersion = plan.CurrentVersion
	stats.AvailableVersion = plan.AvailableVersion
	return stats, nil
}

// MigrationStatus reports the schema migration state of the open database.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}
