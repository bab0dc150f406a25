package store

import (
	"context"
	"fmt"
	"time"

	"photostore/internal/models"
)

// SweepCandidate is an original whose reference count was zero when listed.
type SweepCandidate struct {
	ID              models.BlobID
	SizeBytes       int64
	Derivatives     int
	DerivativeBytes int64
}

// ListUnreferenced returns originals with a zero reference count and an id
// greater than afterID, in ascending id order.
func (s *Store) ListUnreferenced(ctx context.Context, afterID models.BlobID, limit int) ([]SweepCandidate, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.size_bytes, COUNT(d.id), COALESCE(SUM(d.size_bytes), 0)
		FROM blobs b
		LEFT JOIN blobs d ON d.original_blob_id = b.id
		WHERE b.is_derivative = 0 AND b.reference_count <= 0 AND b.id > ?
		GROUP BY b.id
		ORDER BY b.id ASC
		LIMIT ?
	`, int64(afterID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []SweepCandidate
	for rows.Next() {
		var id int64
		candidate := SweepCandidate{}
		if err := rows.Scan(&id, &candidate.SizeBytes, &candidate.Derivatives, &candidate.DerivativeBytes); err != nil {
			return nil, err
		}
		candidate.ID = models.BlobID(id)
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// ListOriginalsMissingDerivative returns ids of originals larger than the
// given bounds that have no derivative, in ascending id order.
func (s *Store) ListOriginalsMissingDerivative(ctx context.Context, maxWidth, maxHeight int, afterID models.BlobID, limit int) ([]models.BlobID, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id FROM blobs b
		WHERE b.is_derivative = 0
		  AND b.width IS NOT NULL AND b.height IS NOT NULL
		  AND (b.width > ? OR b.height > ?)
		  AND b.id > ?
		  AND NOT EXISTS (SELECT 1 FROM blobs d WHERE d.original_blob_id = b.id)
		ORDER BY b.id ASC
		LIMIT ?
	`, maxWidth, maxHeight, int64(afterID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.BlobID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, models.BlobID(id))
	}
	return ids, rows.Err()
}

// ListBlobIDs returns record ids greater than afterID in ascending order.
func (s *Store) ListBlobIDs(ctx context.Context, afterID models.BlobID, limit int) ([]models.BlobID, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM blobs WHERE id > ? ORDER BY id ASC LIMIT ?", int64(afterID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.BlobID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, models.BlobID(id))
	}
	return ids, rows.Err()
}

// AcquireSweepLease claims the named lease for owner until now+ttl. It
// succeeds when no lease exists, the current one expired, or owner already
// holds it.
func (s *Store) AcquireSweepLease(ctx context.Context, name, owner string, ttl time.Duration, now time.Time) (bool, error) {
	if name == "" || owner == "" {
		return false, fmt.Errorf("lease name and owner are required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be positive")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_leases (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE sweep_leases.expires_at <= ? OR sweep_leases.owner = excluded.owner
	`, name, owner, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseSweepLease drops the named lease if owner still holds it.
func (s *Store) ReleaseSweepLease(ctx context.Context, name, owner string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sweep_leases WHERE name = ? AND owner = ?", name, owner)
	return err
}
