package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"

	"photostore/internal/models"
)

const metadataColumns = "id, content_hash, mime_type, size_bytes, width, height, uploader_id, is_derivative, original_blob_id, reference_count, last_accessed_at, created_at"
const recordColumns = metadataColumns + ", payload"

var (
	// ErrNotFound is returned by mutations addressed at a missing id.
	ErrNotFound = errors.New("blob not found")
	// ErrDerivative is returned when a reference count change targets a
	// derivative record.
	ErrDerivative = errors.New("blob is a derivative")
)

// DeleteResult reports what one delete removed.
type DeleteResult struct {
	Deleted            bool
	DerivativesDeleted int
	ReclaimedBytes     int64
	// Derivative ids removed together with the original.
	DerivativeIDs []models.BlobID
}

// InsertIfAbsent inserts blob unless a record with the same content hash
// exists. It returns the id of the inserted record or of the existing one,
// which is left untouched.
func (s *Store) InsertIfAbsent(ctx context.Context, blob *models.BlobRecord) (_ models.BlobID, inserted bool, err error) {
	if blob == nil {
		return 0, false, fmt.Errorf("blob is required")
	}
	if blob.ContentHash == "" || blob.ContentHash.Encoded() == "" {
		return 0, false, fmt.Errorf("content hash is required")
	}
	if strings.TrimSpace(blob.UploaderID) == "" {
		return 0, false, fmt.Errorf("uploader id is required")
	}
	if blob.IsDerivative != (blob.OriginalBlobID != nil) {
		return 0, false, fmt.Errorf("original blob id must be set exactly for derivatives")
	}
	if blob.ReferenceCount < 0 {
		return 0, false, fmt.Errorf("reference count must be >= 0")
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}
	blob.SizeBytes = int64(len(blob.Payload))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO blobs (
			content_hash, payload, mime_type, size_bytes, width, height, uploader_id,
			is_derivative, original_blob_id, reference_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`,
		blob.ContentHash.String(),
		blob.Payload,
		blob.MimeType,
		blob.SizeBytes,
		nullInt(blob.Width),
		nullInt(blob.Height),
		blob.UploaderID,
		boolToInt(blob.IsDerivative),
		nullBlobID(blob.OriginalBlobID),
		blob.ReferenceCount,
		formatTime(blob.CreatedAt),
	)
	if err != nil {
		return 0, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	if affected == 1 {
		lastID, err := res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		if err := tx.Commit(); err != nil {
			return 0, false, err
		}
		blob.ID = models.BlobID(lastID)
		return blob.ID, true, nil
	}

	var existing int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM blobs WHERE content_hash = ?", blob.ContentHash.String()).Scan(&existing); err != nil {
		return 0, false, fmt.Errorf("read back existing blob: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return models.BlobID(existing), false, nil
}

// GetBlob returns one record by id, or nil when absent. The payload is only
// loaded when withPayload is set.
func (s *Store) GetBlob(ctx context.Context, id models.BlobID, withPayload bool) (*models.BlobRecord, error) {
	columns := metadataColumns
	if withPayload {
		columns = recordColumns
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM blobs WHERE id = ?`, int64(id))
	return scanBlob(row, withPayload)
}

// GetBlobByHash returns the record with a content hash, or nil when absent.
func (s *Store) GetBlobByHash(ctx context.Context, hash digest.Digest) (*models.BlobRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM blobs WHERE content_hash = ?`, hash.String())
	return scanBlob(row, false)
}

// GetDerivative returns the derivative of an original, or nil when it has none.
func (s *Store) GetDerivative(ctx context.Context, originalID models.BlobID, withPayload bool) (*models.BlobRecord, error) {
	columns := metadataColumns
	if withPayload {
		columns = recordColumns
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+columns+` FROM blobs
		WHERE original_blob_id = ? AND is_derivative = 1
		ORDER BY id DESC LIMIT 1`, int64(originalID))
	return scanBlob(row, withPayload)
}

// LatestByUploader returns the most recently created record of an uploader,
// or nil when there is none.
func (s *Store) LatestByUploader(ctx context.Context, uploaderID string, excludeDerivatives bool) (*models.BlobRecord, error) {
	query := `SELECT ` + metadataColumns + ` FROM blobs WHERE uploader_id = ?`
	if excludeDerivatives {
		query += ` AND is_derivative = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, uploaderID)
	return scanBlob(row, false)
}

// ContentHashByID returns the content hash of a record, or "" when absent.
func (s *Store) ContentHashByID(ctx context.Context, id models.BlobID) (digest.Digest, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT content_hash FROM blobs WHERE id = ?", int64(id)).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return digest.Digest(hash), nil
}

// TouchAccess records a read of one record.
func (s *Store) TouchAccess(ctx context.Context, id models.BlobID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE blobs SET last_accessed_at = ? WHERE id = ?", formatTime(at), int64(id))
	return err
}

// AdjustReferenceCount adds delta to an original's reference count, clamping
// at zero, and returns the new count.
func (s *Store) AdjustReferenceCount(ctx context.Context, id models.BlobID, delta int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE blobs SET reference_count = MAX(reference_count + ?, 0)
		WHERE id = ? AND is_derivative = 0
		RETURNING reference_count
	`, delta, int64(id)).Scan(&count)
	if err == nil {
		return count, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	var isDerivative int
	err = s.db.QueryRowContext(ctx, "SELECT is_derivative FROM blobs WHERE id = ?", int64(id)).Scan(&isDerivative)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, ErrDerivative
}

// DeleteBlob removes one record and every derivative pointing at it.
func (s *Store) DeleteBlob(ctx context.Context, id models.BlobID) (DeleteResult, error) {
	return s.deleteCascade(ctx, id, "DELETE FROM blobs WHERE id = ?")
}

// DeleteIfUnreferenced removes an original and its derivatives only if its
// reference count is still zero inside the deleting transaction.
func (s *Store) DeleteIfUnreferenced(ctx context.Context, id models.BlobID) (DeleteResult, error) {
	return s.deleteCascade(ctx, id, "DELETE FROM blobs WHERE id = ? AND is_derivative = 0 AND reference_count <= 0")
}

func (s *Store) deleteCascade(ctx context.Context, id models.BlobID, deleteSQL string) (result DeleteResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var size int64
	if err := tx.QueryRowContext(ctx, "SELECT size_bytes FROM blobs WHERE id = ?", int64(id)).Scan(&size); err != nil {
		if err == sql.ErrNoRows {
			return result, tx.Commit()
		}
		return result, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, size_bytes FROM blobs WHERE original_blob_id = ?", int64(id))
	if err != nil {
		return result, err
	}
	var derivatives []models.BlobID
	var derivativeBytes int64
	for rows.Next() {
		var derivID, derivSize int64
		if err := rows.Scan(&derivID, &derivSize); err != nil {
			rows.Close()
			return result, err
		}
		derivatives = append(derivatives, models.BlobID(derivID))
		derivativeBytes += derivSize
	}
	if err := rows.Close(); err != nil {
		return result, err
	}
	if err := rows.Err(); err != nil {
		return result, err
	}

	res, err := tx.ExecContext(ctx, deleteSQL, int64(id))
	if err != nil {
		return result, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return result, err
	}
	if affected == 0 {
		return result, tx.Commit()
	}

	// The foreign key cascades as well; the explicit delete keeps the
	// invariant even on a connection opened without foreign_keys.
	if _, err := tx.ExecContext(ctx, "DELETE FROM blobs WHERE original_blob_id = ?", int64(id)); err != nil {
		return result, err
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}

	return DeleteResult{
		Deleted:            true,
		DerivativesDeleted: len(derivatives),
		ReclaimedBytes:     size + derivativeBytes,
		DerivativeIDs:      derivatives,
	}, nil
}

func scanBlob(scanner interface {
	Scan(dest ...any) error
}, withPayload bool) (*models.BlobRecord, error) {
	blob := models.BlobRecord{}

	var id int64
	var hash, createdAt string
	var width, height, originalID sql.NullInt64
	var isDerivative int
	var lastAccessed sql.NullString

	dest := []any{
		&id,
		&hash,
		&blob.MimeType,
		&blob.SizeBytes,
		&width,
		&height,
		&blob.UploaderID,
		&isDerivative,
		&originalID,
		&blob.ReferenceCount,
		&lastAccessed,
		&createdAt,
	}
	if withPayload {
		dest = append(dest, &blob.Payload)
	}

	if err := scanner.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	blob.ID = models.BlobID(id)
	blob.ContentHash = digest.Digest(hash)
	blob.IsDerivative = isDerivative != 0
	if width.Valid {
		w := int(width.Int64)
		blob.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		blob.Height = &h
	}
	if originalID.Valid {
		original := models.BlobID(originalID.Int64)
		blob.OriginalBlobID = &original
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	blob.CreatedAt = parsedCreated
	if lastAccessed.Valid {
		parsedAccessed, err := parseTime(lastAccessed.String)
		if err != nil {
			return nil, err
		}
		blob.LastAccessedAt = &parsedAccessed
	}

	return &blob, nil
}
