package blobstore

import (
	"context"
	"fmt"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"photostore/internal/models"
)

const (
	locatorPrefix = "/photos/"
	locatorThumb  = "/thumbnail"
)

// Get returns a record with its payload and records the access time. A
// failed access-time write is logged and never returned.
func (s *Service) Get(ctx context.Context, id models.BlobID) (models.BlobRecord, error) {
	record, err := s.backend.GetBlob(ctx, id, true)
	if err != nil {
		return models.BlobRecord{}, fmt.Errorf("get blob %s: %w", id, err)
	}
	if record == nil {
		return models.BlobRecord{}, notFound(id)
	}
	s.touch(ctx, record)
	return *record, nil
}

// GetDerivative returns the thumbnail of an original with its payload.
func (s *Service) GetDerivative(ctx context.Context, originalID models.BlobID) (models.BlobRecord, error) {
	record, err := s.backend.GetDerivative(ctx, originalID, true)
	if err != nil {
		return models.BlobRecord{}, fmt.Errorf("get derivative of %s: %w", originalID, err)
	}
	if record == nil {
		return models.BlobRecord{}, fmt.Errorf("%w: no derivative for %s", ErrNotFound, originalID)
	}
	s.touch(ctx, record)
	return *record, nil
}

// DerivativeMetadata returns the thumbnail record of an original without its
// payload and without recording an access.
func (s *Service) DerivativeMetadata(ctx context.Context, originalID models.BlobID) (*models.BlobRecord, error) {
	record, err := s.backend.GetDerivative(ctx, originalID, false)
	if err != nil {
		return nil, fmt.Errorf("get derivative of %s: %w", originalID, err)
	}
	return record, nil
}

// RecordAccess stamps the access time of id without reading its payload,
// for reads answered from a validator. Failures are logged only.
func (s *Service) RecordAccess(ctx context.Context, id models.BlobID) {
	s.touch(ctx, &models.BlobRecord{ID: id})
}

func (s *Service) touch(ctx context.Context, record *models.BlobRecord) {
	now := s.opts.Now()
	if err := s.backend.TouchAccess(ctx, record.ID, now); err != nil {
		s.logger.Debug("access time update failed", "event", EventAccessTouchFailed, "blob_id", record.ID, "error", err)
		return
	}
	record.LastAccessedAt = &now
}

// FindLatestByUploader returns the most recently created record of an
// uploader without its payload, or nil when the uploader has none.
func (s *Service) FindLatestByUploader(ctx context.Context, uploaderID string, excludeDerivatives bool) (*models.BlobRecord, error) {
	uploaderID = strings.TrimSpace(uploaderID)
	if uploaderID == "" {
		return nil, fmt.Errorf("%w: uploader id is required", ErrInvalidArgument)
	}
	record, err := s.backend.LatestByUploader(ctx, uploaderID, excludeDerivatives)
	if err != nil {
		return nil, fmt.Errorf("latest blob for %s: %w", uploaderID, err)
	}
	return record, nil
}

// ContentHash returns the content hash of a record. Hashes never change for
// an id, so lookups are memoized.
func (s *Service) ContentHash(ctx context.Context, id models.BlobID) (digest.Digest, error) {
	if hash, ok := s.hashes.Get(id); ok {
		return hash, nil
	}
	hash, err := s.backend.ContentHashByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("content hash of %s: %w", id, err)
	}
	if hash == "" {
		return "", notFound(id)
	}
	s.hashes.Add(id, hash)
	return hash, nil
}

// LocatorFor returns the public path of a record or of its thumbnail.
func LocatorFor(id models.BlobID, wantDerivative bool) string {
	if wantDerivative {
		return locatorPrefix + id.String() + locatorThumb
	}
	return locatorPrefix + id.String()
}

// ParseLocator is the inverse of LocatorFor.
func ParseLocator(locator string) (models.BlobID, bool, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(locator), locatorPrefix)
	if !ok {
		return 0, false, fmt.Errorf("%w: locator %q must start with %s", ErrInvalidArgument, locator, locatorPrefix)
	}
	rawID, thumb := strings.CutSuffix(rest, locatorThumb)
	id, err := models.ParseBlobID(rawID)
	if err != nil || strings.Contains(rawID, "/") {
		return 0, false, fmt.Errorf("%w: invalid locator %q", ErrInvalidArgument, locator)
	}
	return id, thumb, nil
}
