package blobstore

import (
	"context"
	"errors"
	"fmt"

	"photostore/internal/models"
	"photostore/internal/store"
)

// AttachReference records one more holder of an original and returns the
// new count.
func (s *Service) AttachReference(ctx context.Context, id models.BlobID) (int64, error) {
	return s.adjustReferences(ctx, id, 1)
}

// DetachReference drops one holder of an original. The count never goes
// below zero.
func (s *Service) DetachReference(ctx context.Context, id models.BlobID) (int64, error) {
	return s.adjustReferences(ctx, id, -1)
}

func (s *Service) adjustReferences(ctx context.Context, id models.BlobID, delta int64) (int64, error) {
	count, err := s.backend.AdjustReferenceCount(ctx, id, delta)
	switch {
	case err == nil:
		s.logger.Debug("reference count changed", "blob_id", id, "delta", delta, "reference_count", count)
		return count, nil
	case errors.Is(err, store.ErrNotFound):
		return 0, notFound(id)
	case errors.Is(err, store.ErrDerivative):
		return 0, fmt.Errorf("%w: %s", ErrDerivativeReference, id)
	default:
		return 0, storageError("adjust reference count", err)
	}
}
