package blobstore

import (
	"context"
	"time"

	digest "github.com/opencontainers/go-digest"

	"photostore/internal/models"
	"photostore/internal/store"
)

// Backend is the persistence abstraction used by Service. *store.Store
// implements it.
type Backend interface {
	InsertIfAbsent(ctx context.Context, blob *models.BlobRecord) (models.BlobID, bool, error)
	GetBlob(ctx context.Context, id models.BlobID, withPayload bool) (*models.BlobRecord, error)
	GetBlobByHash(ctx context.Context, hash digest.Digest) (*models.BlobRecord, error)
	GetDerivative(ctx context.Context, originalID models.BlobID, withPayload bool) (*models.BlobRecord, error)
	LatestByUploader(ctx context.Context, uploaderID string, excludeDerivatives bool) (*models.BlobRecord, error)
	ContentHashByID(ctx context.Context, id models.BlobID) (digest.Digest, error)
	TouchAccess(ctx context.Context, id models.BlobID, at time.Time) error
	AdjustReferenceCount(ctx context.Context, id models.BlobID, delta int64) (int64, error)
	DeleteBlob(ctx context.Context, id models.BlobID) (store.DeleteResult, error)
	DeleteIfUnreferenced(ctx context.Context, id models.BlobID) (store.DeleteResult, error)
	ListUnreferenced(ctx context.Context, afterID models.BlobID, limit int) ([]store.SweepCandidate, error)
	ListOriginalsMissingDerivative(ctx context.Context, maxWidth, maxHeight int, afterID models.BlobID, limit int) ([]models.BlobID, error)
	ListBlobIDs(ctx context.Context, afterID models.BlobID, limit int) ([]models.BlobID, error)
	AcquireSweepLease(ctx context.Context, name, owner string, ttl time.Duration, now time.Time) (bool, error)
	ReleaseSweepLease(ctx context.Context, name, owner string) error
	Stats(ctx context.Context) (store.Stats, error)
	ClaimHashAlgorithm(ctx context.Context, algorithm string) (string, error)
}

var _ Backend = (*store.Store)(nil)
