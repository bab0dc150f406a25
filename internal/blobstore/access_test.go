package blobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"photostore/internal/models"
)

func TestGet_MissingIsNotFound(t *testing.T) {
	st := newStoreForTest(t)
	svc := newServiceForTest(t, st, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetMetadata(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ContentHash(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindLatestByUploader(t *testing.T) {
	st := newStoreForTest(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := newServiceForTest(t, st, func(o *Options) {
		o.Now = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}
	})
	ctx := context.Background()

	first, err := svc.Store(ctx, encodedPNG(t, 16, 16, 1), "U")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	second, err := svc.Store(ctx, encodedPNG(t, 640, 480, 2), "U")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.Store(ctx, encodedPNG(t, 16, 16, 3), "V"); err != nil {
		t.Fatalf("store other uploader: %v", err)
	}

	latest, err := svc.FindLatestByUploader(ctx, "U", true)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != second {
		t.Fatalf("expected %d (not %d), got %+v", second, first, latest)
	}
	if latest.Payload != nil {
		t.Fatal("expected metadata without payload")
	}

	withDerivative, err := svc.FindLatestByUploader(ctx, "U", false)
	if err != nil {
		t.Fatalf("latest with derivatives: %v", err)
	}
	if withDerivative == nil || !withDerivative.IsDerivative {
		t.Fatalf("expected the thumbnail of %d, got %+v", second, withDerivative)
	}

	none, err := svc.FindLatestByUploader(ctx, "W", true)
	if err != nil || none != nil {
		t.Fatalf("expected nil for unknown uploader, got %+v err=%v", none, err)
	}
	if _, err := svc.FindLatestByUploader(ctx, "", true); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestContentHash_StableAndCached(t *testing.T) {
	st := newStoreForTest(t)
	svc := newServiceForTest(t, st, nil)
	ctx := context.Background()

	id, err := svc.Store(ctx, encodedPNG(t, 12, 12, 1), "U")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	meta, err := svc.GetMetadata(ctx, id)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}

	svc.hashes.Purge()
	hash, err := svc.ContentHash(ctx, id)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if hash != meta.ContentHash {
		t.Fatalf("expected %s, got %s", meta.ContentHash, hash)
	}
	if cached, ok := svc.hashes.Get(id); !ok || cached != hash {
		t.Fatalf("expected hash cached after lookup, got %q ok=%v", cached, ok)
	}
}

func TestLocatorFor(t *testing.T) {
	if got := LocatorFor(7, false); got != "/photos/7" {
		t.Fatalf("unexpected locator %q", got)
	}
	if got := LocatorFor(7, true); got != "/photos/7/thumbnail" {
		t.Fatalf("unexpected thumbnail locator %q", got)
	}
}

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in        string
		wantID    models.BlobID
		wantThumb bool
		wantErr   bool
	}{
		{in: "/photos/7", wantID: 7},
		{in: "/photos/7/thumbnail", wantID: 7, wantThumb: true},
		{in: "photos/7", wantErr: true},
		{in: "/photos/", wantErr: true},
		{in: "/photos/0", wantErr: true},
		{in: "/photos/7/original", wantErr: true},
		{in: "/photos/abc/thumbnail", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, thumb, err := ParseLocator(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got id=%d err=%v", id, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if id != tt.wantID || thumb != tt.wantThumb {
				t.Fatalf("expected (%d, %v), got (%d, %v)", tt.wantID, tt.wantThumb, id, thumb)
			}
			if LocatorFor(id, thumb) != tt.in {
				t.Fatalf("locator does not round trip: %s", LocatorFor(id, thumb))
			}
		})
	}
}

func TestReferences(t *testing.T) {
	st := newStoreForTest(t)
	svc := newServiceForTest(t, st, nil)
	ctx := context.Background()

	id, err := svc.Store(ctx, encodedPNG(t, 640, 480, 1), "U")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	thumb, err := svc.GetDerivative(ctx, id)
	if err != nil {
		t.Fatalf("derivative: %v", err)
	}

	meta, err := svc.DerivativeMetadata(ctx, id)
	if err != nil || meta == nil || meta.ID != thumb.ID || meta.Payload != nil {
		t.Fatalf("expected payload-free derivative metadata for %d, got %+v err=%v", thumb.ID, meta, err)
	}
	if none, err := svc.DerivativeMetadata(ctx, thumb.ID); err != nil || none != nil {
		t.Fatalf("expected no derivative of a derivative, got %+v err=%v", none, err)
	}

	if count, err := svc.AttachReference(ctx, id); err != nil || count != 2 {
		t.Fatalf("attach: count=%d err=%v", count, err)
	}
	for i, want := range []int64{1, 0, 0, 0} {
		count, err := svc.DetachReference(ctx, id)
		if err != nil || count != want {
			t.Fatalf("detach %d: expected %d, got count=%d err=%v", i, want, count, err)
		}
	}
	record, err := svc.GetMetadata(ctx, id)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if record.ReferenceCount != 0 {
		t.Fatalf("expected count 0, got %d", record.ReferenceCount)
	}

	if _, err := svc.AttachReference(ctx, thumb.ID); !errors.Is(err, ErrDerivativeReference) {
		t.Fatalf("expected ErrDerivativeReference, got %v", err)
	}
	if _, err := svc.DetachReference(ctx, thumb.ID); !errors.Is(err, ErrDerivativeReference) {
		t.Fatalf("expected ErrDerivativeReference, got %v", err)
	}
	if _, err := svc.AttachReference(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
