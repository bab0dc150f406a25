package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"photostore/internal/api"
	"photostore/internal/blobstore"
	"photostore/internal/models"
	"photostore/internal/payload"
	"photostore/internal/store"
)

func newTestServer(t *testing.T) (*Server, *blobstore.Service) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "photos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := blobstore.New(st, nil, logger, blobstore.DefaultOptions())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return New("127.0.0.1:0", svc, logger), svc
}

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return payload.Encode("image/png", buf.Bytes())
}

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7433")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7433" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		_, err := ListenAddr("http://0.0.0.0:7433")
		if err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7433")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7433" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestWithAuth(t *testing.T) {
	t.Run("denies missing auth", func(t *testing.T) {
		srv := &Server{apiToken: "token"}
		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusNoContent)
		})
		handler := srv.withAuth(next)

		req := httptest.NewRequest(http.MethodGet, "/photos/1", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.ErrorCode != ErrCodeUnauthorized {
			t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
		}
		if nextCalled {
			t.Fatal("next handler should not be called")
		}
	})

	t.Run("allows valid auth", func(t *testing.T) {
		srv := &Server{apiToken: "token"}
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		req := httptest.NewRequest(http.MethodGet, "/photos/1", nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		srv.withAuth(next).ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	})

	t.Run("health stays open", func(t *testing.T) {
		srv := &Server{apiToken: "token"}
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		w := httptest.NewRecorder()
		srv.withAuth(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid format", err: blobstore.ErrInvalidFormat, status: http.StatusBadRequest, code: "invalid_format"},
		{name: "invalid argument", err: blobstore.ErrInvalidArgument, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "not found", err: blobstore.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "derivative reference", err: blobstore.ErrDerivativeReference, status: http.StatusConflict, code: "conflict"},
		{name: "storage", err: blobstore.ErrStorageWriteFailed, status: http.StatusInternalServerError, code: "store_failure"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal"},
		{name: "explicit", err: apiError{status: http.StatusNotFound, err: errors.New("x")}, status: http.StatusNotFound, code: "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Fatalf("expected %d/%s, got %d/%s", tt.status, tt.code, status, code)
			}
		})
	}
}

func TestPhotoLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := api.NewClient(ts.URL)
	ctx := context.Background()

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	uploaded, err := client.Upload(ctx, api.UploadRequest{DataURL: encodedPNG(t, 640, 480), UploaderID: "42"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !uploaded.Created || uploaded.Locator != blobstore.LocatorFor(uploaded.ID, false) || uploaded.ThumbnailLocator != blobstore.LocatorFor(uploaded.ID, true) {
		t.Fatalf("unexpected upload response: %+v", uploaded)
	}

	photo, err := client.GetPhoto(ctx, uploaded.ID)
	if err != nil {
		t.Fatalf("get photo: %v", err)
	}
	if photo.UploaderID != "42" || photo.MimeType != "image/png" || photo.Width == nil || *photo.Width != 640 {
		t.Fatalf("unexpected metadata: %+v", photo)
	}

	var thumb bytes.Buffer
	mimeType, n, err := client.Fetch(ctx, uploaded.ThumbnailLocator, &thumb)
	if err != nil {
		t.Fatalf("fetch thumbnail: %v", err)
	}
	if mimeType != "image/jpeg" || n == 0 {
		t.Fatalf("unexpected thumbnail: mime=%q bytes=%d", mimeType, n)
	}
	cfg, _, err := image.DecodeConfig(&thumb)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 150 {
		t.Fatalf("expected 200x150 thumbnail, got %dx%d", cfg.Width, cfg.Height)
	}

	latest, err := client.Latest(ctx, "42", false)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != uploaded.ID {
		t.Fatalf("expected latest %d, got %d", uploaded.ID, latest.ID)
	}

	deleted, err := client.DeletePhoto(ctx, uploaded.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Deleted || deleted.DerivativesDeleted != 1 {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}

	_, err = client.GetPhoto(ctx, uploaded.ID)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.ErrorCode != ErrCodePhotoNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}

	again, err := client.DeletePhoto(ctx, uploaded.ID)
	if err != nil || again.Deleted {
		t.Fatalf("expected idempotent delete, got %+v err=%v", again, err)
	}

	info, err := client.GetInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.HashAlgorithm != "sha256" || info.Originals != 0 || info.SchemaVersion != info.AvailableVersion {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestUploadAcceptsMixedKeyStyles(t *testing.T) {
	srv, svc := newTestServer(t)
	body := `{"photoData":"` + encodedPNG(t, 640, 480) + `","userId":7,"generateThumbnail":false}`

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/photos", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ThumbnailLocator != "" {
		t.Fatalf("expected no thumbnail when opted out, got %q", resp.ThumbnailLocator)
	}
	meta, err := svc.GetMetadata(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.UploaderID != "7" {
		t.Fatalf("expected uploader 7, got %q", meta.UploaderID)
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/photos", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an already stored photo, got %d: %s", w.Code, w.Body.String())
	}
	var again api.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if again.Created || again.ID != resp.ID {
		t.Fatalf("expected existing id %d without created, got %+v", resp.ID, again)
	}
}

func TestUploadRejections(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "missing uploader", body: `{"data_url":"data:image/png;base64,AAAA"}`, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "garbage payload", body: `{"data_url":"not-a-data-url","uploader_id":"1"}`, status: http.StatusBadRequest, code: "invalid_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/photos", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var errResp api.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, errResp.Code)
			}
		})
	}
}

func TestContentETag(t *testing.T) {
	srv, svc := newTestServer(t)
	id, err := svc.Store(context.Background(), encodedPNG(t, 16, 16), "U")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, blobstore.LocatorFor(id, false), nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content response: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected etag")
	}

	req := httptest.NewRequest(http.MethodGet, blobstore.LocatorFor(id, false), nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("expected empty 304, got %d with %d bytes", w.Code, w.Body.Len())
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, blobstore.LocatorFor(id, true), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing thumbnail, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/photos/abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

// payloadCountingBackend counts reads that load payload bytes.
type payloadCountingBackend struct {
	*store.Store
	reads *atomic.Int64
}

func (b payloadCountingBackend) GetBlob(ctx context.Context, id models.BlobID, withPayload bool) (*models.BlobRecord, error) {
	if withPayload {
		b.reads.Add(1)
	}
	return b.Store.GetBlob(ctx, id, withPayload)
}

func (b payloadCountingBackend) GetDerivative(ctx context.Context, originalID models.BlobID, withPayload bool) (*models.BlobRecord, error) {
	if withPayload {
		b.reads.Add(1)
	}
	return b.Store.GetDerivative(ctx, originalID, withPayload)
}

func TestContentRevalidationSkipsPayload(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "photos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	reads := &atomic.Int64{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := blobstore.New(payloadCountingBackend{Store: st, reads: reads}, nil, logger, blobstore.DefaultOptions())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	handler := New("127.0.0.1:0", svc, logger).Handler()
	ctx := context.Background()

	id, err := svc.Store(ctx, encodedPNG(t, 640, 480), "U")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	hash, err := svc.ContentHash(ctx, id)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	thumb, err := svc.DerivativeMetadata(ctx, id)
	if err != nil || thumb == nil {
		t.Fatalf("derivative metadata: %+v err=%v", thumb, err)
	}

	reads.Store(0)
	req := httptest.NewRequest(http.MethodGet, blobstore.LocatorFor(id, false), nil)
	req.Header.Set("If-None-Match", contentETag(hash))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 || reads.Load() != 0 {
		t.Fatalf("expected payload-free 304, got %d with %d bytes after %d reads", w.Code, w.Body.Len(), reads.Load())
	}
	meta, err := svc.GetMetadata(ctx, id)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.LastAccessedAt == nil {
		t.Fatal("expected revalidated read to record an access")
	}

	tests := []struct {
		name   string
		path   string
		header string
		status int
		reads  int64
	}{
		{name: "matching tag", path: blobstore.LocatorFor(id, false), header: contentETag(hash), status: http.StatusNotModified},
		{name: "tag list with weak match", path: blobstore.LocatorFor(id, false), header: `"other", W/` + contentETag(hash), status: http.StatusNotModified},
		{name: "thumbnail tag", path: blobstore.LocatorFor(id, true), header: contentETag(thumb.ContentHash), status: http.StatusNotModified},
		{name: "stale tag", path: blobstore.LocatorFor(id, false), header: `"stale"`, status: http.StatusOK, reads: 1},
		{name: "original tag on thumbnail", path: blobstore.LocatorFor(id, true), header: contentETag(hash), status: http.StatusOK, reads: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reads.Store(0)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("If-None-Match", tt.header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if got := reads.Load(); got != tt.reads {
				t.Fatalf("expected %d payload reads, got %d", tt.reads, got)
			}
			if w.Header().Get("ETag") == "" {
				t.Fatal("expected etag on every content response")
			}
		})
	}

}

func TestETagMatches(t *testing.T) {
	const etag = `"abc"`
	tests := []struct {
		header string
		want   bool
	}{
		{header: `"abc"`, want: true},
		{header: `W/"abc"`, want: true},
		{header: `"x",  "abc" `, want: true},
		{header: `*`, want: true},
		{header: `"abcd"`, want: false},
		{header: `abc`, want: false},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, etag); got != tt.want {
			t.Fatalf("etagMatches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
