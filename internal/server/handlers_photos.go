package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"photostore/internal/api"
	"photostore/internal/blobstore"
	"photostore/internal/models"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.uploadLimiter, w, r, "upload") {
		return
	}
	defer s.releaseLimiter(s.uploadLimiter)

	var record map[string]any
	if err := decodeJSONBody(w, r, uploadJSONMaxBody, &record); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := models.NormalizeUpload(record)
	if err != nil {
		s.writeServiceError(w, r, badRequest(ErrCodeInvalidArgument, err))
		return
	}

	result, err := s.photos.Put(r.Context(), req.EncodedPayload, req.UploaderID, blobstore.WithDerivative(req.GenerateDerivative))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	id := result.ID
	resp := api.UploadResponse{ID: id, Created: result.Created, Locator: blobstore.LocatorFor(id, false)}
	if thumb, err := s.photos.DerivativeMetadata(r.Context(), id); err == nil && thumb != nil {
		resp.ThumbnailLocator = blobstore.LocatorFor(id, true)
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := requirePhotoID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	record, err := s.photos.GetMetadata(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.photoResponse(r.Context(), record))
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := requirePhotoID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.photos.Remove(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{
		ID:                 id,
		Deleted:            result.Deleted,
		DerivativesDeleted: result.DerivativesDeleted,
		ReclaimedBytes:     result.ReclaimedBytes,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	includeThumbnails := false
	if raw := r.URL.Query().Get("include_thumbnails"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeServiceError(w, r, badRequest(ErrCodeInvalidArgument, err))
			return
		}
		includeThumbnails = parsed
	}

	record, err := s.photos.FindLatestByUploader(r.Context(), r.PathValue("uploader"), !includeThumbnails)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if record == nil {
		s.writeServiceError(w, r, apiError{status: http.StatusNotFound, err: fmt.Errorf("no photos for uploader %q", r.PathValue("uploader"))})
		return
	}
	s.writeJSON(w, http.StatusOK, s.photoResponse(r.Context(), *record))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id, err := requirePhotoID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	hash, err := s.photos.ContentHash(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if s.notModified(w, r, id, hash) {
		return
	}
	record, err := s.photos.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeContent(w, record)
}

func (s *Server) handleThumbnailContent(w http.ResponseWriter, r *http.Request) {
	id, err := requirePhotoID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	thumb, err := s.photos.DerivativeMetadata(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if thumb == nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: no derivative for %s", blobstore.ErrNotFound, id))
		return
	}
	if s.notModified(w, r, thumb.ID, thumb.ContentHash) {
		return
	}
	record, err := s.photos.GetDerivative(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeContent(w, record)
}

// notModified answers 304 when If-None-Match names the current content. The
// payload is never loaded on that path; the read still counts as an access.
func (s *Server) notModified(w http.ResponseWriter, r *http.Request, id models.BlobID, hash digest.Digest) bool {
	header := r.Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	etag := contentETag(hash)
	if !etagMatches(header, etag) {
		return false
	}
	s.photos.RecordAccess(r.Context(), id)
	setContentCacheHeaders(w, etag)
	w.WriteHeader(http.StatusNotModified)
	return true
}

// writeContent serves stored bytes. Content never changes for an id, so the
// content hash is a strong validator.
func (s *Server) writeContent(w http.ResponseWriter, record models.BlobRecord) {
	setContentCacheHeaders(w, contentETag(record.ContentHash))
	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(record.Payload)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(record.Payload); err != nil {
		s.log().Debug("write content", "blob_id", record.ID, "error", err)
	}
}

func setContentCacheHeaders(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
}

func contentETag(hash digest.Digest) string {
	return `"` + hash.Encoded() + `"`
}

// etagMatches applies the weak comparison If-None-Match uses: a list of
// tags, any of which may carry a W/ prefix, or "*".
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) photoResponse(ctx context.Context, record models.BlobRecord) api.PhotoResponse {
	resp := api.PhotoResponse{BlobRecord: record.Metadata(), Locator: blobstore.LocatorFor(record.ID, false)}
	if record.IsDerivative {
		return resp
	}
	thumb, err := s.photos.DerivativeMetadata(ctx, record.ID)
	if err != nil {
		s.log().Debug("derivative lookup failed", "blob_id", record.ID, "error", err)
		return resp
	}
	if thumb != nil {
		resp.ThumbnailLocator = blobstore.LocatorFor(record.ID, true)
	}
	return resp
}
