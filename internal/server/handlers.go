package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"photostore/internal/api"
	"photostore/internal/blobstore"
	"photostore/internal/models"
)

const uploadJSONMaxBody = 32 << 20 // 32 MiB

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func badRequest(errCode int, err error) error {
	return apiError{status: http.StatusBadRequest, code: "invalid_argument", errCode: errCode, err: err}
}

// classify maps an error onto a status, a code name and a numeric code.
func classify(err error) (int, string, int) {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		code := apiErr.code
		if code == "" {
			code = defaultErrorCodeName(apiErr.status)
		}
		errCode := apiErr.errCode
		if errCode == 0 {
			errCode = defaultErrorCodeByStatus(apiErr.status)
		}
		return apiErr.status, code, errCode
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request_too_large", ErrCodeRequestTooLarge
	case errors.Is(err, blobstore.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_format", ErrCodeInvalidFormat
	case errors.Is(err, blobstore.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", ErrCodeInvalidArgument
	case errors.Is(err, blobstore.ErrNotFound):
		return http.StatusNotFound, "not_found", ErrCodePhotoNotFound
	case errors.Is(err, blobstore.ErrDerivativeReference):
		return http.StatusConflict, "conflict", ErrCodeConflict
	case errors.Is(err, blobstore.ErrStorageWriteFailed):
		return http.StatusInternalServerError, "store_failure", ErrCodeStoreFailure
	default:
		return http.StatusInternalServerError, "internal", ErrCodeInternal
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, errCode := classify(err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", errCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status == http.StatusUnauthorized || status == http.StatusTooManyRequests:
		s.log().Warn("request rejected", fields...)
	default:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: errCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest(ErrCodeInvalidJSON, fmt.Errorf("invalid json body: %w", err))
	}
	return nil
}

func requirePhotoID(r *http.Request) (models.BlobID, error) {
	id, err := models.ParseBlobID(r.PathValue("id"))
	if err != nil {
		return 0, badRequest(ErrCodeInvalidID, err)
	}
	return id, nil
}
