package api

import (
	"fmt"
	"net/http"

	"photostore/internal/blobstore"
)

// APIError is an ErrorResponse received by the client. Known codes unwrap to
// the matching blobstore sentinel, so callers can test remote and local
// failures with the same errors.Is checks.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

var sentinelByCode = map[string]error{
	"not_found":        blobstore.ErrNotFound,
	"invalid_format":   blobstore.ErrInvalidFormat,
	"invalid_argument": blobstore.ErrInvalidArgument,
	"conflict":         blobstore.ErrDerivativeReference,
	"store_failure":    blobstore.ErrStorageWriteFailed,
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return "api error"
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return sentinelByCode[e.Code]
}

// Retryable reports whether the same request may succeed later without
// changes.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}
