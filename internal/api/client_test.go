package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"photostore/internal/blobstore"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientDecodesStructuredErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"blob not found: 9","code":"not_found","error_code":2001}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetPhoto(context.Background(), 9)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "not_found" || apiErr.ErrorCode != 2001 {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientFallbackErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Code != "" {
		t.Fatalf("expected bare 502 api error, got %v", err)
	}
}

func TestClientFetchSendsToken(t *testing.T) {
	t.Setenv(apiTokenEnvKey, "secret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/photos/3/thumbnail" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	mimeType, n, err := NewClient(srv.URL+"/").Fetch(context.Background(), "/photos/3/thumbnail", &buf)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if mimeType != "image/jpeg" || n != int64(len("jpeg-bytes")) || buf.String() != "jpeg-bytes" {
		t.Fatalf("unexpected fetch result: mime=%q n=%d body=%q", mimeType, n, buf.String())
	}

	if _, _, err := NewClient(srv.URL).Fetch(context.Background(), "photos/3", &buf); err == nil {
		t.Fatal("expected error for relative locator")
	}
}

func TestAPIErrorUnwrapsToDomainSentinels(t *testing.T) {
	tests := []struct {
		err       *APIError
		sentinel  error
		retryable bool
		text      string
	}{
		{err: &APIError{Status: http.StatusNotFound, Code: "not_found", ErrorCode: 2001, Message: "blob not found: 9"}, sentinel: blobstore.ErrNotFound, text: "not_found: blob not found: 9"},
		{err: &APIError{Status: http.StatusBadRequest, Code: "invalid_format", Message: "bad data url"}, sentinel: blobstore.ErrInvalidFormat, text: "invalid_format: bad data url"},
		{err: &APIError{Status: http.StatusConflict, Code: "conflict", Message: "thumbnail"}, sentinel: blobstore.ErrDerivativeReference, text: "conflict: thumbnail"},
		{err: &APIError{Status: http.StatusTooManyRequests, Code: "resource_exhausted", Message: "busy"}, retryable: true, text: "resource_exhausted: busy"},
		{err: &APIError{Status: http.StatusBadGateway}, retryable: true, text: "api error: 502 Bad Gateway"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.text {
			t.Fatalf("expected %q, got %q", tt.text, got)
		}
		if tt.sentinel != nil && !errors.Is(tt.err, tt.sentinel) {
			t.Fatalf("expected %q to match %v", tt.text, tt.sentinel)
		}
		if tt.sentinel == nil && errors.Unwrap(tt.err) != nil {
			t.Fatalf("expected no sentinel for %q", tt.text)
		}
		if tt.err.Retryable() != tt.retryable {
			t.Fatalf("%q: expected retryable=%v", tt.text, tt.retryable)
		}
	}
}
