package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"photostore/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "PHOTOSTORE_HTTP_TIMEOUT"
	apiTokenEnvKey     = "PHOTOSTORE_API_TOKEN"
)

// Client is a simple HTTP client for the photostore API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResponse, error) {
	var resp UploadResponse
	err := c.do(ctx, http.MethodPost, "/v1/photos", nil, req, &resp)
	return resp, err
}

func (c *Client) GetPhoto(ctx context.Context, id models.BlobID) (PhotoResponse, error) {
	var resp PhotoResponse
	err := c.do(ctx, http.MethodGet, "/v1/photos/"+id.String(), nil, nil, &resp)
	return resp, err
}

func (c *Client) Latest(ctx context.Context, uploaderID string, includeThumbnails bool) (PhotoResponse, error) {
	var resp PhotoResponse
	query := url.Values{}
	if includeThumbnails {
		query.Set("include_thumbnails", "true")
	}
	err := c.do(ctx, http.MethodGet, "/v1/uploaders/"+url.PathEscape(uploaderID)+"/latest", query, nil, &resp)
	return resp, err
}

func (c *Client) DeletePhoto(ctx context.Context, id models.BlobID) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodDelete, "/v1/photos/"+id.String(), nil, nil, &resp)
	return resp, err
}

// Fetch copies the bytes behind a locator to w and returns their media type.
func (c *Client) Fetch(ctx context.Context, locator string, w io.Writer) (string, int64, error) {
	if !strings.HasPrefix(locator, "/") {
		return "", 0, fmt.Errorf("locator must be an absolute path, got %q", locator)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+locator, nil)
	if err != nil {
		return "", 0, err
	}
	c.setAuthHeader(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", 0, decodeError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	return resp.Header.Get("Content-Type"), n, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
	}
	return apiErr
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
