package main

import (
	"context"
	"errors"
	"net"

	"photostore/internal/api"
	"photostore/internal/blobstore"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	remote := errors.As(err, &apiErr)
	if remote {
		if apiErr.Code == "unauthorized" {
			lines = append(lines, "hint: verify PHOTOSTORE_API_TOKEN matches the server's token.")
		}
		if apiErr.Retryable() {
			lines = append(lines, "hint: retry shortly or reduce concurrent uploads.")
		}
		if apiErr.Code == "" && apiErr.Status < 500 {
			lines = append(lines, "hint: verify PHOTOSTORE_API_URL points to a photostore server.")
		}
		if apiErr.Status >= 500 && !apiErr.Retryable() {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
	}

	// Remote errors unwrap to the same sentinels, so these apply to both.
	switch {
	case errors.Is(err, blobstore.ErrInvalidFormat):
		lines = append(lines, "hint: input must be an image file or a data URL such as data:image/png;base64,...")
	case errors.Is(err, blobstore.ErrSweepInProgress):
		lines = append(lines, "hint: another sweep holds the lease; retry when it finishes or after sweep.lease_ttl.")
	case errors.Is(err, blobstore.ErrStorageWriteFailed) && !remote:
		lines = append(lines, "hint: check that db_path is writable and the disk has free space.")
	case errors.Is(err, blobstore.ErrDerivativeReference):
		lines = append(lines, "hint: attach and detach references on the original id, not the thumbnail.")
	case errors.Is(err, blobstore.ErrHashAlgorithmMismatch):
		lines = append(lines, "hint: set hash_algorithm to the algorithm the database was created with.")
	}
	if remote {
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase PHOTOSTORE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a photostore server is running at PHOTOSTORE_API_URL.",
			"hint: start one with: photostore serve",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
