package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"photostore/internal/models"
)

// LocalCAS mirrors payloads into a local content-addressed tree laid out as
// <algorithm>/<hex[0:2]>/<hex[2:4]>/<hex>.
type LocalCAS struct {
	root string
}

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Put writes data under the key of its digest. An existing object is left
// in place and reported as not written.
func (c *LocalCAS) Put(ctx context.Context, d digest.Digest, data []byte) (key string, written bool, err error) {
	if c == nil {
		return "", false, fmt.Errorf("local cas is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	key, err = CASKey(d)
	if err != nil {
		return "", false, err
	}
	dst := filepath.Join(c.root, filepath.FromSlash(key))
	if _, err := os.Stat(dst); err == nil {
		return key, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", false, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return "", false, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		cleanup()
		return "", false, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", false, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return key, false, nil
		}
		cleanup()
		return "", false, err
	}
	return key, true, nil
}

// Open returns a reader for the object stored under key.
func (c *LocalCAS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("local cas is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// CASKey returns the relative object key of a digest.
func CASKey(d digest.Digest) (string, error) {
	algorithm, encoded := string(d.Algorithm()), d.Encoded()
	if algorithm == "" || len(encoded) < 4 || strings.ContainsAny(algorithm+encoded, `/\.`) {
		return "", fmt.Errorf("invalid digest %q", d)
	}
	return fmt.Sprintf("%s/%s/%s/%s", algorithm, encoded[0:2], encoded[2:4], encoded), nil
}

func (c *LocalCAS) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key")
	}
	return filepath.Join(c.root, clean), nil
}

// ExportResult reports one export run.
type ExportResult struct {
	Objects int   `json:"objects" yaml:"objects"`
	Written int   `json:"written" yaml:"written"`
	Skipped int   `json:"skipped" yaml:"skipped"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
}

// Export mirrors every stored payload, originals and derivatives, into a
// local CAS rooted at dir. Objects already present are skipped, so repeated
// exports into the same tree are incremental.
func (s *Service) Export(ctx context.Context, dir string) (ExportResult, error) {
	result := ExportResult{}
	cas, err := NewLocalCAS(dir)
	if err != nil {
		return result, err
	}

	after := models.BlobID(0)
	for {
		ids, err := s.backend.ListBlobIDs(ctx, after, s.opts.SweepBatchSize)
		if err != nil {
			return result, fmt.Errorf("list blobs: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]

		for _, id := range ids {
			record, err := s.backend.GetBlob(ctx, id, true)
			if err != nil {
				return result, fmt.Errorf("load blob %s: %w", id, err)
			}
			if record == nil {
				continue
			}
			_, written, err := cas.Put(ctx, record.ContentHash, record.Payload)
			if err != nil {
				return result, fmt.Errorf("export blob %s: %w", id, err)
			}
			result.Objects++
			if written {
				result.Written++
				result.Bytes += int64(len(record.Payload))
			} else {
				result.Skipped++
			}
		}
	}

	s.logger.Info("export finished", "dir", cas.root, "objects", result.Objects, "written", result.Written, "skipped", result.Skipped)
	return result, nil
}
