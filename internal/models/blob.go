package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// BlobID is the stable identifier of one stored blob record.
type BlobID int64

// String formats the id the way locators and CLI arguments spell it.
func (id BlobID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseBlobID parses a positive decimal blob id.
func ParseBlobID(raw string) (BlobID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("blob id is required")
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid blob id %q", raw)
	}
	return BlobID(value), nil
}

// BlobRecord is one stored media object: an uploaded original or a derivative
// generated from one. OriginalBlobID is a lookup-only back-reference.
type BlobRecord struct {
	ID             BlobID        `json:"id" yaml:"id"`
	ContentHash    digest.Digest `json:"content_hash" yaml:"content_hash"`
	Payload        []byte        `json:"-" yaml:"-"`
	MimeType       string        `json:"mime_type" yaml:"mime_type"`
	SizeBytes      int64         `json:"size_bytes" yaml:"size_bytes"`
	Width          *int          `json:"width,omitempty" yaml:"width,omitempty"`
	Height         *int          `json:"height,omitempty" yaml:"height,omitempty"`
	UploaderID     string        `json:"uploader_id" yaml:"uploader_id"`
	IsDerivative   bool          `json:"is_derivative" yaml:"is_derivative"`
	OriginalBlobID *BlobID       `json:"original_blob_id,omitempty" yaml:"original_blob_id,omitempty"`
	ReferenceCount int64         `json:"reference_count" yaml:"reference_count"`
	LastAccessedAt *time.Time    `json:"last_accessed_at,omitempty" yaml:"last_accessed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" yaml:"created_at"`
}

// HasDimensions reports whether both width and height were probed.
func (b BlobRecord) HasDimensions() bool {
	return b.Width != nil && b.Height != nil
}

// Metadata returns a copy of the record without its payload bytes.
func (b BlobRecord) Metadata() BlobRecord {
	b.Payload = nil
	return b
}
