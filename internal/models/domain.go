package models

import (
	"fmt"
	"strings"
)

// BlobKind names what a stored record is for.
type BlobKind string

const (
	KindOriginal  BlobKind = "original"
	KindThumbnail BlobKind = "thumbnail"
)

var validBlobKinds = map[BlobKind]struct{}{
	KindOriginal:  {},
	KindThumbnail: {},
}

func IsValidBlobKind(kind BlobKind) bool {
	_, ok := validBlobKinds[kind]
	return ok
}

func ParseBlobKind(raw string) (BlobKind, error) {
	value := BlobKind(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("kind is required")
	}
	if !IsValidBlobKind(value) {
		return "", fmt.Errorf("invalid kind: %s", value)
	}
	return value, nil
}

// Kind reports whether the record is an upload or a generated thumbnail.
func (b BlobRecord) Kind() BlobKind {
	if b.IsDerivative {
		return KindThumbnail
	}
	return KindOriginal
}
