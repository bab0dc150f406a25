package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UploadRequest is the canonical form of one upload handed to the blob store.
type UploadRequest struct {
	EncodedPayload     string
	UploaderID         string
	GenerateDerivative bool
}

// Field precedence for external records. The first key present with a
// non-empty value wins; later keys are never consulted.
var (
	uploadPayloadKeys    = []string{"data_url", "dataUrl", "photo_data", "photoData", "image", "photo"}
	uploadUploaderKeys   = []string{"uploader_id", "uploaderId", "user_id", "userId", "owner_id", "ownerId"}
	uploadDerivativeKeys = []string{"generate_thumbnail", "generateThumbnail", "generate_derivative", "generateDerivative", "thumbnail"}
)

// NormalizeUpload maps an external partial record with mixed key styles into
// an UploadRequest.
func NormalizeUpload(record map[string]any) (UploadRequest, error) {
	req := UploadRequest{GenerateDerivative: true}
	if len(record) == 0 {
		return req, fmt.Errorf("record is empty")
	}

	raw, key, ok := firstPresent(record, uploadPayloadKeys)
	if !ok {
		return req, fmt.Errorf("record has no payload (expected one of %s)", strings.Join(uploadPayloadKeys, ", "))
	}
	payload, isString := raw.(string)
	if !isString {
		return req, fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	req.EncodedPayload = strings.TrimSpace(payload)

	raw, key, ok = firstPresent(record, uploadUploaderKeys)
	if !ok {
		return req, fmt.Errorf("record has no uploader (expected one of %s)", strings.Join(uploadUploaderKeys, ", "))
	}
	uploader, err := stringifyID(raw)
	if err != nil {
		return req, fmt.Errorf("%s: %w", key, err)
	}
	req.UploaderID = uploader

	if raw, key, ok = firstPresent(record, uploadDerivativeKeys); ok {
		flag, err := parseFlag(raw)
		if err != nil {
			return req, fmt.Errorf("%s: %w", key, err)
		}
		req.GenerateDerivative = flag
	}

	return req, nil
}

func firstPresent(record map[string]any, keys []string) (any, string, bool) {
	for _, key := range keys {
		value, ok := record[key]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return value, key, true
	}
	return nil, "", false
}

func stringifyID(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("must be an integer, got %v", v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("unsupported id type %T", raw)
	}
}

func parseFlag(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("must be true or false, got %q", v)
		}
		return parsed, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("unsupported flag type %T", raw)
	}
}
