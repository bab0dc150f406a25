// Package payload decodes the single-string upload encoding (an RFC 2397 data
// URL) into a media type and raw bytes.
package payload

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

const scheme = "data:"

// ErrInvalidFormat reports an encoded payload whose header is absent or
// malformed, or whose data section is empty.
var ErrInvalidFormat = errors.New("invalid payload format")

// Decoded is one parsed payload.
type Decoded struct {
	MimeType string
	Data     []byte
}

// Decode parses "data:<type>/<subtype>[;params][;base64],<data>". The media
// type must be spelled out; the RFC's implicit text/plain default is rejected.
func Decode(encoded string) (Decoded, error) {
	var zero Decoded
	encoded = strings.TrimSpace(encoded)
	if len(encoded) < len(scheme) || !strings.EqualFold(encoded[:len(scheme)], scheme) {
		return zero, fmt.Errorf("%w: missing %q header", ErrInvalidFormat, scheme)
	}

	comma := strings.IndexByte(encoded, ',')
	if comma < 0 {
		return zero, fmt.Errorf("%w: missing data separator", ErrInvalidFormat)
	}
	header := encoded[len(scheme):comma]
	declared, _, _ := strings.Cut(header, ";")
	if _, _, err := mime.ParseMediaType(declared); err != nil || !strings.Contains(declared, "/") {
		return zero, fmt.Errorf("%w: missing or malformed media type %q", ErrInvalidFormat, declared)
	}

	parsed, err := dataurl.DecodeString(scheme + encoded[len(scheme):])
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(parsed.Data) == 0 {
		return zero, fmt.Errorf("%w: empty data", ErrInvalidFormat)
	}

	return Decoded{
		MimeType: strings.ToLower(parsed.MediaType.ContentType()),
		Data:     parsed.Data,
	}, nil
}

// Encode builds a base64 data URL for raw bytes of the given media type.
func Encode(mimeType string, data []byte) string {
	return dataurl.New(data, mimeType).String()
}
