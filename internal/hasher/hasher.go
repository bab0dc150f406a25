// Package hasher computes the content digests used as dedup keys.
package hasher

import (
	"encoding/hex"
	"fmt"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

const (
	SHA256  = "sha256"
	BLAKE3  = "blake3"
	BLAKE2B = "blake2b"

	Default = SHA256
)

// Hasher computes a fixed-length digest over raw bytes. Implementations are
// pure and safe for concurrent use.
type Hasher interface {
	Algorithm() string
	Hash(data []byte) digest.Digest
}

type sha256Hasher struct{}

func (sha256Hasher) Algorithm() string { return SHA256 }

func (sha256Hasher) Hash(data []byte) digest.Digest {
	return digest.SHA256.FromBytes(data)
}

type sumHasher struct {
	name string
	sum  func([]byte) [32]byte
}

func (h sumHasher) Algorithm() string { return h.name }

func (h sumHasher) Hash(data []byte) digest.Digest {
	sum := h.sum(data)
	return digest.NewDigestFromEncoded(digest.Algorithm(h.name), hex.EncodeToString(sum[:]))
}

// New returns the hasher for a named algorithm. An empty name selects the default.
func New(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SHA256:
		return sha256Hasher{}, nil
	case BLAKE3:
		return sumHasher{name: BLAKE3, sum: blake3.Sum256}, nil
	case BLAKE2B:
		return sumHasher{name: BLAKE2B, sum: blake2b.Sum256}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q (allowed: %s, %s, %s)", name, SHA256, BLAKE3, BLAKE2B)
	}
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	return []string{SHA256, BLAKE3, BLAKE2B}
}
