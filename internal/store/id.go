package store

import (
	"crypto/rand"
	"fmt"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	tokenLength    = 8
)

// GenerateToken returns a random token such as "sw-k3x9a0qp" using prefix.
func GenerateToken(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("token prefix is required")
	}
	hash, err := randomBase36(tokenLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, hash), nil
}

// GenerateLeaseOwner returns a new sweep lease owner token using the sw- prefix.
func GenerateLeaseOwner() (string, error) {
	return GenerateToken("sw")
}

func randomBase36(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = base36Alphabet[int(b[i])%len(base36Alphabet)]
	}
	return string(out), nil
}
