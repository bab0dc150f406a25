package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const hashAlgorithmSetting = "hash_algorithm"

// ClaimHashAlgorithm records algorithm as the content hash algorithm of the
// database unless one is recorded already, and returns the recorded value.
// Callers compare the result to decide whether their hasher may write here.
func (s *Store) ClaimHashAlgorithm(ctx context.Context, algorithm string) (string, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		return "", fmt.Errorf("hash algorithm is required")
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
		hashAlgorithmSetting, algorithm,
	); err != nil {
		return "", fmt.Errorf("record hash algorithm: %w", err)
	}
	return s.setting(ctx, hashAlgorithmSetting)
}

func (s *Store) setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}
