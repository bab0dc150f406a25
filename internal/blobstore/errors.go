package blobstore

import (
	"errors"
	"fmt"

	"photostore/internal/payload"
)

var (
	// ErrInvalidFormat reports an encoded payload that could not be decoded.
	// It is the payload package's sentinel so either name matches.
	ErrInvalidFormat = payload.ErrInvalidFormat
	// ErrInvalidArgument reports a malformed argument other than the payload.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports a missing blob id.
	ErrNotFound = errors.New("blob not found")
	// ErrStorageWriteFailed wraps backing store failures.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrDerivativeReference reports a reference change aimed at a derivative.
	ErrDerivativeReference = errors.New("derivatives are not reference counted")
	// ErrSweepInProgress reports that another sweep holds the sweep lock.
	ErrSweepInProgress = errors.New("sweep already in progress")
	// ErrHashAlgorithmMismatch reports a hasher other than the one the
	// database was created with.
	ErrHashAlgorithmMismatch = errors.New("hash algorithm does not match database")
)

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageWriteFailed, err)
}

func notFound(id fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
