package storage

import "errors"

// Errors shared by all backends.
var (
	// ErrNotFound is returned when a cache has no entry for the key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a snapshot repeats a key or a
	// journal event with the same (hash, status) was already recorded.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
