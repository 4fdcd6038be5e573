package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrWrite indicates a value could not be persisted (quota, disabled or closed storage).
	// Callers treat preference durability as best-effort and usually only log it.
	ErrWrite = errors.New("storage write failed")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("storage closed")

	// ErrUnavailable indicates the backend could not be opened, for example
	// because another process in the same shell session holds its lock.
	ErrUnavailable = errors.New("storage unavailable")
)

// wrapWrite tags a backend failure with ErrWrite while keeping the cause inspectable.
func wrapWrite(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: key %s: %w", ErrWrite, key, err)
}
