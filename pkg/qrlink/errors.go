package qrlink

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrValidation indicates the request was rejected before any backend call
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable indicates the storage backend is not configured or unreachable
	ErrStorageUnavailable = errors.New("storage not configured")

	// ErrStoreFailed indicates the backend rejected a store operation
	ErrStoreFailed = errors.New("store failed")

	// ErrLookupFailed indicates the backend failed while listing candidates
	ErrLookupFailed = errors.New("lookup failed")

	// ErrNotFound indicates no stored object matches the requested content key
	ErrNotFound = errors.New("file not found")

	// ErrDecode indicates an inline payload could not be decoded
	ErrDecode = errors.New("decode failed")
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DecodeError is returned by the inline encoder when a payload is not valid
// base64 or not valid UTF-8.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode inline payload: %s: %v", e.Reason, e.Err)
	}
	return "decode inline payload: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// IsConfigurationError reports whether err stems from a missing or unusable
// storage configuration rather than a transient backend failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
