// Package common defines shared constants and sentinel errors used across
// davbundle components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Storage errors.
	ErrNotFilesHome     = errors.New("not a files home")
	ErrReadOnly         = errors.New("storage is read-only")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// Lock errors.
	ErrLocked    = errors.New("resource is locked")
	ErrNotLocked = errors.New("resource is not locked")
)
