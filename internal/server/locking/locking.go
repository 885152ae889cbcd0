// Package locking provides per-path locks taken around bundle commits.
// Locks never block: a conflicting request fails with common.ErrLocked.
package locking

import "context"

type Mode int

const (
	LockShared Mode = iota + 1
	LockExclusive
)

func (m Mode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// Provider acquires and releases locks on absolute storage paths.
type Provider interface {
	Acquire(ctx context.Context, path string, mode Mode) error
	Release(ctx context.Context, path string, mode Mode) error
}
