package domain

import (
	"context"
	"time"
)

// LockManager provides distributed mutual exclusion. Sync serializes all
// matching for one owner behind a lock keyed by the owner ID, because FIFO
// correctness depends on strict in-order mutation of shared position state.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned
	// function releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SyncCursorCache remembers the end of the last successfully synced window
// per (owner, exchange), so scheduled re-syncs can overlap it safely rather
// than starting from scratch.
type SyncCursorCache interface {
	Get(ctx context.Context, ownerID int64, exchange string) (int64, error)
	Set(ctx context.Context, ownerID int64, exchange string, endMs int64) error
}
