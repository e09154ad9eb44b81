package domain

import "context"

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// PositionStore persists positions. The ledger is the sole writer of
// position lifecycle state; implementations only move bytes.
type PositionStore interface {
	// Create inserts the position and assigns its ID.
	Create(ctx context.Context, p *Position) error
	// Update replaces all mutable fields of an existing position.
	Update(ctx context.Context, p Position) error
	// GetByID retrieves one position scoped to its owner.
	GetByID(ctx context.Context, ownerID, id int64) (Position, error)
	// OldestOpen returns the OPEN position for (owner, symbol) with the
	// smallest entry time, ties broken by smallest ID, with remaining
	// quantity above zero. Returns ErrNotFound when the queue is empty.
	OldestOpen(ctx context.Context, ownerID int64, symbol string) (Position, error)
	// HasBuyExec reports whether a position with this buy execution ID
	// already exists for the owner (the idempotency guard lookup).
	HasBuyExec(ctx context.Context, ownerID int64, buyExecID string) (bool, error)
	// ListOpen returns every OPEN position for the owner.
	ListOpen(ctx context.Context, ownerID int64) ([]Position, error)
	// List returns positions newest-entry first, optionally filtered by
	// status (empty status means all).
	List(ctx context.Context, ownerID int64, status PositionStatus, opts ListOpts) ([]Position, error)
	// Stats aggregates closed-position performance for the owner.
	Stats(ctx context.Context, ownerID int64) (Stats, error)
}

// ProfileStore persists owner profiles and their exchange credentials.
type ProfileStore interface {
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, p Profile) error
	GetByID(ctx context.Context, id int64) (Profile, error)
	GetByToken(ctx context.Context, publicID string) (Profile, error)
	// GetByAPIKey looks up the profile registered for an exchange API key;
	// registration upserts on this key.
	GetByAPIKey(ctx context.Context, exchange, apiKey string) (Profile, error)
	SetLastSync(ctx context.Context, id, syncedAtMs int64) error
	List(ctx context.Context) ([]Profile, error)
}

// SyncRunStore persists the audit trail of ingestion batches.
type SyncRunStore interface {
	Insert(ctx context.Context, run SyncRun) error
	ListRecent(ctx context.Context, ownerID int64, limit int) ([]SyncRun, error)
}
