package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksenkin/tradediary/internal/domain"
)

// SyncRunStore implements domain.SyncRunStore using PostgreSQL.
type SyncRunStore struct {
	pool *pgxpool.Pool
}

// NewSyncRunStore creates a new SyncRunStore backed by the given pool.
func NewSyncRunStore(pool *pgxpool.Pool) *SyncRunStore {
	return &SyncRunStore{pool: pool}
}

// Insert records the audit row of one ingestion batch.
func (s *SyncRunStore) Insert(ctx context.Context, run domain.SyncRun) error {
	const query = `
		INSERT INTO sync_runs (
			id, owner_id, exchange, window_from, window_to,
			executions_received, buys_created, sell_matches_closed,
			unmatched_sell_qty, dust_closed,
			error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.OwnerID, run.Exchange, run.WindowFrom, run.WindowTo,
		run.Summary.ExecutionsReceived, run.Summary.BuysCreated,
		run.Summary.SellMatchesClosed, run.Summary.UnmatchedSellQuantity,
		run.Summary.DustClosed,
		run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert sync run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns the newest sync runs for the owner.
func (s *SyncRunStore) ListRecent(ctx context.Context, ownerID int64, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, exchange, window_from, window_to,
			executions_received, buys_created, sell_matches_closed,
			unmatched_sell_qty, dust_closed,
			error, started_at, finished_at
		FROM sync_runs
		WHERE owner_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		var run domain.SyncRun
		if err := rows.Scan(
			&run.ID, &run.OwnerID, &run.Exchange, &run.WindowFrom, &run.WindowTo,
			&run.Summary.ExecutionsReceived, &run.Summary.BuysCreated,
			&run.Summary.SellMatchesClosed, &run.Summary.UnmatchedSellQuantity,
			&run.Summary.DustClosed,
			&run.Error, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

var _ domain.SyncRunStore = (*SyncRunStore)(nil)
