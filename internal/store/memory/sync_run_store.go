package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ksenkin/tradediary/internal/domain"
)

// SyncRunStore is an in-memory domain.SyncRunStore.
type SyncRunStore struct {
	mu   sync.RWMutex
	rows []domain.SyncRun
}

// NewSyncRunStore creates an empty in-memory sync run store.
func NewSyncRunStore() *SyncRunStore {
	return &SyncRunStore{}
}

// Insert records the audit row of one ingestion batch.
func (s *SyncRunStore) Insert(_ context.Context, run domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, run)
	return nil
}

// ListRecent returns the newest sync runs for the owner.
func (s *SyncRunStore) ListRecent(_ context.Context, ownerID int64, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SyncRun
	for _, run := range s.rows {
		if run.OwnerID == ownerID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.SyncRunStore = (*SyncRunStore)(nil)
