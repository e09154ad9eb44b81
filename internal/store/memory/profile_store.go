package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ksenkin/tradediary/internal/domain"
)

// ProfileStore is an in-memory domain.ProfileStore.
type ProfileStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Profile
}

// NewProfileStore creates an empty in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		nextID: 1,
		rows:   make(map[int64]domain.Profile),
	}
}

// Create inserts the profile and assigns its ID.
func (s *ProfileStore) Create(_ context.Context, p *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.PublicID == p.PublicID || (row.Exchange == p.Exchange && row.APIKey == p.APIKey) {
			return domain.ErrAlreadyExists
		}
	}
	p.ID = s.nextID
	s.nextID++
	s.rows[p.ID] = *p
	return nil
}

// Update replaces the mutable credential fields of a profile.
func (s *ProfileStore) Update(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	row.APISecret = p.APISecret
	row.Passphrase = p.Passphrase
	row.BaseURL = p.BaseURL
	row.RecvWindow = p.RecvWindow
	s.rows[p.ID] = row
	return nil
}

// GetByID retrieves a profile by its ID.
func (s *ProfileStore) GetByID(_ context.Context, id int64) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[id]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

// GetByToken retrieves a profile by its public bearer token.
func (s *ProfileStore) GetByToken(_ context.Context, publicID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.rows {
		if p.PublicID == publicID {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

// GetByAPIKey looks up the profile registered for an exchange API key.
func (s *ProfileStore) GetByAPIKey(_ context.Context, exchange, apiKey string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.rows {
		if p.Exchange == exchange && p.APIKey == apiKey {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

// SetLastSync records the finish time of the latest successful sync.
func (s *ProfileStore) SetLastSync(_ context.Context, id, syncedAtMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.LastSyncAt = syncedAtMs
	s.rows[id] = p
	return nil
}

// List returns every registered profile, oldest first.
func (s *ProfileStore) List(_ context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Profile, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ domain.ProfileStore = (*ProfileStore)(nil)
