// Package memory implements domain stores in process memory. It backs the
// ledger and service tests and is handy for local experimentation without a
// database; production wiring uses the postgres package.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ksenkin/tradediary/internal/domain"
)

// PositionStore is an in-memory domain.PositionStore.
type PositionStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Position
}

// NewPositionStore creates an empty in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		nextID: 1,
		rows:   make(map[int64]domain.Position),
	}
}

// Create inserts the position and assigns its ID.
func (s *PositionStore) Create(_ context.Context, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID
	s.nextID++
	s.rows[p.ID] = clone(*p)
	return nil
}

// Update replaces an existing position.
func (s *PositionStore) Update(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[p.ID]
	if !ok || old.OwnerID != p.OwnerID {
		return domain.ErrNotFound
	}
	s.rows[p.ID] = clone(p)
	return nil
}

// GetByID retrieves one position scoped to its owner.
func (s *PositionStore) GetByID(_ context.Context, ownerID, id int64) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[id]
	if !ok || p.OwnerID != ownerID {
		return domain.Position{}, domain.ErrNotFound
	}
	return clone(p), nil
}

// OldestOpen returns the FIFO head of the open queue for (owner, symbol).
func (s *PositionStore) OldestOpen(_ context.Context, ownerID int64, symbol string) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Position
	for id := range s.rows {
		p := s.rows[id]
		if p.OwnerID != ownerID || p.Symbol != symbol || p.Status != domain.PositionStatusOpen || p.RemainingQuantity <= 0 {
			continue
		}
		if best == nil || p.EntryTime < best.EntryTime || (p.EntryTime == best.EntryTime && p.ID < best.ID) {
			cp := p
			best = &cp
		}
	}
	if best == nil {
		return domain.Position{}, domain.ErrNotFound
	}
	return clone(*best), nil
}

// HasBuyExec reports whether the owner already has a position for this buy
// execution ID.
func (s *PositionStore) HasBuyExec(_ context.Context, ownerID int64, buyExecID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.rows {
		if p.OwnerID == ownerID && p.BuyExecID == buyExecID {
			return true, nil
		}
	}
	return false, nil
}

// ListOpen returns every open position for the owner.
func (s *PositionStore) ListOpen(_ context.Context, ownerID int64) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Position
	for _, p := range s.rows {
		if p.OwnerID == ownerID && p.Status == domain.PositionStatusOpen {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// List returns positions newest-entry first, optionally filtered by status.
func (s *PositionStore) List(_ context.Context, ownerID int64, status domain.PositionStatus, opts domain.ListOpts) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Position
	for _, p := range s.rows {
		if p.OwnerID != ownerID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime != out[j].EntryTime {
			return out[i].EntryTime > out[j].EntryTime
		}
		return out[i].ID > out[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Stats aggregates closed-position performance the same way the postgres
// store does in SQL.
func (s *PositionStore) Stats(_ context.Context, ownerID int64) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st domain.Stats
	var plSum, plPctSum, durSum, winSum, lossSum float64
	var losses int64

	for _, p := range s.rows {
		if p.OwnerID != ownerID {
			continue
		}
		st.TotalTrades++
		if p.Status == domain.PositionStatusOpen {
			st.OpenTrades++
			continue
		}
		st.ClosedTrades++
		if p.ProfitLoss != nil {
			plSum += *p.ProfitLoss
			if *p.ProfitLoss > 0 {
				st.Wins++
				winSum += *p.ProfitLoss
			} else if *p.ProfitLoss < 0 {
				losses++
				lossSum += *p.ProfitLoss
			}
		}
		if p.ProfitLossPercent != nil {
			plPctSum += *p.ProfitLossPercent
		}
		if p.DurationMinutes != nil {
			durSum += float64(*p.DurationMinutes)
		}
	}

	if st.ClosedTrades > 0 {
		st.TotalProfitLoss = plSum
		st.AvgProfitLoss = plSum / float64(st.ClosedTrades)
		st.AvgProfitLossPct = plPctSum / float64(st.ClosedTrades)
		st.AvgDurationMinutes = durSum / float64(st.ClosedTrades)
		st.WinRatePercent = float64(st.Wins) / float64(st.ClosedTrades) * 100
	}
	if st.Wins > 0 {
		st.AvgWin = winSum / float64(st.Wins)
	}
	if losses > 0 {
		st.AvgLoss = lossSum / float64(losses)
	}
	return st, nil
}

// clone deep-copies a position so callers never share pointer fields with
// the store's rows.
func clone(p domain.Position) domain.Position {
	cp := p
	if p.ExitPrice != nil {
		v := *p.ExitPrice
		cp.ExitPrice = &v
	}
	if p.ExitTime != nil {
		v := *p.ExitTime
		cp.ExitTime = &v
	}
	if p.ReceivedAmount != nil {
		v := *p.ReceivedAmount
		cp.ReceivedAmount = &v
	}
	if p.ProfitLoss != nil {
		v := *p.ProfitLoss
		cp.ProfitLoss = &v
	}
	if p.ProfitLossPercent != nil {
		v := *p.ProfitLossPercent
		cp.ProfitLossPercent = &v
	}
	if p.DurationMinutes != nil {
		v := *p.DurationMinutes
		cp.DurationMinutes = &v
	}
	if p.SellExecID != nil {
		v := *p.SellExecID
		cp.SellExecID = &v
	}
	return cp
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
