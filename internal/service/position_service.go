package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/ledger"
	"github.com/ksenkin/tradediary/internal/notify"
)

// List pagination bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// PositionService exposes diary queries and manual closes. All position
// writes go through the ledger; this service never mutates position rows
// itself.
type PositionService struct {
	positions domain.PositionStore
	ledger    *ledger.Ledger
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewPositionService creates a PositionService with all required dependencies.
func NewPositionService(
	positions domain.PositionStore,
	ledger *ledger.Ledger,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions: positions,
		ledger:    ledger,
		notifier:  notifier,
		logger:    logger,
	}
}

// List returns the owner's positions newest first. status filters by
// "open" or "closed"; empty means all.
func (s *PositionService) List(ctx context.Context, ownerID int64, status string, limit, offset int) ([]domain.Position, error) {
	st, err := parseStatus(status)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	positions, err := s.positions.List(ctx, ownerID, st, domain.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("position_service: list: %w", err)
	}
	return positions, nil
}

// Get returns one position scoped to its owner.
func (s *PositionService) Get(ctx context.Context, ownerID, id int64) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, ownerID, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get %d: %w", id, err)
	}
	return pos, nil
}

// Close closes one open position at a user-supplied exit price, bypassing
// FIFO matching. exitTimeMs of zero means now; commission is the total exit
// fee for the close.
func (s *PositionService) Close(ctx context.Context, ownerID, positionID int64, exitPrice float64, exitTimeMs int64, commission float64) (domain.Position, error) {
	pos, err := s.ledger.CloseManually(ctx, ownerID, positionID, exitPrice, exitTimeMs, commission)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: close %d: %w", positionID, err)
	}

	s.logger.InfoContext(ctx, "position_service: position closed manually",
		slog.Int64("owner_id", ownerID),
		slog.Int64("position_id", pos.ID),
		slog.String("symbol", pos.Symbol),
	)
	s.notifier.PositionClosed(ctx, pos)

	return pos, nil
}

// Stats aggregates the owner's closed-position performance.
func (s *PositionService) Stats(ctx context.Context, ownerID int64) (domain.Stats, error) {
	stats, err := s.positions.Stats(ctx, ownerID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("position_service: stats: %w", err)
	}
	return stats, nil
}

func parseStatus(status string) (domain.PositionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
		return "", nil
	case "open":
		return domain.PositionStatusOpen, nil
	case "closed":
		return domain.PositionStatusClosed, nil
	default:
		return "", fmt.Errorf("position_service: status %q: %w", status, domain.ErrInvalidInput)
	}
}
