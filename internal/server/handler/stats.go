package handler

import (
	"log/slog"
	"net/http"

	"github.com/ksenkin/tradediary/internal/service"
)

// StatsHandler serves the aggregate performance endpoint.
type StatsHandler struct {
	positions *service.PositionService
	logger    *slog.Logger
}

// NewStatsHandler creates a StatsHandler with the given service and logger.
func NewStatsHandler(positions *service.PositionService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		positions: positions,
		logger:    logger,
	}
}

// GetStats returns the owner's closed-position performance aggregates.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	stats, err := h.positions.Stats(r.Context(), profile.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stats failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
