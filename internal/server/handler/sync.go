package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/service"
)

// SyncHandler serves on-demand sync triggers and the sync audit trail.
type SyncHandler struct {
	sync   *service.SyncService
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler with the given service and logger.
func NewSyncHandler(sync *service.SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		logger: logger,
	}
}

// syncRunResponse is the wire shape of one sync audit record.
type syncRunResponse struct {
	ID         string             `json:"id"`
	Exchange   string             `json:"exchange"`
	WindowFrom int64              `json:"window_from"`
	WindowTo   int64              `json:"window_to"`
	Summary    domain.SyncSummary `json:"summary"`
	Error      string             `json:"error,omitempty"`
	StartedAt  int64              `json:"started_at"`
	FinishedAt int64              `json:"finished_at"`
}

func toSyncRunResponse(run domain.SyncRun) syncRunResponse {
	return syncRunResponse{
		ID:         run.ID,
		Exchange:   run.Exchange,
		WindowFrom: run.WindowFrom,
		WindowTo:   run.WindowTo,
		Summary:    run.Summary,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

// triggerSyncRequest is the optional sync payload; days may also arrive as
// a query parameter.
type triggerSyncRequest struct {
	Days int `json:"days,omitempty"`
}

// TriggerSync runs one sync for the authenticated profile and returns the
// run's summary. days is clamped to [1, 30]; zero selects the default.
// POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", 0)
	var req triggerSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Days != 0 {
		days = req.Days
	}

	run, err := h.sync.SyncNow(r.Context(), profile, days)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: sync failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSyncRunResponse(run))
}

// listRunsResponse wraps the sync history response.
type listRunsResponse struct {
	Runs []syncRunResponse `json:"runs"`
}

// ListRuns returns the owner's newest sync audit records.
// GET /api/sync/runs?limit=N
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	runs, err := h.sync.RecentRuns(r.Context(), profile.ID, queryInt(r, "limit", 0))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list runs failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	out := make([]syncRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toSyncRunResponse(run))
	}

	writeJSON(w, http.StatusOK, listRunsResponse{Runs: out})
}
