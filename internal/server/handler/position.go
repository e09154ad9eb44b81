package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/service"
)

// PositionHandler serves the diary's trade endpoints.
type PositionHandler struct {
	positions *service.PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions *service.PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// positionResponse is the wire shape of one position.
type positionResponse struct {
	ID                int64    `json:"id"`
	Symbol            string   `json:"symbol"`
	Status            string   `json:"status"`
	Source            string   `json:"source"`
	Quantity          float64  `json:"quantity"`
	RemainingQuantity float64  `json:"remaining_quantity"`
	EntryPrice        float64  `json:"entry_price"`
	EntryTime         int64    `json:"entry_time"`
	ExitPrice         *float64 `json:"exit_price,omitempty"`
	ExitTime          *int64   `json:"exit_time,omitempty"`
	InvestedAmount    float64  `json:"invested_amount"`
	ReceivedAmount    *float64 `json:"received_amount,omitempty"`
	CommissionAmount  float64  `json:"commission_amount"`
	ProfitLoss        *float64 `json:"profit_loss,omitempty"`
	ProfitLossPercent *float64 `json:"profit_loss_percent,omitempty"`
	DurationMinutes   *int64   `json:"duration_minutes,omitempty"`
	BuyExecID         string   `json:"buy_exec_id"`
	SellExecID        *string  `json:"sell_exec_id,omitempty"`
	CreatedAt         int64    `json:"created_at"`
}

func toPositionResponse(p domain.Position) positionResponse {
	return positionResponse{
		ID:                p.ID,
		Symbol:            p.Symbol,
		Status:            string(p.Status),
		Source:            p.Source,
		Quantity:          p.Quantity,
		RemainingQuantity: p.RemainingQuantity,
		EntryPrice:        p.EntryPrice,
		EntryTime:         p.EntryTime,
		ExitPrice:         p.ExitPrice,
		ExitTime:          p.ExitTime,
		InvestedAmount:    p.InvestedAmount,
		ReceivedAmount:    p.ReceivedAmount,
		CommissionAmount:  p.CommissionAmount,
		ProfitLoss:        p.ProfitLoss,
		ProfitLossPercent: p.ProfitLossPercent,
		DurationMinutes:   p.DurationMinutes,
		BuyExecID:         p.BuyExecID,
		SellExecID:        p.SellExecID,
		CreatedAt:         p.CreatedAt,
	}
}

func toPositionResponses(positions []domain.Position) []positionResponse {
	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionResponse(p))
	}
	return out
}

// listTradesResponse wraps the trade list response.
type listTradesResponse struct {
	Trades []positionResponse `json:"trades"`
}

// ListTrades returns the owner's positions, newest entry first.
// GET /api/trades?status=open|closed&limit=N&offset=N
func (h *PositionHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	positions, err := h.positions.List(r.Context(),
		profile.ID,
		r.URL.Query().Get("status"),
		queryInt(r, "limit", 0),
		queryInt(r, "offset", 0),
	)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: toPositionResponses(positions)})
}

// GetTrade returns one position by ID.
// GET /api/trades/{id}
func (h *PositionHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	pos, err := h.positions.Get(r.Context(), profile.ID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(pos))
}

// closeTradeRequest is the manual-close payload. exit_time of zero means
// now; commission is the total exit fee for the close.
type closeTradeRequest struct {
	ExitPrice  float64 `json:"exit_price"`
	ExitTime   int64   `json:"exit_time,omitempty"`
	Commission float64 `json:"commission,omitempty"`
}

// CloseTrade closes one open position at a user-supplied exit price,
// bypassing the FIFO queue.
// PUT /api/trades/{id}/close
func (h *PositionHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	var req closeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pos, err := h.positions.Close(r.Context(), profile.ID, id, req.ExitPrice, req.ExitTime, req.Commission)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: close trade failed",
			slog.Int64("owner_id", profile.ID),
			slog.Int64("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(pos))
}
