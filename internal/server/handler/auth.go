package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/service"
)

// AuthHandler serves profile registration and introspection.
type AuthHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler with the given service and logger.
func NewAuthHandler(profiles *service.ProfileService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// registerRequest is the registration payload. Secrets travel only in this
// request; responses echo a masked key.
type registerRequest struct {
	Exchange   string `json:"exchange"`
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	RecvWindow int    `json:"recv_window,omitempty"`
}

type profileResponse struct {
	Token      string `json:"token"`
	Exchange   string `json:"exchange"`
	APIKey     string `json:"api_key"`
	RecvWindow int    `json:"recv_window"`
	LastSyncAt int64  `json:"last_sync_at,omitempty"`
}

func toProfileResponse(p domain.Profile) profileResponse {
	return profileResponse{
		Token:      p.PublicID,
		Exchange:   p.Exchange,
		APIKey:     p.MaskedAPIKey(),
		RecvWindow: p.RecvWindow,
		LastSyncAt: p.LastSyncAt,
	}
}

// Register creates or updates the profile for an exchange API key and
// returns the bearer token for subsequent diary calls.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile, err := h.profiles.Register(r.Context(), service.RegisterInput{
		Exchange:   req.Exchange,
		APIKey:     req.APIKey,
		APISecret:  req.APISecret,
		Passphrase: req.Passphrase,
		BaseURL:    req.BaseURL,
		RecvWindow: req.RecvWindow,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: register failed",
			slog.String("exchange", req.Exchange),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

// Me echoes the authenticated profile.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, ok := requireProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}
