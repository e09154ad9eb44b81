package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ksenkin/tradediary/internal/crypto"
	"github.com/ksenkin/tradediary/internal/domain"
)

// Recv window bounds for Bybit signed requests, in milliseconds.
const (
	minRecvWindow     = 1000
	maxRecvWindow     = 15000
	defaultRecvWindow = 5000
)

// RegisterInput carries the credentials submitted at registration.
type RegisterInput struct {
	Exchange   string
	APIKey     string
	APISecret  string
	Passphrase string // OKX only
	BaseURL    string
	RecvWindow int
}

// Credentials is a profile's decrypted API secret material. It exists only
// in memory, for request signing.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

/// ProfileService manages owner profiles: registration, token authentication,
// and credential sealing.
type ProfileService struct {
	profiles domain.ProfileStore
	secrets  *crypto.SecretBox
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService with all required dependencies.
func NewProfileService(profiles domain.ProfileStore, secrets *crypto.SecretBox, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		secrets:  secrets,
		logger:   logger,
	}
}

// Register creates a profile for the given exchange credentials, or updates
// the stored secret material when the (exchange, api key) pair is already
// registered. Re-registering returns the existing profile with its original
// bearer token, so a lost client config can be recovered from the API key.
func (s *ProfileService) Register(ctx context.Context, in RegisterInput) (domain.Profile, error) {
	if in.Exchange != domain.ExchangeBybit && in.Exchange != domain.ExchangeOKX {
		return domain.Profile{}, fmt.Errorf("profile_service: exchange %q: %w", in.Exchange, domain.ErrInvalidInput)
	}
	if in.APIKey == "" || in.APISecret == "" {
		return domain.Profile{}, fmt.Errorf("profile_service: api key and secret are required: %w", domain.ErrInvalidInput)
	}
	if in.Exchange == domain.ExchangeOKX && in.Passphrase == "" {
		return domain.Profile{}, fmt.Errorf("profile_service: okx requires a passphrase: %w", domain.ErrInvalidInput)
	}

	sealedSecret, err := s.secrets.Seal(in.APISecret)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: seal secret: %w", err)
	}
	sealedPassphrase := ""
	if in.Passphrase != "" {
		if sealedPassphrase, err = s.secrets.Seal(in.Passphrase); err != nil {
			return domain.Profile{}, fmt.Errorf("profile_service: seal passphrase: %w", err)
		}
	}

	recvWindow := clampRecvWindow(in.RecvWindow)

	existing, err := s.profiles.GetByAPIKey(ctx, in.Exchange, in.APIKey)
	switch {
	case err == nil:
		existing.APISecret = sealedSecret
		existing.Passphrase = sealedPassphrase
		existing.BaseURL = in.BaseURL
		existing.RecvWindow = recvWindow
		if err := s.profiles.Update(ctx, existing); err != nil {
			return domain.Profile{}, fmt.Errorf("profile_service: update profile: %w", err)
		}
		s.logger.InfoContext(ctx, "profile_service: credentials rotated",
			slog.Int64("profile_id", existing.ID),
			slog.String("exchange", existing.Exchange),
		)
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Profile{}, fmt.Errorf("profile_service: lookup profile: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: generate token: %w", err)
	}

	profile := domain.Profile{
		PublicID:   token,
		Exchange:   in.Exchange,
		APIKey:     in.APIKey,
		APISecret:  sealedSecret,
		Passphrase: sealedPassphrase,
		BaseURL:    in.BaseURL,
		RecvWindow: recvWindow,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: create profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile_service: profile registered",
		slog.Int64("profile_id", profile.ID),
		slog.String("exchange", profile.Exchange),
	)
	return profile, nil
}

// Authenticate resolves a bearer token to its profile. Unknown tokens come
// back as ErrUnauthorized, never ErrNotFound, so handlers cannot leak which
// tokens exist.
func (s *ProfileService) Authenticate(ctx context.Context, token string) (domain.Profile, error) {
	if token == "" {
		return domain.Profile{}, fmt.Errorf("profile_service: empty token: %w", domain.ErrUnauthorized)
	}
	profile, err := s.profiles.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Profile{}, fmt.Errorf("profile_service: unknown token: %w", domain.ErrUnauthorized)
		}
		return domain.Profile{}, fmt.Errorf("profile_service: authenticate: %w", err)
	}
	return profile, nil
}

// Credentials opens the profile's sealed secret material for signing.
func (s *ProfileService) Credentials(p domain.Profile) (Credentials, error) {
	secret, err := s.secrets.Open(p.APISecret)
	if err != nil {
		return Credentials{}, fmt.Errorf("profile_service: open secret: %w", err)
	}

	passphrase := ""
	if p.Passphrase != "" {
		if passphrase, err = s.secrets.Open(p.Passphrase); err != nil {
			return Credentials{}, fmt.Errorf("profile_service: open passphrase: %w", err)
		}
	}

	return Credentials{
		APIKey:     p.APIKey,
		APISecret:  secret,
		Passphrase: passphrase,
	}, nil
}

// clampRecvWindow forces the recv window into the exchange's accepted
// bounds; zero selects the default.
func clampRecvWindow(ms int) int {
	if ms == 0 {
		return defaultRecvWindow
	}
	if ms < minRecvWindow {
		return minRecvWindow
	}
	if ms > maxRecvWindow {
		return maxRecvWindow
	}
	return ms
}

// newToken returns 48 random hex characters for use as a bearer token.
func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
