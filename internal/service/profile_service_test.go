package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksenkin/tradediary/internal/crypto"
	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProfileService(t *testing.T) (*ProfileService, *memory.ProfileStore) {
	t.Helper()
	box, err := crypto.NewSecretBox("test-password")
	require.NoError(t, err)
	store := memory.NewProfileStore()
	return NewProfileService(store, box, testLogger()), store
}

func TestRegisterCreatesProfile(t *testing.T) {
	t.Parallel()
	svc, _ := newProfileService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterInput{
		Exchange:  domain.ExchangeBybit,
		APIKey:    "key-1",
		APISecret: "secret-1",
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Len(t, p.PublicID, 48)
	assert.Equal(t, defaultRecvWindow, p.RecvWindow)
	// Secret is sealed, never stored in the clear.
	assert.NotEqual(t, "secret-1", p.APISecret)
	assert.NotContains(t, p.APISecret, "secret-1")

	creds, err := svc.Credentials(p)
	require.NoError(t, err)
	assert.Equal(t, "secret-1", creds.APISecret)
}

func TestRegisterUpsertsOnAPIKey(t *testing.T) {
	t.Parallel()
	svc, _ := newProfileService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{
		Exchange: domain.ExchangeBybit, APIKey: "key-1", APISecret: "old-secret",
	})
	require.NoError(t, err)

	second, err := svc.Register(ctx, RegisterInput{
		Exchange: domain.ExchangeBybit, APIKey: "key-1", APISecret: "new-secret", RecvWindow: 7000,
	})
	require.NoError(t, err)

	// Same profile, same bearer token, rotated secret.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PublicID, second.PublicID)
	assert.Equal(t, 7000, second.RecvWindow)

	creds, err := svc.Credentials(second)
	require.NoError(t, err)
	assert.Equal(t, "new-secret", creds.APISecret)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	svc, _ := newProfileService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "unknown_exchange", in: RegisterInput{Exchange: "kraken", APIKey: "k", APISecret: "s"}},
		{name: "missing_key", in: RegisterInput{Exchange: domain.ExchangeBybit, APISecret: "s"}},
		{name: "missing_secret", in: RegisterInput{Exchange: domain.ExchangeBybit, APIKey: "k"}},
		{name: "okx_without_passphrase", in: RegisterInput{Exchange: domain.ExchangeOKX, APIKey: "k", APISecret: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestRegisterClampsRecvWindow(t *testing.T) {
	t.Parallel()
	svc, _ := newProfileService(t)
	ctx := context.Background()

	low, err := svc.Register(ctx, RegisterInput{
		Exchange: domain.ExchangeBybit, APIKey: "low", APISecret: "s", RecvWindow: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, minRecvWindow, low.RecvWindow)

	high, err := svc.Register(ctx, RegisterInput{
		Exchange: domain.ExchangeBybit, APIKey: "high", APISecret: "s", RecvWindow: 99999,
	})
	require.NoError(t, err)
	assert.Equal(t, maxRecvWindow, high.RecvWindow)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	svc, _ := newProfileService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterInput{
		Exchange: domain.ExchangeBybit, APIKey: "key-1", APISecret: "s",
	})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, p.PublicID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Authenticate(ctx, "no-such-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCredentialsOpensOKXPassphrase(t *testing.T) {
	t.Parallel()
	svc, _ := newProfileService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterInput{
		Exchange: domain.ExchangeOKX, APIKey: "k", APISecret: "s", Passphrase: "phrase",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "phrase", p.Passphrase)

	creds, err := svc.Credentials(p)
	require.NoError(t, err)
	assert.Equal(t, "phrase", creds.Passphrase)
}
