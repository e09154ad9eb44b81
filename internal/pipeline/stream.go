package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/platform/bybit"
	"github.com/ksenkin/tradediary/internal/service"
)

// streamIngestTimeout bounds the ledger write for one pushed batch.
const streamIngestTimeout = 30 * time.Second

// StreamManager opens one private execution stream per Bybit profile and
// feeds every push through the sync service's ingestion path. OKX profiles
// are covered by the scheduled REST sync only.
type StreamManager struct {
	profileSvc *service.ProfileService
	store      domain.ProfileStore
	syncSvc    *service.SyncService
	wsURL      string
	logger     *slog.Logger
}

// NewStreamManager creates a StreamManager. wsURL may be empty to use the
// production Bybit endpoint.
func NewStreamManager(
	profileSvc *service.ProfileService,
	store domain.ProfileStore,
	syncSvc *service.SyncService,
	wsURL string,
	logger *slog.Logger,
) *StreamManager {
	return &StreamManager{
		profileSvc: profileSvc,
		store:      store,
		syncSvc:    syncSvc,
		wsURL:      wsURL,
		logger:     logger,
	}
}

// Run connects a stream for every Bybit profile registered at startup and
// blocks until ctx is cancelled. Profiles registered later are picked up by
// the scheduled sync until the next restart.
func (m *StreamManager) Run(ctx context.Context) error {
	profiles, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: list profiles: %w", err)
	}

	var clients []*bybit.WSClient
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	for _, p := range profiles {
		if p.Exchange != domain.ExchangeBybit {
			continue
		}

		client, err := m.connect(ctx, p)
		if err != nil {
			m.logger.Error("pipeline: stream connect failed",
				slog.Int64("owner_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		m.logger.Info("pipeline: no bybit profiles to stream")
	}

	<-ctx.Done()
	return ctx.Err()
}

// connect opens the private stream for one profile and wires its execution
// pushes into the ledger.
func (m *StreamManager) connect(ctx context.Context, p domain.Profile) (*bybit.WSClient, error) {
	creds, err := m.profileSvc.Credentials(p)
	if err != nil {
		return nil, err
	}

	client := bybit.NewWSClient(m.wsURL, creds.APIKey, creds.APISecret)
	client.OnExecution(func(fills []domain.RawFill) {
		ingestCtx, cancel := context.WithTimeout(context.Background(), streamIngestTimeout)
		defer cancel()

		if _, err := m.syncSvc.IngestStream(ingestCtx, p, fills); err != nil {
			m.logger.Error("pipeline: stream ingest failed",
				slog.Int64("owner_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	})

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	m.logger.Info("pipeline: execution stream connected",
		slog.Int64("owner_id", p.ID),
	)
	return client, nil
}
