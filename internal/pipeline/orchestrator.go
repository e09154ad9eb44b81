package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ksenkin/tradediary/internal/service"
)

// Orchestrator manages the background goroutines: the scheduled sync loop
// that polls every exchange for new fills, and the live execution streams.
type Orchestrator struct {
	syncSvc      *service.SyncService
	streams      *StreamManager
	syncInterval time.Duration
	syncDays     int
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator. streams may be nil when live
// streaming is disabled.
func NewOrchestrator(
	syncSvc *service.SyncService,
	streams *StreamManager,
	syncInterval time.Duration,
	syncDays int,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		syncSvc:      syncSvc,
		streams:      streams,
		syncInterval: syncInterval,
		syncDays:     syncDays,
		logger:       logger,
	}
}

// Run starts the background loops as concurrent goroutines using an
// errgroup. Each goroutine respects ctx cancellation. If any goroutine
// returns a non-context error, the errgroup cancels the shared context and
// Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("sync_interval", o.syncInterval),
		slog.Int("sync_days", o.syncDays),
		slog.Bool("streams", o.streams != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting scheduled sync loop")
		err := o.runSyncLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("sync loop: %w", err)
	})

	if o.streams != nil {
		g.Go(func() error {
			o.logger.Info("starting execution streams")
			err := o.streams.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("execution streams: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// runSyncLoop syncs every profile immediately on start, then on each tick.
// Per-profile failures are logged inside SyncAll and never stop the loop.
func (o *Orchestrator) runSyncLoop(ctx context.Context) error {
	if err := o.syncSvc.SyncAll(ctx, o.syncDays); err != nil {
		o.logger.Error("scheduled sync failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("scheduled sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := o.syncSvc.SyncAll(ctx, o.syncDays); err != nil {
				o.logger.Error("scheduled sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
