package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ksenkin/tradediary/internal/pipeline"
	"github.com/ksenkin/tradediary/internal/server"
	"github.com/ksenkin/tradediary/internal/server/handler"
)

// shutdownTimeout bounds how long in-flight HTTP requests may run after the
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the HTTP API only. Syncs happen when a client triggers
// them through the API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// SyncMode runs the scheduled sync loop without the HTTP API.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	return a.newOrchestrator(deps, false).Run(ctx)
}

// StreamMode runs the live execution streams only. Fills arrive as the
// exchange pushes them; no scheduled backfill runs.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting stream mode")

	streams := pipeline.NewStreamManager(
		deps.ProfileService,
		deps.ProfileStore,
		deps.SyncService,
		a.cfg.Sync.BybitWSURL,
		a.logger,
	)
	return streams.Run(ctx)
}

// FullMode runs everything: the HTTP API, the scheduled sync loop, and the
// live streams when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if a.cfg.Sync.Enabled {
		orch := a.newOrchestrator(deps, a.cfg.Sync.Stream)
		g.Go(func() error {
			return orch.Run(ctx)
		})
	}

	return g.Wait()
}

// newOrchestrator builds the background pipeline, optionally with the live
// stream manager attached.
func (a *App) newOrchestrator(deps *Dependencies, withStreams bool) *pipeline.Orchestrator {
	var streams *pipeline.StreamManager
	if withStreams {
		streams = pipeline.NewStreamManager(
			deps.ProfileService,
			deps.ProfileStore,
			deps.SyncService,
			a.cfg.Sync.BybitWSURL,
			a.logger,
		)
	}
	return pipeline.NewOrchestrator(
		deps.SyncService,
		streams,
		a.cfg.Sync.Interval.Duration,
		a.cfg.Sync.Days,
		a.logger,
	)
}

// startHTTPServer registers the API routes and runs the server under the
// errgroup, shutting it down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Auth:      handler.NewAuthHandler(deps.ProfileService, a.logger),
		Positions: handler.NewPositionHandler(deps.PositionService, a.logger),
		Stats:     handler.NewStatsHandler(deps.PositionService, a.logger),
		Sync:      handler.NewSyncHandler(deps.SyncService, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, deps.ProfileService, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
