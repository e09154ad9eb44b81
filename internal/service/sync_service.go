package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/ledger"
	"github.com/ksenkin/tradediary/internal/notify"
)

// Sync window bounds, in days of lookback.
const (
	minSyncDays     = 1
	maxSyncDays     = 30
	defaultSyncDays = 7
)

const (
	// syncLockTTL bounds how long a crashed sync can block an owner.
	syncLockTTL = 5 * time.Minute

	// cursorOverlap is re-fetched behind the stored cursor on every sync.
	// Idempotent ingestion makes the overlap free, and it covers fills the
	// exchange reported late.
	cursorOverlap = time.Hour
)

// FillFetcher pulls raw fills from an exchange for a time window.
type FillFetcher interface {
	FetchFills(ctx context.Context, from, to int64) ([]domain.RawFill, error)
}

// FetcherFactory builds the exchange client for a profile's credentials.
type FetcherFactory func(p domain.Profile, creds Credentials) (FillFetcher, error)

// SyncService drives one ingestion batch end to end: distributed lock,
// window resolution, exchange fetch, normalization, ledger ingestion,
// cursor advance, archival, and the audit trail.
type SyncService struct {
	profiles   *ProfileService
	store      domain.ProfileStore
	runs       domain.SyncRunStore
	ledger     *ledger.Ledger
	locks      domain.LockManager
	cursors    domain.SyncCursorCache
	archiver   domain.FillArchiver
	notifier   *notify.Notifier
	newFetcher FetcherFactory
	logger     *slog.Logger
}

// NewSyncService creates a SyncService with all required dependencies.
// archiver may be nil when no blob storage is configured.
func NewSyncService(
	profiles *ProfileService,
	store domain.ProfileStore,
	runs domain.SyncRunStore,
	ledger *ledger.Ledger,
	locks domain.LockManager,
	cursors domain.SyncCursorCache,
	archiver domain.FillArchiver,
	notifier *notify.Notifier,
	newFetcher FetcherFactory,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		profiles:   profiles,
		store:      store,
		runs:       runs,
		ledger:     ledger,
		locks:      locks,
		cursors:    cursors,
		archiver:   archiver,
		notifier:   notifier,
		newFetcher: newFetcher,
		logger:     logger,
	}
}

// SyncNow runs one ingestion batch for the profile, looking back the given
// number of days (clamped to [1, 30]; zero selects the default). It returns
// ErrLockHeld when another instance is already syncing this owner.
func (s *SyncService) SyncNow(ctx context.Context, profile domain.Profile, days int) (domain.SyncRun, error) {
	days = clampSyncDays(days)

	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("sync:%d", profile.ID), syncLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.SyncRun{}, fmt.Errorf("sync_service: owner %d: %w", profile.ID, domain.ErrLockHeld)
		}
		return domain.SyncRun{}, fmt.Errorf("sync_service: acquire lock: %w", err)
	}
	defer unlock()

	now := time.Now().UnixMilli()
	from := now - int64(days)*24*60*60*1000

	// A stored cursor narrows the window to roughly what happened since the
	// last successful sync, minus an overlap for late-reported fills.
	if cur, curErr := s.cursors.Get(ctx, profile.ID, profile.Exchange); curErr != nil {
		s.logger.WarnContext(ctx, "sync_service: cursor read failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", curErr.Error()),
		)
	} else if resumeFrom := cur - cursorOverlap.Milliseconds(); cur > 0 && resumeFrom > from {
		from = resumeFrom
	}

	run := domain.SyncRun{
		ID:         uuid.NewString(),
		OwnerID:    profile.ID,
		Exchange:   profile.Exchange,
		WindowFrom: from,
		WindowTo:   now,
		StartedAt:  now,
	}

	fills, execs, err := s.fetch(ctx, profile, from, now)
	if err != nil {
		return s.finish(ctx, run, nil, err)
	}

	summary, err := s.ledger.Ingest(ctx, profile.ID, sourceFor(profile.Exchange), execs)
	run.Summary = summary
	if err != nil {
		return s.finish(ctx, run, fills, err)
	}

	if err := s.cursors.Set(ctx, profile.ID, profile.Exchange, now); err != nil {
		s.logger.WarnContext(ctx, "sync_service: cursor write failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.store.SetLastSync(ctx, profile.ID, now); err != nil {
		s.logger.WarnContext(ctx, "sync_service: set last sync failed",
			slog.Int64("owner_id", profile.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.finish(ctx, run, fills, nil)
}

// SyncAll syncs every registered profile. Owners locked by another instance
// are skipped, not failed; the first hard error is returned after all
// profiles were attempted.
func (s *SyncService) SyncAll(ctx context.Context, days int) error {
	profiles, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("sync_service: list profiles: %w", err)
	}

	var firstErr error
	for _, p := range profiles {
		if _, err := s.SyncNow(ctx, p, days); err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.DebugContext(ctx, "sync_service: owner locked, skipping",
					slog.Int64("owner_id", p.ID),
				)
				continue
			}
			s.logger.ErrorContext(ctx, "sync_service: sync failed",
				slog.Int64("owner_id", p.ID),
				slog.String("exchange", p.Exchange),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// IngestStream feeds fills pushed by a live execution stream through the
// same normalize-and-ingest path as a REST sync. The ledger's per-owner
// mutex serializes against any concurrent scheduled sync in this process.
func (s *SyncService) IngestStream(ctx context.Context, profile domain.Profile, fills []domain.RawFill) (domain.SyncSummary, error) {
	execs := ledger.Normalize(fills)
	summary, err := s.ledger.Ingest(ctx, profile.ID, sourceFor(profile.Exchange), execs)
	if err != nil {
		return summary, fmt.Errorf("sync_service: stream ingest: %w", err)
	}

	s.logger.InfoContext(ctx, "sync_service: stream batch ingested",
		slog.Int64("owner_id", profile.ID),
		slog.Int("executions", summary.ExecutionsReceived),
		slog.Int("buys_created", summary.BuysCreated),
		slog.Int("closed", summary.SellMatchesClosed),
	)
	return summary, nil
}

// RecentRuns returns the owner's newest sync audit records.
func (s *SyncService) RecentRuns(ctx context.Context, ownerID int64, limit int) ([]domain.SyncRun, error) {
	runs, err := s.runs.ListRecent(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("sync_service: recent runs: %w", err)
	}
	return runs, nil
}

// fetch builds the exchange client and pulls the window's fills.
func (s *SyncService) fetch(ctx context.Context, profile domain.Profile, from, to int64) ([]domain.RawFill, []domain.Execution, error) {
	creds, err := s.profiles.Credentials(profile)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := s.newFetcher(profile, creds)
	if err != nil {
		return nil, nil, fmt.Errorf("sync_service: build fetcher: %w", err)
	}

	fills, err := fetcher.FetchFills(ctx, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("sync_service: fetch fills: %w", err)
	}

	return fills, ledger.Normalize(fills), nil
}

// finish completes a run: archives the raw fills, records the audit row,
// and notifies. Archival and bookkeeping are best-effort; the run's own
// error, if any, is what the caller sees.
func (s *SyncService) finish(ctx context.Context, run domain.SyncRun, fills []domain.RawFill, runErr error) (domain.SyncRun, error) {
	if runErr != nil {
		run.Error = runErr.Error()
	}
	run.FinishedAt = time.Now().UnixMilli()

	if runErr == nil && s.archiver != nil && len(fills) > 0 {
		if _, err := s.archiver.ArchiveFills(ctx, run, fills); err != nil {
			s.logger.WarnContext(ctx, "sync_service: archive failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.runs.Insert(ctx, run); err != nil {
		s.logger.ErrorContext(ctx, "sync_service: record run failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}

	if runErr != nil {
		s.notifier.SyncFailed(ctx, run.OwnerID, run.Exchange, runErr)
		return run, runErr
	}

	s.logger.InfoContext(ctx, "sync_service: sync completed",
		slog.String("run_id", run.ID),
		slog.Int64("owner_id", run.OwnerID),
		slog.String("exchange", run.Exchange),
		slog.Int("executions", run.Summary.ExecutionsReceived),
		slog.Int("buys_created", run.Summary.BuysCreated),
		slog.Int("closed", run.Summary.SellMatchesClosed),
		slog.Float64("unmatched_qty", run.Summary.UnmatchedSellQuantity),
	)
	s.notifier.SyncCompleted(ctx, run.OwnerID, run.Exchange, run.Summary)

	return run, nil
}

func clampSyncDays(days int) int {
	if days == 0 {
		return defaultSyncDays
	}
	if days < minSyncDays {
		return minSyncDays
	}
	if days > maxSyncDays {
		return maxSyncDays
	}
	return days
}

func sourceFor(exchange string) string {
	switch exchange {
	case domain.ExchangeOKX:
		return domain.SourceOKX
	default:
		return domain.SourceBybit
	}
}
