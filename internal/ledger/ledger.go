package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ksenkin/tradediary/internal/domain"
)

// Ledger owns all position lifecycle state for every owner. It consumes
// normalized executions in chronological order, opens positions from buys,
// matches sells against the oldest open positions first, and reconciles
// floating-point dust. Nothing else writes positions.
type Ledger struct {
	cfg       Config
	positions domain.PositionStore
	logger    *slog.Logger

	mu     sync.Mutex
	owners map[int64]*sync.Mutex
}

// New creates a Ledger over the given position store.
func New(positions domain.PositionStore, cfg Config, logger *slog.Logger) *Ledger {
	return &Ledger{
		cfg:       cfg.withDefaults(),
		positions: positions,
		logger:    logger.With(slog.String("component", "ledger")),
		owners:    make(map[int64]*sync.Mutex),
	}
}

// Config returns the ledger's precision/epsilon configuration.
func (l *Ledger) Config() Config {
	return l.cfg
}

// ownerMu returns the in-process mutex serializing batches for one owner.
// Cross-process serialization is the caller's concern (the sync service
// holds a distributed lock around each batch); this mutex guarantees that
// two batches in the same process can never interleave even without one.
func (l *Ledger) ownerMu(ownerID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.owners[ownerID]
	if !ok {
		mu = &sync.Mutex{}
		l.owners[ownerID] = mu
	}
	return mu
}

// Ingest processes one batch of normalized executions for an owner, in the
// order given. The order must be the normalizer's chronological order;
// processing out of order corrupts FIFO semantics. Positions matched from
// executions already processed stand even if a later execution fails;
// ingestion is at-least-once with idempotent retry, not transactional.
func (l *Ledger) Ingest(ctx context.Context, ownerID int64, source string, execs []domain.Execution) (domain.SyncSummary, error) {
	mu := l.ownerMu(ownerID)
	mu.Lock()
	defer mu.Unlock()

	summary := domain.SyncSummary{ExecutionsReceived: len(execs)}

	for _, exec := range execs {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("ledger: ingest cancelled: %w", err)
		}

		switch exec.Side {
		case domain.SideBuy:
			created, err := l.applyBuy(ctx, ownerID, source, exec)
			if err != nil {
				return summary, err
			}
			if created {
				summary.BuysCreated++
			}
		case domain.SideSell:
			closed, unmatched, err := l.applySell(ctx, ownerID, exec)
			if err != nil {
				return summary, err
			}
			summary.SellMatchesClosed += closed
			summary.UnmatchedSellQuantity += unmatched
			if unmatched > 0 {
				l.logger.InfoContext(ctx, "sell quantity had no tracked buy to match",
					slog.Int64("owner_id", ownerID),
					slog.String("symbol", exec.Symbol),
					slog.Float64("unmatched_qty", unmatched),
				)
			}
		}
	}

	dustClosed, err := l.sweepDust(ctx, ownerID)
	if err != nil {
		return summary, err
	}
	summary.DustClosed = dustClosed
	summary.UnmatchedSellQuantity = l.cfg.RoundQuantity(summary.UnmatchedSellQuantity)

	return summary, nil
}

// applyBuy opens a new position unless the buy execution was already
// ingested for this owner (re-syncs overlap their windows by design).
func (l *Ledger) applyBuy(ctx context.Context, ownerID int64, source string, exec domain.Execution) (bool, error) {
	exists, err := l.positions.HasBuyExec(ctx, ownerID, exec.ExecID)
	if err != nil {
		return false, fmt.Errorf("ledger: buy idempotency lookup %s: %w", exec.ExecID, err)
	}
	if exists {
		return false, nil
	}

	pos, err := domain.NewOpenPosition(ownerID, exec, l.cfg.RoundMoney(exec.Quantity*exec.Price), source, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("ledger: open position from %s: %w", exec.ExecID, err)
	}

	if err := l.positions.Create(ctx, &pos); err != nil {
		return false, fmt.Errorf("ledger: create position from %s: %w", exec.ExecID, err)
	}
	return true, nil
}

// applySell matches a sell execution against open positions FIFO: oldest
// entry time first, ties by smallest ID. It returns the number of closed
// slices and any quantity left unmatched after the open queue ran dry.
func (l *Ledger) applySell(ctx context.Context, ownerID int64, exec domain.Execution) (int, float64, error) {
	qtyToClose := exec.Quantity
	feePerUnit := exec.Fee / exec.Quantity

	closed := 0
	for qtyToClose > l.cfg.DustEpsilon {
		pos, err := l.positions.OldestOpen(ctx, ownerID, exec.Symbol)
		if errors.Is(err, domain.ErrNotFound) {
			// Inventory sold that was never tracked as a buy, e.g. a
			// balance predating the synced window. Reported, not erred.
			break
		}
		if err != nil {
			return closed, 0, fmt.Errorf("ledger: oldest open %s: %w", exec.Symbol, err)
		}

		matched := pos.RemainingQuantity
		if qtyToClose < matched {
			matched = qtyToClose
		}

		// Entry commission prorates against the position's current
		// commission/quantity (already reduced by prior splits); exit
		// commission prorates against the whole sell execution, since one
		// sell may close several positions.
		entryFeePerUnit := 0.0
		if pos.Quantity > 0 {
			entryFeePerUnit = pos.CommissionAmount / pos.Quantity
		}

		metrics := l.cfg.Close(CloseInput{
			Quantity:        matched,
			EntryPrice:      pos.EntryPrice,
			ExitPrice:       exec.Price,
			EntryCommission: entryFeePerUnit * matched,
			ExitCommission:  feePerUnit * matched,
			EntryTime:       pos.EntryTime,
			ExitTime:        exec.Time,
		})

		if pos.RemainingQuantity-matched <= l.cfg.DustEpsilon {
			// Full close in place; the sub-epsilon residue is dust.
			l.closeInPlace(&pos, matched, exec, metrics)
			if err := l.positions.Update(ctx, pos); err != nil {
				return closed, 0, fmt.Errorf("ledger: close position %d: %w", pos.ID, err)
			}
		} else {
			// Partial match: shrink the original for its unmatched
			// remainder and record the sold slice as its own closed row.
			if err := l.splitOff(ctx, &pos, matched, entryFeePerUnit, exec, metrics); err != nil {
				return closed, 0, err
			}
		}

		qtyToClose = l.cfg.RoundQuantity(qtyToClose - matched)
		closed++
	}

	unmatched := qtyToClose
	if unmatched <= l.cfg.DustEpsilon {
		unmatched = 0
	}
	return closed, unmatched, nil
}

// closeInPlace rewrites an open position as fully closed by the matched
// quantity, overwriting its invested amount and commission with the
// matched-slice metrics.
func (l *Ledger) closeInPlace(pos *domain.Position, matched float64, exec domain.Execution, metrics CloseMetrics) {
	exitPrice := exec.Price
	exitTime := exec.Time
	sellExecID := exec.ExecID

	pos.Status = domain.PositionStatusClosed
	pos.Quantity = matched
	pos.RemainingQuantity = 0
	pos.InvestedAmount = metrics.Invested
	pos.ExitPrice = &exitPrice
	pos.ExitTime = &exitTime
	pos.ReceivedAmount = &metrics.Received
	pos.CommissionAmount = metrics.Commission
	pos.ProfitLoss = &metrics.ProfitLoss
	pos.ProfitLossPercent = &metrics.ProfitLossPercent
	pos.DurationMinutes = &metrics.DurationMinutes
	pos.SellExecID = &sellExecID
}

// splitOff shrinks pos by the matched quantity and inserts a new CLOSED
// position for the sold slice. The original keeps its identity (and buy
// execution ID) for the unmatched remainder.
func (l *Ledger) splitOff(ctx context.Context, pos *domain.Position, matched, entryFeePerUnit float64, exec domain.Execution, metrics CloseMetrics) error {
	remainingAfter := l.cfg.RoundQuantity(pos.RemainingQuantity - matched)

	pos.Quantity = remainingAfter
	pos.RemainingQuantity = remainingAfter
	pos.InvestedAmount = l.cfg.RoundMoney(remainingAfter * pos.EntryPrice)
	pos.CommissionAmount = l.cfg.RoundMoney(entryFeePerUnit * remainingAfter)

	if err := l.positions.Update(ctx, *pos); err != nil {
		return fmt.Errorf("ledger: shrink position %d: %w", pos.ID, err)
	}

	exitPrice := exec.Price
	exitTime := exec.Time
	sellExecID := exec.ExecID

	slice := domain.Position{
		OwnerID:           pos.OwnerID,
		Symbol:            pos.Symbol,
		Status:            domain.PositionStatusClosed,
		Source:            pos.Source,
		Quantity:          matched,
		RemainingQuantity: 0,
		EntryPrice:        pos.EntryPrice,
		EntryTime:         pos.EntryTime,
		ExitPrice:         &exitPrice,
		ExitTime:          &exitTime,
		InvestedAmount:    metrics.Invested,
		ReceivedAmount:    &metrics.Received,
		CommissionAmount:  metrics.Commission,
		ProfitLoss:        &metrics.ProfitLoss,
		ProfitLossPercent: &metrics.ProfitLossPercent,
		DurationMinutes:   &metrics.DurationMinutes,
		BuyExecID:         pos.BuyExecID,
		SellExecID:        &sellExecID,
		CreatedAt:         time.Now().UnixMilli(),
	}

	if err := l.positions.Create(ctx, &slice); err != nil {
		return fmt.Errorf("ledger: insert closed slice of %d: %w", pos.ID, err)
	}
	return nil
}

// sweepDust force-closes open positions whose remaining quantity is within
// the dust epsilon of zero. Repeated partial proration leaves residue below
// any economic threshold; left open it would misstate open-position counts
// and block a symbol's FIFO queue forever.
func (l *Ledger) sweepDust(ctx context.Context, ownerID int64) (int, error) {
	open, err := l.positions.ListOpen(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("ledger: list open for dust sweep: %w", err)
	}

	closed := 0
	for _, pos := range open {
		r := pos.RemainingQuantity
		if r < 0 {
			r = -r
		}
		if r > l.cfg.DustEpsilon {
			continue
		}

		zero := 0.0
		var zeroDur int64
		pos.Status = domain.PositionStatusClosed
		pos.Quantity = 0
		pos.RemainingQuantity = 0
		pos.InvestedAmount = 0
		pos.ReceivedAmount = &zero
		pos.CommissionAmount = 0
		pos.ProfitLoss = &zero
		pos.ProfitLossPercent = &zero
		pos.DurationMinutes = &zeroDur
		if pos.ExitTime == nil {
			t := pos.EntryTime
			pos.ExitTime = &t
		}
		if pos.ExitPrice == nil {
			p := pos.EntryPrice
			pos.ExitPrice = &p
		}
		pos.Source = domain.SourceDust

		if err := l.positions.Update(ctx, pos); err != nil {
			return closed, fmt.Errorf("ledger: dust close position %d: %w", pos.ID, err)
		}
		closed++

		l.logger.DebugContext(ctx, "dust position closed",
			slog.Int64("owner_id", ownerID),
			slog.Int64("position_id", pos.ID),
			slog.String("symbol", pos.Symbol),
		)
	}
	return closed, nil
}

// CloseManually closes one specific open position at an externally supplied
// exit price/time/commission, bypassing the FIFO matcher. Legal only while
// the position is OPEN; no partial mutation occurs on a rejected call.
func (l *Ledger) CloseManually(ctx context.Context, ownerID, positionID int64, exitPrice float64, exitTimeMs int64, exitCommission float64) (domain.Position, error) {
	if exitPrice <= 0 {
		return domain.Position{}, fmt.Errorf("ledger: exit price %v: %w", exitPrice, domain.ErrInvalidInput)
	}
	if exitTimeMs <= 0 {
		exitTimeMs = time.Now().UnixMilli()
	}
	if exitCommission < 0 {
		exitCommission = -exitCommission
	}

	mu := l.ownerMu(ownerID)
	mu.Lock()
	defer mu.Unlock()

	pos, err := l.positions.GetByID(ctx, ownerID, positionID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("ledger: manual close position %d: %w", positionID, err)
	}
	if !pos.Open() {
		return domain.Position{}, fmt.Errorf("ledger: manual close position %d: %w", positionID, domain.ErrAlreadyClosed)
	}

	metrics := l.cfg.Close(CloseInput{
		Quantity:        pos.Quantity,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exitPrice,
		EntryCommission: pos.CommissionAmount,
		ExitCommission:  exitCommission,
		EntryTime:       pos.EntryTime,
		ExitTime:        exitTimeMs,
	})

	pos.Status = domain.PositionStatusClosed
	pos.RemainingQuantity = 0
	pos.ExitPrice = &exitPrice
	pos.ExitTime = &exitTimeMs
	pos.ReceivedAmount = &metrics.Received
	pos.CommissionAmount = metrics.Commission
	pos.ProfitLoss = &metrics.ProfitLoss
	pos.ProfitLossPercent = &metrics.ProfitLossPercent
	pos.DurationMinutes = &metrics.DurationMinutes

	if err := l.positions.Update(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: manual close update %d: %w", positionID, err)
	}
	return pos, nil
}
