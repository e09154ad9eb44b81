package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/store/memory"
)

const testOwner int64 = 7

func newTestLedger(t *testing.T) (*Ledger, *memory.PositionStore) {
	t.Helper()
	store := memory.NewPositionStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, DefaultConfig(), logger), store
}

func buy(symbol, execID string, qty, price, fee float64, timeMs int64) domain.Execution {
	e, err := domain.NewExecution(symbol, domain.SideBuy, "", execID, qty, price, fee, timeMs)
	if err != nil {
		panic(err)
	}
	return e
}

func sell(symbol, execID string, qty, price, fee float64, timeMs int64) domain.Execution {
	e, err := domain.NewExecution(symbol, domain.SideSell, "", execID, qty, price, fee, timeMs)
	if err != nil {
		panic(err)
	}
	return e
}

func TestIngestBuyOpensPosition(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	summary, err := l.Ingest(ctx, testOwner, domain.SourceBybit, []domain.Execution{
		buy("BTCUSDT", "b1", 2, 30000, 1.2, 1000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BuysCreated)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, open, 1)

	p := open[0]
	assert.Equal(t, domain.PositionStatusOpen, p.Status)
	assert.Equal(t, domain.SourceBybit, p.Source)
	assert.InDelta(t, 2.0, p.Quantity, 1e-12)
	assert.InDelta(t, 2.0, p.RemainingQuantity, 1e-12)
	assert.InDelta(t, 60000.0, p.InvestedAmount, 1e-9)
	assert.InDelta(t, 1.2, p.CommissionAmount, 1e-12)
	assert.Equal(t, "b1", p.BuyExecID)
	assert.Nil(t, p.ExitPrice)
}

func TestIngestIsIdempotentOnBuyExecID(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	batch := []domain.Execution{buy("BTCUSDT", "b1", 1, 100, 0, 1000)}

	first, err := l.Ingest(ctx, testOwner, domain.SourceBybit, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, first.BuysCreated)

	// Overlapping sync windows replay the same execution.
	second, err := l.Ingest(ctx, testOwner, domain.SourceBybit, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.BuysCreated)

	all, err := store.List(ctx, testOwner, "", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngestSellMatchesOldestFirst(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	// Insertion order deliberately disagrees with entry time.
	_, err := l.Ingest(ctx, testOwner, domain.SourceManual, []domain.Execution{
		buy("BTCUSDT", "later", 1, 200, 0, 5000),
		buy("BTCUSDT", "earlier", 1, 100, 0, 1000),
	})
	require.NoError(t, err)

	summary, err := l.Ingest(ctx, testOwner, domain.SourceManual, []domain.Execution{
		sell("BTCUSDT", "s1", 1, 150, 0, 9000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SellMatchesClosed)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "later", open[0].BuyExecID)

	closed, err := store.List(ctx, testOwner, domain.PositionStatusClosed, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "earlier", closed[0].BuyExecID)
	assert.InDelta(t, 50.0, *closed[0].ProfitLoss, 1e-9)
}

func TestIngestPartialSellSplitsPosition(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Ingest(ctx, testOwner, domain.SourceManual, []domain.Execution{
		buy("BTCUSDT", "b1", 10, 100, 0, 1000),
		sell("BTCUSDT", "s1", 4, 110, 0, 61000),
	})
	require.NoError(t, err)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, open, 1)

	// The original keeps its identity for the unmatched remainder.
	orig := open[0]
	assert.Equal(t, "b1", orig.BuyExecID)
	assert.InDelta(t, 6.0, orig.Quantity, 1e-12)
	assert.InDelta(t, 6.0, orig.RemainingQuantity, 1e-12)
	assert.InDelta(t, 600.0, orig.InvestedAmount, 1e-9)

	closed, err := store.List(ctx, testOwner, domain.PositionStatusClosed, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, closed, 1)

	slice := closed[0]
	assert.Equal(t, "b1", slice.BuyExecID)
	require.NotNil(t, slice.SellExecID)
	assert.Equal(t, "s1", *slice.SellExecID)
	assert.InDelta(t, 4.0, slice.Quantity, 1e-12)
	assert.InDelta(t, 400.0, slice.InvestedAmount, 1e-9)
	assert.InDelta(t, 440.0, *slice.ReceivedAmount, 1e-9)
	assert.InDelta(t, 40.0, *slice.ProfitLoss, 1e-9)
	assert.InDelta(t, 10.0, *slice.ProfitLossPercent, 1e-9)
	assert.Equal(t, int64(1), *slice.DurationMinutes)
	assert.InDelta(t, 100.0, slice.EntryPrice, 1e-12)
	assert.Equal(t, int64(1000), slice.EntryTime)
}

func TestIngestSellSpansMultiplePositions(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	summary, err := l.Ingest(ctx, testOwner, domain.SourceBybit, []domain.Execution{
		buy("BTCUSDT", "b1", 1, 50000, 5, 1_000_000),
		buy("BTCUSDT", "b2", 1, 52000, 5.2, 2_000_000),
		sell("BTCUSDT", "s1", 1.5, 53000, 7.95, 3_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.BuysCreated)
	assert.Equal(t, 2, summary.SellMatchesClosed)
	assert.Zero(t, summary.UnmatchedSellQuantity)

	closed, err := store.List(ctx, testOwner, domain.PositionStatusClosed, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, closed, 2)

	byBuy := map[string]domain.Position{}
	for _, p := range closed {
		byBuy[p.BuyExecID] = p
	}

	// First buy closed in full: exit fee prorated as 7.95/1.5 per unit.
	full := byBuy["b1"]
	assert.InDelta(t, 1.0, full.Quantity, 1e-12)
	assert.InDelta(t, 50000.0, full.InvestedAmount, 1e-9)
	assert.InDelta(t, 53000.0, *full.ReceivedAmount, 1e-9)
	assert.InDelta(t, 10.3, full.CommissionAmount, 1e-9)
	assert.InDelta(t, 2989.7, *full.ProfitLoss, 1e-9)
	assert.InDelta(t, 5.9794, *full.ProfitLossPercent, 1e-9)

	// Second buy closed for half its quantity.
	part := byBuy["b2"]
	assert.InDelta(t, 0.5, part.Quantity, 1e-12)
	assert.InDelta(t, 26000.0, part.InvestedAmount, 1e-9)
	assert.InDelta(t, 26500.0, *part.ReceivedAmount, 1e-9)
	assert.InDelta(t, 5.25, part.CommissionAmount, 1e-9)
	assert.InDelta(t, 494.75, *part.ProfitLoss, 1e-9)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b2", open[0].BuyExecID)
	assert.InDelta(t, 0.5, open[0].RemainingQuantity, 1e-12)
	assert.InDelta(t, 26000.0, open[0].InvestedAmount, 1e-9)
	assert.InDelta(t, 2.6, open[0].CommissionAmount, 1e-9)
}

// No commission may appear or vanish across splits: the closed slices plus
// the surviving remainder must carry exactly the entry fee plus exit fees.
func TestCommissionConservedAcrossSplits(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Ingest(ctx, testOwner, domain.SourceBybit, []domain.Execution{
		buy("ETHUSDT", "b1", 2, 100, 1.0, 1000),
		sell("ETHUSDT", "s1", 1, 110, 0.5, 2000),
		sell("ETHUSDT", "s2", 1, 120, 0.5, 3000),
	})
	require.NoError(t, err)

	all, err := store.List(ctx, testOwner, "", domain.ListOpts{})
	require.NoError(t, err)

	var total float64
	for _, p := range all {
		total += p.CommissionAmount
	}
	assert.InDelta(t, 2.0, total, 1e-6)
}

func TestIngestUnmatchedSellIsReportedNotErred(t *testing.T) {
	t.Parallel()
	l, _ := newTestLedger(t)
	ctx := context.Background()

	summary, err := l.Ingest(ctx, testOwner, domain.SourceOKX, []domain.Execution{
		sell("SOLUSDT", "s1", 3, 150, 0.1, 1000),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SellMatchesClosed)
	assert.InDelta(t, 3.0, summary.UnmatchedSellQuantity, 1e-12)
}

func TestIngestSellOverflowPartiallyMatches(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	summary, err := l.Ingest(ctx, testOwner, domain.SourceManual, []domain.Execution{
		buy("BTCUSDT", "b1", 1, 100, 0, 1000),
		sell("BTCUSDT", "s1", 2.5, 110, 0, 2000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SellMatchesClosed)
	assert.InDelta(t, 1.5, summary.UnmatchedSellQuantity, 1e-9)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestIngestSubEpsilonResidueClosesInPlace(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	// Selling all but 5e-7 of the position leaves residue below the dust
	// epsilon, so the position closes in place instead of splitting.
	_, err := l.Ingest(ctx, testOwner, domain.SourceBybit, []domain.Execution{
		buy("BTCUSDT", "b1", 1, 100, 0, 1000),
		sell("BTCUSDT", "s1", 0.9999995, 110, 0, 2000),
	})
	require.NoError(t, err)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	assert.Empty(t, open)

	closed, err := store.List(ctx, testOwner, domain.PositionStatusClosed, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.SourceBybit, closed[0].Source)
}

func TestIngestSweepsDustPositions(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	summary, err := l.Ingest(ctx, testOwner, domain.SourceBybit, []domain.Execution{
		buy("DOGEUSDT", "b1", 5e-7, 0.1, 0, 1000),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DustClosed)

	closed, err := store.List(ctx, testOwner, domain.PositionStatusClosed, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, closed, 1)

	p := closed[0]
	assert.Equal(t, domain.SourceDust, p.Source)
	assert.Zero(t, p.Quantity)
	assert.Zero(t, p.RemainingQuantity)
	assert.Zero(t, p.InvestedAmount)
	assert.Zero(t, *p.ProfitLoss)
	require.NotNil(t, p.ExitTime)
	assert.Equal(t, p.EntryTime, *p.ExitTime)
}

func TestIngestKeepsOwnersIsolated(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Ingest(ctx, 1, domain.SourceManual, []domain.Execution{
		buy("BTCUSDT", "b1", 1, 100, 0, 1000),
	})
	require.NoError(t, err)

	summary, err := l.Ingest(ctx, 2, domain.SourceManual, []domain.Execution{
		sell("BTCUSDT", "s1", 1, 110, 0, 2000),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SellMatchesClosed)
	assert.InDelta(t, 1.0, summary.UnmatchedSellQuantity, 1e-12)

	open, err := store.ListOpen(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCloseManually(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Ingest(ctx, testOwner, domain.SourceManual, []domain.Execution{
		buy("BTCUSDT", "b1", 2, 100, 0.4, 1000),
	})
	require.NoError(t, err)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, open, 1)

	pos, err := l.CloseManually(ctx, testOwner, open[0].ID, 120, 121000, 0.6)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
	assert.Zero(t, pos.RemainingQuantity)
	assert.InDelta(t, 120.0, *pos.ExitPrice, 1e-12)
	assert.InDelta(t, 240.0, *pos.ReceivedAmount, 1e-9)
	assert.InDelta(t, 1.0, pos.CommissionAmount, 1e-9)
	assert.InDelta(t, 39.0, *pos.ProfitLoss, 1e-9)
	assert.Equal(t, int64(2), *pos.DurationMinutes)

	// The stored row reflects the close.
	stored, err := store.GetByID(ctx, testOwner, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, stored.Status)
}

func TestCloseManuallyRejections(t *testing.T) {
	t.Parallel()
	l, store := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Ingest(ctx, testOwner, domain.SourceManual, []domain.Execution{
		buy("BTCUSDT", "b1", 1, 100, 0, 1000),
	})
	require.NoError(t, err)

	open, err := store.ListOpen(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, open, 1)
	id := open[0].ID

	_, err = l.CloseManually(ctx, testOwner, id, 0, 2000, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = l.CloseManually(ctx, testOwner, id+100, 110, 2000, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = l.CloseManually(ctx, 999, id, 110, 2000, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = l.CloseManually(ctx, testOwner, id, 110, 2000, 0)
	require.NoError(t, err)

	_, err = l.CloseManually(ctx, testOwner, id, 110, 3000, 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
}
