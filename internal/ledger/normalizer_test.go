package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksenkin/tradediary/internal/domain"
)

func TestNormalizeGroupsPartialFillsByOrder(t *testing.T) {
	t.Parallel()

	fills := []domain.RawFill{
		{Symbol: "btcusdt", Side: "Buy", OrderID: "o1", ExecID: "e1", Quantity: 0.4, Price: 50000, Fee: 1.0, Time: 1000},
		{Symbol: "BTCUSDT", Side: "BUY", OrderID: "o1", ExecID: "e2", Quantity: 0.6, Price: 51000, Fee: 1.5, Time: 3000},
	}

	execs := Normalize(fills)
	require.Len(t, execs, 1)

	e := execs[0]
	assert.Equal(t, "BTCUSDT", e.Symbol)
	assert.Equal(t, domain.SideBuy, e.Side)
	assert.Equal(t, "o1", e.OrderID)
	assert.Equal(t, "o1", e.ExecID)
	assert.InDelta(t, 1.0, e.Quantity, 1e-12)
	// Notional-weighted: (0.4*50000 + 0.6*51000) / 1.0
	assert.InDelta(t, 50600, e.Price, 1e-9)
	assert.InDelta(t, 2.5, e.Fee, 1e-12)
	// Buy groups begin at the first fill.
	assert.Equal(t, int64(1000), e.Time)
}

func TestNormalizeSellGroupTakesLatestTime(t *testing.T) {
	t.Parallel()

	fills := []domain.RawFill{
		{Symbol: "ETHUSDT", Side: "Sell", OrderID: "o9", Quantity: 1, Price: 3000, Fee: -0.3, Time: 5000},
		{Symbol: "ETHUSDT", Side: "Sell", OrderID: "o9", Quantity: 1, Price: 3000, Fee: -0.3, Time: 9000},
	}

	execs := Normalize(fills)
	require.Len(t, execs, 1)
	assert.Equal(t, int64(9000), execs[0].Time)
	// Negative fee sign conventions are folded into an absolute total.
	assert.InDelta(t, 0.6, execs[0].Fee, 1e-12)
}

func TestNormalizeFallsBackWhenOrderIDMissing(t *testing.T) {
	t.Parallel()

	fills := []domain.RawFill{
		{Symbol: "BTCUSDT", Side: "Buy", ExecID: "e1", Quantity: 1, Price: 100, Time: 1000},
		{Symbol: "BTCUSDT", Side: "Buy", ExecID: "e2", Quantity: 2, Price: 100, Time: 1000},
		{Symbol: "BTCUSDT", Side: "Buy", Quantity: 3, Price: 100, Time: 2000},
	}

	execs := Normalize(fills)
	require.Len(t, execs, 3)
	assert.Equal(t, "e1", execs[0].ExecID)
	assert.Equal(t, "e2", execs[1].ExecID)
	// No exec ID at all: synthesized deterministically.
	assert.Equal(t, domain.SynthExecID(domain.SideBuy, "BTCUSDT", 2000), execs[2].ExecID)
}

func TestNormalizeDropsMalformedFills(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fill domain.RawFill
	}{
		{name: "zero_quantity", fill: domain.RawFill{Symbol: "BTCUSDT", Side: "Buy", Quantity: 0, Price: 100, Time: 1}},
		{name: "negative_quantity", fill: domain.RawFill{Symbol: "BTCUSDT", Side: "Buy", Quantity: -1, Price: 100, Time: 1}},
		{name: "zero_price", fill: domain.RawFill{Symbol: "BTCUSDT", Side: "Buy", Quantity: 1, Price: 0, Time: 1}},
		{name: "missing_time", fill: domain.RawFill{Symbol: "BTCUSDT", Side: "Buy", Quantity: 1, Price: 100, Time: 0}},
		{name: "empty_symbol", fill: domain.RawFill{Symbol: "  ", Side: "Buy", Quantity: 1, Price: 100, Time: 1}},
		{name: "unknown_side", fill: domain.RawFill{Symbol: "BTCUSDT", Side: "HOLD", Quantity: 1, Price: 100, Time: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Normalize([]domain.RawFill{tt.fill}))
		})
	}
}

func TestNormalizeSortsChronologicallyAndStably(t *testing.T) {
	t.Parallel()

	fills := []domain.RawFill{
		{Symbol: "BTCUSDT", Side: "Sell", OrderID: "s1", Quantity: 1, Price: 110, Time: 3000},
		{Symbol: "BTCUSDT", Side: "Buy", OrderID: "b1", Quantity: 1, Price: 100, Time: 1000},
		{Symbol: "BTCUSDT", Side: "Buy", OrderID: "b2", Quantity: 1, Price: 101, Time: 1000},
	}

	execs := Normalize(fills)
	require.Len(t, execs, 3)
	assert.Equal(t, "b1", execs[0].OrderID)
	assert.Equal(t, "b2", execs[1].OrderID)
	assert.Equal(t, "s1", execs[2].OrderID)

	// Same input, same output: matching reproducibility depends on it.
	again := Normalize(fills)
	assert.Equal(t, execs, again)
}
