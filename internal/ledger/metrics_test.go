package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseMetrics(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	tests := []struct {
		name string
		in   CloseInput
		want CloseMetrics
	}{
		{
			name: "profitable_close",
			in: CloseInput{
				Quantity:        2,
				EntryPrice:      100,
				ExitPrice:       110,
				EntryCommission: 0.5,
				ExitCommission:  0.55,
				EntryTime:       0,
				ExitTime:        90 * 60000,
			},
			want: CloseMetrics{
				Invested:          200,
				Received:          220,
				Commission:        1.05,
				ProfitLoss:        18.95,
				ProfitLossPercent: 9.475,
				DurationMinutes:   90,
			},
		},
		{
			name: "losing_close",
			in: CloseInput{
				Quantity:   1,
				EntryPrice: 100,
				ExitPrice:  95,
				EntryTime:  0,
				ExitTime:   60000,
			},
			want: CloseMetrics{
				Invested:          100,
				Received:          95,
				Commission:        0,
				ProfitLoss:        -5,
				ProfitLossPercent: -5,
				DurationMinutes:   1,
			},
		},
		{
			name: "zero_invested_has_zero_percent",
			in: CloseInput{
				Quantity:   0,
				EntryPrice: 100,
				ExitPrice:  110,
				EntryTime:  0,
				ExitTime:   60000,
			},
			want: CloseMetrics{DurationMinutes: 1},
		},
		{
			name: "exit_before_entry_clamps_duration",
			in: CloseInput{
				Quantity:   1,
				EntryPrice: 50,
				ExitPrice:  50,
				EntryTime:  120000,
				ExitTime:   0,
			},
			want: CloseMetrics{
				Invested:        50,
				Received:        50,
				DurationMinutes: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.Close(tt.in)
			assert.InDelta(t, tt.want.Invested, got.Invested, 1e-9)
			assert.InDelta(t, tt.want.Received, got.Received, 1e-9)
			assert.InDelta(t, tt.want.Commission, got.Commission, 1e-9)
			assert.InDelta(t, tt.want.ProfitLoss, got.ProfitLoss, 1e-9)
			assert.InDelta(t, tt.want.ProfitLossPercent, got.ProfitLossPercent, 1e-9)
			assert.Equal(t, tt.want.DurationMinutes, got.DurationMinutes)
		})
	}
}

// Profit sign must agree with the raw economics, and the percent must be
// the rounded pl/invested ratio whenever invested is positive.
func TestCloseMetricsSignAndPercent(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	in := CloseInput{
		Quantity:        1.5,
		EntryPrice:      50000,
		ExitPrice:       53000,
		EntryCommission: 5,
		ExitCommission:  7.95,
		EntryTime:       0,
		ExitTime:        3 * 60000,
	}

	got := cfg.Close(in)
	assert.Greater(t, got.ProfitLoss, 0.0)
	assert.InDelta(t, cfg.RoundMoney(got.ProfitLoss/got.Invested*100), got.ProfitLossPercent, 1e-9)
	assert.InDelta(t, got.Received-got.Invested-got.Commission, got.ProfitLoss, 1e-6)
}

func TestCloseMetricsDurationRounding(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	// 89.5 minutes rounds up, 89.4 rounds down.
	up := cfg.Close(CloseInput{Quantity: 1, EntryPrice: 1, ExitPrice: 1, ExitTime: 89*60000 + 30000})
	down := cfg.Close(CloseInput{Quantity: 1, EntryPrice: 1, ExitPrice: 1, ExitTime: 89*60000 + 24000})
	assert.Equal(t, int64(90), up.DurationMinutes)
	assert.Equal(t, int64(89), down.DurationMinutes)
}
