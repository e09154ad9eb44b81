package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfAway(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    float64
		places   int
		expected float64
	}{
		{name: "exact", value: 1.25, places: 6, expected: 1.25},
		{name: "half_up_positive", value: 0.0000005, places: 6, expected: 0.000001},
		{name: "half_away_negative", value: -0.0000005, places: 6, expected: -0.000001},
		{name: "representation_error", value: 2.6749999999999998, places: 2, expected: 2.68},
		{name: "binary_artifact", value: 0.1 + 0.2, places: 6, expected: 0.3},
		{name: "truncates_noise", value: 100.00000049, places: 6, expected: 100.0},
		{name: "zero", value: 0, places: 6, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, roundHalfAway(tt.value, tt.places), 1e-12)
		})
	}
}

func TestConfigScales(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	// Money keeps 6 decimal places, quantities 12.
	assert.InDelta(t, 0.123457, cfg.RoundMoney(0.1234567), 1e-12)
	assert.InDelta(t, 0.1234567, cfg.RoundQuantity(0.1234567), 1e-15)

	// Quantity arithmetic across repeated subtraction stays clean.
	q := 1.0
	for i := 0; i < 10; i++ {
		q = cfg.RoundQuantity(q - 0.1)
	}
	assert.Zero(t, q)
}

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultDustEpsilon, cfg.DustEpsilon)
	assert.Equal(t, DefaultMoneyScale, cfg.MoneyScale)
	assert.Equal(t, DefaultQuantityScale, cfg.QuantityScale)

	custom := Config{DustEpsilon: 1e-8}.withDefaults()
	assert.Equal(t, 1e-8, custom.DustEpsilon)
}
