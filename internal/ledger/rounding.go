// Package ledger implements the trade diary core: fill normalization, the
// FIFO position matcher, close metrics, and dust reconciliation. It is pure
// bookkeeping over a domain.PositionStore; it performs no I/O of its own.
package ledger

import "math"

// Defaults for the ledger configuration. Money and quantity use distinct
// precisions on purpose: quantity arithmetic survives many more partial
// splits than money ever needs to display.
const (
	DefaultDustEpsilon   = 1e-6
	DefaultMoneyScale    = 6
	DefaultQuantityScale = 12
)

// roundNudge is added to the scaled value before rounding so that values
// sitting just under a half boundary due to binary representation error
// (e.g. 2.6749999999999998) still round the way their decimal form would.
const roundNudge = 1e-9

// Config carries the ledger's precision and epsilon policy. Different
// instruments have different minimum lot sizes, so the dust epsilon is a
// knob rather than a constant.
type Config struct {
	DustEpsilon   float64
	MoneyScale    int
	QuantityScale int
}

// DefaultConfig returns the standard spot-trading configuration.
func DefaultConfig() Config {
	return Config{
		DustEpsilon:   DefaultDustEpsilon,
		MoneyScale:    DefaultMoneyScale,
		QuantityScale: DefaultQuantityScale,
	}
}

// withDefaults fills zero-valued fields so a partially populated Config
// behaves sensibly.
func (c Config) withDefaults() Config {
	if c.DustEpsilon <= 0 {
		c.DustEpsilon = DefaultDustEpsilon
	}
	if c.MoneyScale <= 0 {
		c.MoneyScale = DefaultMoneyScale
	}
	if c.QuantityScale <= 0 {
		c.QuantityScale = DefaultQuantityScale
	}
	return c
}

// RoundMoney rounds a quote-currency amount to the money scale.
func (c Config) RoundMoney(v float64) float64 {
	return roundHalfAway(v, c.MoneyScale)
}

// RoundQuantity rounds a base-asset quantity to the quantity scale.
func (c Config) RoundQuantity(v float64) float64 {
	return roundHalfAway(v, c.QuantityScale)
}

// roundHalfAway rounds v to the given number of decimal places using
// round-half-away-from-zero, nudging the scaled value away from zero first
// to counter floating-point representation error.
func roundHalfAway(v float64, places int) float64 {
	pow := math.Pow10(places)
	scaled := v * pow
	if scaled >= 0 {
		scaled += roundNudge
	} else {
		scaled -= roundNudge
	}
	return math.Round(scaled) / pow
}
