package ledger

// CloseInput is the quantity/price/commission/time tuple a close is
// computed from. Both the full-close and partial-slice paths feed it, as
// does the manual close endpoint.
type CloseInput struct {
	Quantity        float64
	EntryPrice      float64
	ExitPrice       float64
	EntryCommission float64
	ExitCommission  float64
	EntryTime       int64 // ms
	ExitTime        int64 // ms
}

// CloseMetrics is the computed economic outcome of a close.
type CloseMetrics struct {
	Invested          float64
	Received          float64
	Commission        float64
	ProfitLoss        float64
	ProfitLossPercent float64
	DurationMinutes   int64
}

// Close computes close metrics for the given tuple. It is a pure function;
// all money figures are rounded to the money scale.
func (c Config) Close(in CloseInput) CloseMetrics {
	c = c.withDefaults()

	invested := c.RoundMoney(in.Quantity * in.EntryPrice)
	received := c.RoundMoney(in.Quantity * in.ExitPrice)
	commission := c.RoundMoney(in.EntryCommission + in.ExitCommission)
	pl := c.RoundMoney(received - invested - commission)

	plPercent := 0.0
	if invested > 0 {
		plPercent = c.RoundMoney(pl / invested * 100)
	}

	duration := int64(roundHalfAway(float64(in.ExitTime-in.EntryTime)/60000, 0))
	if duration < 0 {
		duration = 0
	}

	return CloseMetrics{
		Invested:          invested,
		Received:          received,
		Commission:        commission,
		ProfitLoss:        pl,
		ProfitLossPercent: plPercent,
		DurationMinutes:   duration,
	}
}
