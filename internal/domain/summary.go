package domain

// SyncSummary reports what one ingestion batch did. Unmatched sell quantity
// is expected business data (inventory acquired outside the tracked
// window), not an error.
type SyncSummary struct {
	ExecutionsReceived    int     `json:"executions_received"`
	BuysCreated           int     `json:"buys_created"`
	SellMatchesClosed     int     `json:"sell_matches_closed"`
	UnmatchedSellQuantity float64 `json:"unmatched_sell_qty"`
	DustClosed            int     `json:"dust_closed"`
}

// Add accumulates another summary into s.
func (s *SyncSummary) Add(o SyncSummary) {
	s.ExecutionsReceived += o.ExecutionsReceived
	s.BuysCreated += o.BuysCreated
	s.SellMatchesClosed += o.SellMatchesClosed
	s.UnmatchedSellQuantity += o.UnmatchedSellQuantity
	s.DustClosed += o.DustClosed
}

// Stats aggregates closed-position performance for one profile.
type Stats struct {
	TotalTrades        int64   `json:"total_trades"`
	OpenTrades         int64   `json:"open_trades"`
	ClosedTrades       int64   `json:"closed_trades"`
	TotalProfitLoss    float64 `json:"total_pl"`
	AvgProfitLoss      float64 `json:"avg_pl"`
	AvgProfitLossPct   float64 `json:"avg_pl_percent"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	Wins               int64   `json:"wins"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	WinRatePercent     float64 `json:"win_rate_percent"`
}

// SyncRun is the audit record of one ingestion batch against one exchange.
type SyncRun struct {
	ID         string // uuid
	OwnerID    int64
	Exchange   string
	WindowFrom int64 // ms
	WindowTo   int64 // ms
	Summary    SyncSummary
	Error      string // empty on success
	StartedAt  int64
	FinishedAt int64
}
