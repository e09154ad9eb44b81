package domain

import "fmt"

// PositionStatus tracks the one-way OPEN -> CLOSED lifecycle of a position.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// Position source tags. SourceDust marks synthetic closures of float residue.
const (
	SourceManual = "manual"
	SourceBybit  = "bybit"
	SourceOKX    = "okx"
	SourceDust   = "dust"
)

// Position is one tracked holding: opened by a buy execution, closed fully
// or in slices by sell executions matched FIFO, or closed manually.
// All timestamps are milliseconds since epoch, matching the exchange wire
// format; monetary amounts are in the quote currency.
type Position struct {
	ID       int64
	OwnerID  int64
	Symbol   string
	Status   PositionStatus
	Source   string

	Quantity          float64 // current opening quantity; shrinks on splits
	RemainingQuantity float64 // 0 <= remaining <= quantity; 0 iff CLOSED

	EntryPrice float64
	EntryTime  int64
	ExitPrice  *float64 // nil while OPEN
	ExitTime   *int64   // nil while OPEN

	InvestedAmount    float64
	ReceivedAmount    *float64
	CommissionAmount  float64
	ProfitLoss        *float64
	ProfitLossPercent *float64
	DurationMinutes   *int64

	BuyExecID  string
	SellExecID *string

	CreatedAt int64
}

// NewOpenPosition builds an OPEN position from a validated buy execution.
// investedAmount is supplied by the caller so the ledger's rounding policy
// applies uniformly.
func NewOpenPosition(ownerID int64, exec Execution, investedAmount float64, source string, nowMs int64) (Position, error) {
	if exec.Side != SideBuy {
		return Position{}, fmt.Errorf("domain: position opened from %s execution", exec.Side)
	}
	return Position{
		OwnerID:           ownerID,
		Symbol:            exec.Symbol,
		Status:            PositionStatusOpen,
		Source:            source,
		Quantity:          exec.Quantity,
		RemainingQuantity: exec.Quantity,
		EntryPrice:        exec.Price,
		EntryTime:         exec.Time,
		InvestedAmount:    investedAmount,
		CommissionAmount:  exec.Fee,
		BuyExecID:         exec.ExecID,
		CreatedAt:         nowMs,
	}, nil
}

// Open reports whether the position is still open.
func (p *Position) Open() bool {
	return p.Status == PositionStatusOpen
}
