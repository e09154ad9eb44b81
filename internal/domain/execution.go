package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of a fill or execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes an exchange-reported side string ("Buy", "sell", ...).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("domain: unknown side %q", s)
	}
}

// RawFill is a single fill row as reported by an exchange, before
// normalization. A single order commonly produces several partial fills.
type RawFill struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	OrderID  string  `json:"order_id,omitempty"` // optional; grouping key when present
	ExecID   string  `json:"exec_id,omitempty"`  // optional; exchange execution/trade identifier
	Quantity float64 `json:"qty"`
	Price    float64 `json:"price"`
	Fee      float64 `json:"fee"`  // may be negative (rebate sign conventions differ)
	Time     int64   `json:"time"` // milliseconds since epoch
}

// Execution is a normalized, validated buy or sell execution: one per
// (symbol, side, order) group, with a volume-weighted price and summed fee.
// Executions are ephemeral; only the positions derived from them persist.
type Execution struct {
	Symbol   string
	Side     Side
	OrderID  string
	ExecID   string // idempotency key; synthesized when the exchange omits it
	Quantity float64
	Price    float64
	Fee      float64
	Time     int64 // ms since epoch; min fill time for buys, max for sells
}

// NewExecution validates the execution invariants (positive quantity and
// price, non-empty symbol, non-zero time). Records violating them are
// expected upstream noise and are dropped by the normalizer, not erred.
func NewExecution(symbol string, side Side, orderID, execID string, qty, price, fee float64, timeMs int64) (Execution, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Execution{}, fmt.Errorf("domain: execution symbol is empty")
	}
	if side != SideBuy && side != SideSell {
		return Execution{}, fmt.Errorf("domain: execution side %q is invalid", side)
	}
	if qty <= 0 {
		return Execution{}, fmt.Errorf("domain: execution quantity %v is not positive", qty)
	}
	if price <= 0 {
		return Execution{}, fmt.Errorf("domain: execution price %v is not positive", price)
	}
	if timeMs <= 0 {
		return Execution{}, fmt.Errorf("domain: execution time is missing")
	}
	if execID == "" {
		execID = SynthExecID(side, symbol, timeMs)
	}
	if fee < 0 {
		fee = -fee
	}
	return Execution{
		Symbol:   symbol,
		Side:     side,
		OrderID:  orderID,
		ExecID:   execID,
		Quantity: qty,
		Price:    price,
		Fee:      fee,
		Time:     timeMs,
	}, nil
}

// SynthExecID builds a deterministic execution ID for exchanges that omit
// one, so replaying the same window yields the same idempotency key.
func SynthExecID(side Side, symbol string, timeMs int64) string {
	return fmt.Sprintf("%s_%s_%d", strings.ToLower(string(side)), symbol, timeMs)
}
