package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ksenkin/tradediary/internal/domain"
)

// fillGroup accumulates the fills of one (symbol, side, order) group.
type fillGroup struct {
	symbol   string
	side     domain.Side
	orderID  string
	execID   string // first non-empty exchange exec ID seen in the group
	quantity float64
	notional float64 // sum of qty*price, for the volume-weighted price
	fee      float64
	minTime  int64
	maxTime  int64
}

// Normalize collapses raw fills into one canonical execution per
// (symbol, side, order) group. Grouping falls back to the per-fill exec ID
// (or the fill time) when the exchange omits order grouping, which keeps
// ungroupable fills as single-fill executions instead of merging them.
//
// Within a group the quantity and absolute fee are summed and the price is
// notional-weighted. Buy groups take the earliest fill time (a buy begins
// at its first fill); sell groups take the latest (a sell completes at its
// last fill). Groups with non-positive quantity or price, or a missing
// time, are malformed upstream data and are dropped silently.
//
// The output is sorted ascending by time with a stable sort; insertion
// order breaks ties so repeated runs over the same fills match positions
// identically.
func Normalize(fills []domain.RawFill) []domain.Execution {
	groups := make(map[string]*fillGroup, len(fills))
	order := make([]string, 0, len(fills))

	for _, f := range fills {
		side, err := domain.ParseSide(f.Side)
		if err != nil {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(f.Symbol))
		if symbol == "" {
			continue
		}

		key := groupKey(symbol, side, f)
		g, ok := groups[key]
		if !ok {
			g = &fillGroup{
				symbol:  symbol,
				side:    side,
				orderID: f.OrderID,
				minTime: f.Time,
				maxTime: f.Time,
			}
			groups[key] = g
			order = append(order, key)
		}

		g.quantity += f.Quantity
		g.notional += f.Quantity * f.Price
		if f.Fee < 0 {
			g.fee -= f.Fee
		} else {
			g.fee += f.Fee
		}
		if f.Time < g.minTime {
			g.minTime = f.Time
		}
		if f.Time > g.maxTime {
			g.maxTime = f.Time
		}
		if g.execID == "" {
			g.execID = f.ExecID
		}
	}

	execs := make([]domain.Execution, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.quantity <= 0 {
			continue
		}

		price := g.notional / g.quantity
		t := g.minTime
		if g.side == domain.SideSell {
			t = g.maxTime
		}

		execID := g.orderID
		if execID == "" {
			execID = g.execID
		}

		exec, err := domain.NewExecution(g.symbol, g.side, g.orderID, execID, g.quantity, price, g.fee, t)
		if err != nil {
			continue
		}
		execs = append(execs, exec)
	}

	sort.SliceStable(execs, func(i, j int) bool {
		return execs[i].Time < execs[j].Time
	})
	return execs
}

// groupKey builds the dedup/grouping key for a fill. The order ID grouping
// must stay stable across re-fetches for replay dedup to hold; see the
// design notes before changing this.
func groupKey(symbol string, side domain.Side, f domain.RawFill) string {
	switch {
	case f.OrderID != "":
		return fmt.Sprintf("%s|%s|o:%s", symbol, side, f.OrderID)
	case f.ExecID != "":
		return fmt.Sprintf("%s|%s|e:%s", symbol, side, f.ExecID)
	default:
		return fmt.Sprintf("%s|%s|t:%d", symbol, side, f.Time)
	}
}
