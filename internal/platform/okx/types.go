package okx

import (
	"strconv"
	"strings"

	"github.com/ksenkin/tradediary/internal/domain"
)

// apiResponse is the envelope every OKX v5 endpoint returns. code is "0"
// on success.
type apiResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []Fill `json:"data"`
}

// Fill is one row from /api/v5/trade/fills-history. OKX reports all numeric
// fields as strings; fees are negative for costs.
type Fill struct {
	InstID  string `json:"instId"` // e.g. "BTC-USDT"
	Side    string `json:"side"`   // "buy" or "sell"
	OrdID   string `json:"ordId"`
	BillID  string `json:"billId"`
	TradeID string `json:"tradeId"`
	FillSz  string `json:"fillSz"`
	FillPx  string `json:"fillPx"`
	Fee     string `json:"fee"`
	TS      string `json:"ts"` // ms since epoch
}

// ToRawFill converts an OKX fill into the normalizer's input shape. The
// instrument ID drops its dash so symbols compare equal across exchanges.
func (f Fill) ToRawFill() domain.RawFill {
	return domain.RawFill{
		Symbol:   strings.ReplaceAll(f.InstID, "-", ""),
		Side:     f.Side,
		OrderID:  f.OrdID,
		ExecID:   f.TradeID,
		Quantity: parseFloat(f.FillSz),
		Price:    parseFloat(f.FillPx),
		Fee:      parseFloat(f.Fee),
		Time:     parseInt(f.TS),
	}
}

// balanceResponse is the envelope for /api/v5/account/balance.
type balanceResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Details []struct {
			Ccy     string `json:"ccy"`
			CashBal string `json:"cashBal"`
		} `json:"details"`
	} `json:"data"`
}

// AssetBalance is one currency balance from the trading account.
type AssetBalance struct {
	Currency string
	Balance  float64
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
