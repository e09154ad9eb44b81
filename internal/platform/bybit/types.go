package bybit

import (
	"strconv"

	"github.com/ksenkin/tradediary/internal/domain"
)

// apiResponse is the envelope every Bybit v5 endpoint returns.
type apiResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List           []Execution `json:"list"`
		NextPageCursor string      `json:"nextPageCursor"`
	} `json:"result"`
}

// Execution is one fill row from /v5/execution/list. Bybit reports all
// numeric fields as strings.
type Execution struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"` // "Buy" or "Sell"
	OrderID   string `json:"orderId"`
	ExecID    string `json:"execId"`
	ExecQty   string `json:"execQty"`
	ExecPrice string `json:"execPrice"`
	ExecFee   string `json:"execFee"`
	ExecTime  string `json:"execTime"` // ms since epoch
}

// ToRawFill converts an exchange execution row into the normalizer's input
// shape. Unparseable numerics become zero values, which the normalizer
// drops as malformed.
func (e Execution) ToRawFill() domain.RawFill {
	return domain.RawFill{
		Symbol:   e.Symbol,
		Side:     e.Side,
		OrderID:  e.OrderID,
		ExecID:   e.ExecID,
		Quantity: parseFloat(e.ExecQty),
		Price:    parseFloat(e.ExecPrice),
		Fee:      parseFloat(e.ExecFee),
		Time:     parseInt(e.ExecTime),
	}
}

// walletResponse is the envelope for /v5/account/wallet-balance.
type walletResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			TotalEquity string `json:"totalEquity"`
			Coin        []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	} `json:"result"`
}

// CoinBalance is one asset balance from the unified wallet.
type CoinBalance struct {
	Coin    string
	Balance float64
}

// wsAuth is the authentication command for the private WebSocket stream.
type wsAuth struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

// wsSubscribe subscribes to private topics after authentication.
type wsSubscribe struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// wsMessage is the envelope of a private stream push.
type wsMessage struct {
	Op      string      `json:"op"`
	Success bool        `json:"success"`
	RetMsg  string      `json:"ret_msg"`
	Topic   string      `json:"topic"`
	Data    []Execution `json:"data"`
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
