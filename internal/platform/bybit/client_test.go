package bybit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksenkin/tradediary/internal/crypto"
	"github.com/ksenkin/tradediary/internal/domain"
)

func testAuth() *crypto.BybitAuth {
	return &crypto.BybitAuth{Key: "k", Secret: "s", RecvWindow: 5000}
}

func TestFetchFillsPaginatesByCursor(t *testing.T) {
	t.Parallel()

	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v5/execution/list", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		assert.Equal(t, "spot", r.URL.Query().Get("category"))

		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)

		resp := apiResponse{}
		if cursor == "" {
			resp.Result.List = []Execution{{
				Symbol: "BTCUSDT", Side: "Buy", OrderID: "o1", ExecID: "e1",
				ExecQty: "0.5", ExecPrice: "50000", ExecFee: "0.25", ExecTime: "1700000000000",
			}}
			resp.Result.NextPageCursor = "page2"
		} else {
			resp.Result.List = []Execution{{
				Symbol: "BTCUSDT", Side: "Sell", OrderID: "o2", ExecID: "e2",
				ExecQty: "0.5", ExecPrice: "51000", ExecFee: "0.26", ExecTime: "1700000100000",
			}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "spot", testAuth())
	fills, err := c.FetchFills(context.Background(), 1700000000000, 1700000200000)
	require.NoError(t, err)
	require.Len(t, fills, 2)

	assert.Equal(t, []string{"", "page2"}, cursors)
	assert.Equal(t, "BTCUSDT", fills[0].Symbol)
	assert.Equal(t, "e1", fills[0].ExecID)
	assert.InDelta(t, 0.5, fills[0].Quantity, 1e-12)
	assert.InDelta(t, 50000.0, fills[0].Price, 1e-9)
	assert.Equal(t, int64(1700000000000), fills[0].Time)
	assert.Equal(t, "Sell", fills[1].Side)
}

func TestFetchFillsChunksWideWindows(t *testing.T) {
	t.Parallel()

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.NotEmpty(t, r.URL.Query().Get("startTime"))
		assert.NotEmpty(t, r.URL.Query().Get("endTime"))
		json.NewEncoder(w).Encode(apiResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "spot", testAuth())

	// 15 days spans three seven-day chunks.
	from := int64(1700000000000)
	to := from + 15*24*60*60*1000
	_, err := c.FetchFills(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
}

func TestFetchFillsSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"retCode": 10003, "retMsg": "invalid api key"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "spot", testAuth())
	_, err := c.FetchFills(context.Background(), 1, 2)
	assert.ErrorIs(t, err, domain.ErrExchangeError)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestFetchFillsMapsAuthStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "spot", testAuth())
	_, err := c.FetchFills(context.Background(), 1, 2)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestWalletBalances(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v5/account/wallet-balance", r.URL.Path)
		assert.Equal(t, "UNIFIED", r.URL.Query().Get("accountType"))
		w.Write([]byte(`{"retCode":0,"result":{"list":[{"totalEquity":"1000","coin":[{"coin":"USDT","walletBalance":"999.5"},{"coin":"BTC","walletBalance":"0.01"}]}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "spot", testAuth())
	balances, err := c.WalletBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "USDT", balances[0].Coin)
	assert.InDelta(t, 999.5, balances[0].Balance, 1e-9)
}
