package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksenkin/tradediary/internal/crypto"
	"github.com/ksenkin/tradediary/internal/domain"
)

func testAuth() *crypto.OKXAuth {
	return &crypto.OKXAuth{Key: "k", Secret: "s", Passphrase: "p"}
}

func TestFetchFillsSinglePage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/trade/fills-history", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-TIMESTAMP"))
		assert.Equal(t, "p", r.Header.Get("OK-ACCESS-PASSPHRASE"))
		assert.Equal(t, "SPOT", r.URL.Query().Get("instType"))

		json.NewEncoder(w).Encode(apiResponse{Code: "0", Data: []Fill{{
			InstID: "BTC-USDT", Side: "buy", OrdID: "o1", BillID: "b1", TradeID: "t1",
			FillSz: "0.5", FillPx: "50000", Fee: "-0.25", TS: "1700000000000",
		}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "SPOT", testAuth())
	fills, err := c.FetchFills(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	f := fills[0]
	// Dashes drop out of the instrument ID.
	assert.Equal(t, "BTCUSDT", f.Symbol)
	assert.Equal(t, "buy", f.Side)
	assert.Equal(t, "t1", f.ExecID)
	assert.InDelta(t, 0.5, f.Quantity, 1e-12)
	assert.InDelta(t, -0.25, f.Fee, 1e-12)
	assert.Equal(t, int64(1700000000000), f.Time)
}

func TestFetchFillsPaginatesByBillID(t *testing.T) {
	t.Parallel()

	var afters []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after := r.URL.Query().Get("after")
		afters = append(afters, after)

		resp := apiResponse{Code: "0"}
		if after == "" {
			// A full page signals more rows behind it.
			for i := 0; i < pageLimit; i++ {
				resp.Data = append(resp.Data, Fill{
					InstID: "BTC-USDT", Side: "sell", BillID: fmt.Sprintf("bill%d", i),
					TradeID: fmt.Sprintf("t%d", i), FillSz: "1", FillPx: "100", TS: "1700000000000",
				})
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "SPOT", testAuth())
	fills, err := c.FetchFills(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, fills, pageLimit)
	assert.Equal(t, []string{"", fmt.Sprintf("bill%d", pageLimit-1)}, afters)
}

func TestFetchFillsSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Code: "50111", Msg: "invalid OK-ACCESS-KEY"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "SPOT", testAuth())
	_, err := c.FetchFills(context.Background(), 1, 2)
	assert.ErrorIs(t, err, domain.ErrExchangeError)
	assert.Contains(t, err.Error(), "invalid OK-ACCESS-KEY")
}

func TestBalances(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/account/balance", r.URL.Path)
		w.Write([]byte(`{"code":"0","data":[{"details":[{"ccy":"USDT","cashBal":"42.5"}]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "SPOT", testAuth())
	balances, err := c.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USDT", balances[0].Currency)
	assert.InDelta(t, 42.5, balances[0].Balance, 1e-9)
}
