// Package okx is the REST client for the OKX v5 API.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ksenkin/tradediary/internal/crypto"
	"github.com/ksenkin/tradediary/internal/domain"
)

const (
	// DefaultBaseURL is the OKX v5 production REST root.
	DefaultBaseURL = "https://www.okx.com"

	// pageLimit is the maximum rows per fills-history page.
	pageLimit = 100

	// historySpan is how far back fills-history reaches. Older fills need
	// the asynchronous fills archive, which this client does not drive.
	historySpan = 90 * 24 * time.Hour
)

// Client is the REST client for the OKX v5 API.
type Client struct {
	baseURL    string
	instType   string
	auth       *crypto.OKXAuth
	httpClient *http.Client
}

// NewClient creates a new OKX REST client. baseURL falls back to the
// production endpoint when empty; instType selects the instrument family
// ("SPOT", "SWAP").
func NewClient(baseURL, instType string, auth *crypto.OKXAuth) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if instType == "" {
		instType = "SPOT"
	}
	return &Client{
		baseURL:  baseURL,
		instType: instType,
		auth:     auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchFills returns every fill in [from, to] (ms since epoch). The
// fills-history endpoint only reaches back 90 days, so older range starts
// are clamped. Pages walk backwards through bill IDs; the result is
// returned as fetched and left to the normalizer to order.
func (c *Client) FetchFills(ctx context.Context, from, to int64) ([]domain.RawFill, error) {
	if oldest := time.Now().Add(-historySpan).UnixMilli(); from < oldest {
		from = oldest
	}

	var fills []domain.RawFill
	afterBillID := ""
	for {
		page, err := c.fillsPage(ctx, from, to, afterBillID)
		if err != nil {
			return nil, err
		}
		for _, f := range page {
			fills = append(fills, f.ToRawFill())
		}
		if len(page) < pageLimit {
			break
		}
		// Rows come newest first; the last row's bill ID keys the next
		// (older) page.
		afterBillID = page[len(page)-1].BillID
	}
	return fills, nil
}

// fillsPage fetches one page of /api/v5/trade/fills-history.
func (c *Client) fillsPage(ctx context.Context, begin, end int64, after string) ([]Fill, error) {
	params := url.Values{}
	params.Set("instType", c.instType)
	params.Set("begin", strconv.FormatInt(begin, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	params.Set("limit", strconv.Itoa(pageLimit))
	if after != "" {
		params.Set("after", after)
	}

	body, err := c.doSignedGet(ctx, "/api/v5/trade/fills-history", params)
	if err != nil {
		return nil, fmt.Errorf("okx: fills history: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("okx: decode fills history: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: fills history code %s: %s: %w",
			resp.Code, resp.Msg, domain.ErrExchangeError)
	}
	return resp.Data, nil
}

// Balances returns the trading-account balances. Used by the profile
// registration flow to verify the supplied credentials before storing them.
func (c *Client) Balances(ctx context.Context) ([]AssetBalance, error) {
	body, err := c.doSignedGet(ctx, "/api/v5/account/balance", nil)
	if err != nil {
		return nil, fmt.Errorf("okx: balance: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("okx: decode balance: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx: balance code %s: %s: %w",
			resp.Code, resp.Msg, domain.ErrExchangeError)
	}

	var out []AssetBalance
	for _, acct := range resp.Data {
		for _, d := range acct.Details {
			out = append(out, AssetBalance{
				Currency: d.Ccy,
				Balance:  parseFloat(d.CashBal),
			})
		}
	}
	return out, nil
}

// doSignedGet builds, signs, sends, and reads a GET request against the OKX
// API. The signature covers the request path including its query string.
func (c *Client) doSignedGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+requestPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(http.MethodGet, requestPath, "") {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func checkStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("HTTP %d: %w", statusCode, domain.ErrUnauthorized)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("HTTP %d rate limited: %w", statusCode, domain.ErrExchangeError)
	default:
		return fmt.Errorf("HTTP %d: %w", statusCode, domain.ErrExchangeError)
	}
}
