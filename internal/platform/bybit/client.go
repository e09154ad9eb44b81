// Package bybit is the REST and WebSocket client for the Bybit v5 API.
package bybit

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
	// DefaultBaseURL is the Bybit v5 production REST root.
	DefaultBaseURL = "https://api.bybit.com"

	// pageLimit is the maximum rows per execution-list page.
	pageLimit = 100

	// windowSpan is the widest start/end range one execution-list request
	// accepts; longer ranges are chunked.
	windowSpan = 7 * 24 * time.Hour
)

// Client is the REST client for the Bybit v5 API.
type Client struct {
	baseURL    string
	category   string
	auth       *crypto.BybitAuth
	httpClient *http.Client
}

// NewClient creates a new Bybit REST client. baseURL falls back to the
// production endpoint when empty; category selects the product line
// ("spot", "linear").
func NewClient(baseURL, category string, auth *crypto.BybitAuth) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if category == "" {
		category = "spot"
	}
	return &Client{
		baseURL:  baseURL,
		category: category,
		auth:     auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchFills returns every execution in [from, to] (ms since epoch), oldest
// windows first. The API caps each request at a seven-day range, so wider
// ranges are fetched in chunks, each chunk drained page by page.
func (c *Client) FetchFills(ctx context.Context, from, to int64) ([]domain.RawFill, error) {
	var fills []domain.RawFill

	span := windowSpan.Milliseconds()
	for start := from; start <= to; start += span {
		end := start + span - 1
		if end > to {
			end = to
		}

		cursor := ""
		for {
			page, next, err := c.executionPage(ctx, start, end, cursor)
			if err != nil {
				return nil, err
			}
			fills = append(fills, page...)
			if next == "" {
				break
			}
			cursor = next
		}
	}

	return fills, nil
}

// executionPage fetches one page of /v5/execution/list.
func (c *Client) executionPage(ctx context.Context, start, end int64, cursor string) ([]domain.RawFill, string, error) {
	params := url.Values{}
	params.Set("category", c.category)
	params.Set("startTime", strconv.FormatInt(start, 10))
	params.Set("endTime", strconv.FormatInt(end, 10))
	params.Set("limit", strconv.Itoa(pageLimit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	body, err := c.doSignedGet(ctx, "/v5/execution/list", params)
	if err != nil {
		return nil, "", fmt.Errorf("bybit: execution list: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("bybit: decode execution list: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, "", fmt.Errorf("bybit: execution list retCode %d: %s: %w",
			resp.RetCode, resp.RetMsg, domain.ErrExchangeError)
	}

	fills := make([]domain.RawFill, 0, len(resp.Result.List))
	for _, e := range resp.Result.List {
		fills = append(fills, e.ToRawFill())
	}
	return fills, resp.Result.NextPageCursor, nil
}

// WalletBalances returns the unified-account coin balances. Used by the
// profile registration flow to verify the supplied credentials actually
// work before storing them.
func (c *Client) WalletBalances(ctx context.Context) ([]CoinBalance, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")

	body, err := c.doSignedGet(ctx, "/v5/account/wallet-balance", params)
	if err != nil {
		return nil, fmt.Errorf("bybit: wallet balance: %w", err)
	}

	var resp walletResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode wallet balance: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit: wallet balance retCode %d: %s: %w",
			resp.RetCode, resp.RetMsg, domain.ErrExchangeError)
	}

	var out []CoinBalance
	for _, acct := range resp.Result.List {
		for _, coin := range acct.Coin {
			out = append(out, CoinBalance{
				Coin:    coin.Coin,
				Balance: parseFloat(coin.WalletBalance),
			})
		}
	}
	return out, nil
}

// doSignedGet builds, signs, sends, and reads a GET request against the
// Bybit API. The signature covers the encoded query string.
func (c *Client) doSignedGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := params.Encode()
	fullURL := c.baseURL + path
	if query != "" {
		fullURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.auth.Headers(query) {
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
