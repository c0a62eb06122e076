package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto-signal-engine/internal/circuit"
)

// Client is a REST market data client. All calls carry a per-request
// timeout and go through the bounded retry policy; a circuit breaker
// backs the whole boundary off when the exchange degrades.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	breaker    *circuit.Breaker
}

// NewClient creates a new market data client
func NewClient(baseURL string, timeout time.Duration, retry RetryPolicy) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		breaker:    circuit.NewBreaker(circuit.DefaultConfig()),
	}
}

// GetCandles fetches historical candles for a symbol and interval.
// A malformed or non-array response is a hard failure for this symbol.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	var body []byte
	err := c.retry.Do(ctx, func() error {
		var err error
		body, err = c.get(ctx, endpoint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching candles for %s: %w", symbol, err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing candles for %s: %w", symbol, err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 10 {
			return nil, fmt.Errorf("malformed candle row for %s: %d fields", symbol, len(row))
		}
		candles = append(candles, Candle{
			OpenTime:           asInt64(row[0]),
			Open:               parseFloat(row[1]),
			High:               parseFloat(row[2]),
			Low:                parseFloat(row[3]),
			Close:              parseFloat(row[4]),
			Volume:             parseFloat(row[5]),
			CloseTime:          asInt64(row[6]),
			QuoteVolume:        parseFloat(row[7]),
			TakerBuyBaseVolume: parseFloat(row[9]),
		})
	}

	return candles, nil
}

// GetOrderBook fetches an order book depth snapshot
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	endpoint := fmt.Sprintf("%s/api/v3/depth?%s", c.baseURL, params.Encode())

	var body []byte
	err := c.retry.Do(ctx, func() error {
		var err error
		body, err = c.get(ctx, endpoint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching order book for %s: %w", symbol, err)
	}

	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing order book for %s: %w", symbol, err)
	}

	book := &OrderBook{Symbol: symbol}
	for _, level := range raw.Bids {
		if len(level) < 2 {
			continue
		}
		book.Bids = append(book.Bids, PriceLevel{Price: parseFloatStr(level[0]), Qty: parseFloatStr(level[1])})
	}
	for _, level := range raw.Asks {
		if len(level) < 2 {
			continue
		}
		book.Asks = append(book.Asks, PriceLevel{Price: parseFloatStr(level[0]), Qty: parseFloatStr(level[1])})
	}

	return book, nil
}

// Get24hrTickers fetches 24hr ticker data for all symbols
func (c *Client) Get24hrTickers(ctx context.Context) ([]Ticker24hr, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr", c.baseURL)

	var body []byte
	err := c.retry.Do(ctx, func() error {
		var err error
		body, err = c.get(ctx, endpoint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching tickers: %w", err)
	}

	var tickers []Ticker24hr
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("error parsing tickers: %w", err)
	}

	return tickers, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	c.breaker.RecordSuccess()
	return body, nil
}

func parseFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		return parseFloatStr(t)
	case float64:
		return t
	default:
		return 0
	}
}

func parseFloatStr(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func asInt64(v interface{}) int64 {
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return 0
}
