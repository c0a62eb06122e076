package market

import "context"

// Candle represents a single OHLCV candle. Sequences are ordered by
// ascending open time and are never mutated after fetch.
type Candle struct {
	OpenTime           int64   `json:"open_time"`
	Open               float64 `json:"open"`
	High               float64 `json:"high"`
	Low                float64 `json:"low"`
	Close              float64 `json:"close"`
	Volume             float64 `json:"volume"`
	CloseTime          int64   `json:"close_time"`
	QuoteVolume        float64 `json:"quote_volume"`
	TakerBuyBaseVolume float64 `json:"taker_buy_base_volume"`
}

// PriceLevel is a single order book level
type PriceLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// OrderBook is a depth snapshot. Bids are ordered by descending price,
// asks by ascending price. Snapshots are consumed at decision time and
// never retained.
type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// Ticker24hr represents 24hr ticker price change statistics
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
}

// DataProvider is the market data boundary consumed by the engine and
// scanner. Both Client and MockClient implement it.
type DataProvider interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	Get24hrTickers(ctx context.Context) ([]Ticker24hr, error)
}

var _ DataProvider = (*Client)(nil)
var _ DataProvider = (*MockClient)(nil)
