package market

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory data provider used in tests and mock mode.
// Candle series are keyed by symbol and interval.
type MockClient struct {
	mu      sync.RWMutex
	candles map[string][]Candle
	books   map[string]*OrderBook
	tickers []Ticker24hr

	// Errors to inject per symbol and for the ticker endpoint
	failSymbols map[string]error
	failTickers error
}

// NewMockClient creates an empty mock provider
func NewMockClient() *MockClient {
	return &MockClient{
		candles:     make(map[string][]Candle),
		books:       make(map[string]*OrderBook),
		failSymbols: make(map[string]error),
	}
}

func candleKey(symbol, interval string) string {
	return symbol + ":" + interval
}

// SetCandles registers a candle series for a symbol and interval
func (m *MockClient) SetCandles(symbol, interval string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[candleKey(symbol, interval)] = candles
}

// SetOrderBook registers an order book snapshot for a symbol
func (m *MockClient) SetOrderBook(symbol string, book *OrderBook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[symbol] = book
}

// SetTickers registers the 24h ticker universe
func (m *MockClient) SetTickers(tickers []Ticker24hr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers = tickers
}

// FailSymbol makes every fetch for the symbol return err
func (m *MockClient) FailSymbol(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSymbols[symbol] = err
}

// FailTickers makes Get24hrTickers return err until called again with nil
func (m *MockClient) FailTickers(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTickers = err
}

// GetCandles returns the registered series, trimmed to limit
func (m *MockClient) GetCandles(_ context.Context, symbol, interval string, limit int) ([]Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.failSymbols[symbol]; ok {
		return nil, err
	}

	candles, ok := m.candles[candleKey(symbol, interval)]
	if !ok {
		return nil, fmt.Errorf("no mock candles for %s %s", symbol, interval)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// GetOrderBook returns the registered snapshot
func (m *MockClient) GetOrderBook(_ context.Context, symbol string, _ int) (*OrderBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.failSymbols[symbol]; ok {
		return nil, err
	}
	if book, ok := m.books[symbol]; ok {
		return book, nil
	}
	return &OrderBook{Symbol: symbol}, nil
}

// Get24hrTickers returns the registered universe
func (m *MockClient) Get24hrTickers(_ context.Context) ([]Ticker24hr, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failTickers != nil {
		return nil, m.failTickers
	}
	return m.tickers, nil
}
