package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// KlineEvent is a single streamed candle update. Final is true when the
// candle has closed.
type KlineEvent struct {
	Symbol   string
	Interval string
	Candle   Candle
	Final    bool
}

// KlineHandler receives streamed kline events
type KlineHandler func(event KlineEvent)

// KlineStream maintains a combined websocket kline subscription for a set
// of symbols and keeps downstream candle caches fresh between REST fetches.
type KlineStream struct {
	wsBaseURL string
	interval  string
	handler   KlineHandler
	logger    zerolog.Logger

	mu      sync.RWMutex
	symbols []string
	conn    *websocket.Conn
}

// NewKlineStream creates a kline stream for the given interval
func NewKlineStream(wsBaseURL, interval string, handler KlineHandler, logger zerolog.Logger) *KlineStream {
	return &KlineStream{
		wsBaseURL: wsBaseURL,
		interval:  interval,
		handler:   handler,
		logger:    logger,
	}
}

// SetSymbols replaces the subscribed symbol set. Takes effect on the next
// (re)connect.
func (s *KlineStream) SetSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append([]string(nil), symbols...)
}

// Run connects and reads events until the context is cancelled,
// reconnecting with a fixed delay on failure.
func (s *KlineStream) Run(ctx context.Context) {
	for {
		if err := s.connectAndRead(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("kline stream disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *KlineStream) connectAndRead(ctx context.Context) error {
	s.mu.RLock()
	symbols := s.symbols
	s.mu.RUnlock()

	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to subscribe")
	}

	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.interval))
	}

	endpoint := fmt.Sprintf("%s/%s", s.wsBaseURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info().Int("symbols", len(symbols)).Str("interval", s.interval).Msg("kline stream connected")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		s.dispatch(message)
	}
}

// klinePayload mirrors the exchange kline event wire format
type klinePayload struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime           int64  `json:"t"`
		CloseTime          int64  `json:"T"`
		Interval           string `json:"i"`
		Open               string `json:"o"`
		Close              string `json:"c"`
		High               string `json:"h"`
		Low                string `json:"l"`
		Volume             string `json:"v"`
		QuoteVolume        string `json:"q"`
		TakerBuyBaseVolume string `json:"V"`
		Final              bool   `json:"x"`
	} `json:"k"`
}

func (s *KlineStream) dispatch(message []byte) {
	var payload klinePayload
	if err := json.Unmarshal(message, &payload); err != nil || payload.EventType != "kline" {
		return
	}

	event := KlineEvent{
		Symbol:   payload.Symbol,
		Interval: payload.Kline.Interval,
		Final:    payload.Kline.Final,
		Candle: Candle{
			OpenTime:           payload.Kline.OpenTime,
			CloseTime:          payload.Kline.CloseTime,
			Open:               parseFloatStr(payload.Kline.Open),
			High:               parseFloatStr(payload.Kline.High),
			Low:                parseFloatStr(payload.Kline.Low),
			Close:              parseFloatStr(payload.Kline.Close),
			Volume:             parseFloatStr(payload.Kline.Volume),
			QuoteVolume:        parseFloatStr(payload.Kline.QuoteVolume),
			TakerBuyBaseVolume: parseFloatStr(payload.Kline.TakerBuyBaseVolume),
		},
	}

	if s.handler != nil {
		s.handler(event)
	}
}
