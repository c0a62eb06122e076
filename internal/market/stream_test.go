package market

import (
	"testing"

	"github.com/rs/zerolog"
)

const klineEventJSON = `{
	"e": "kline",
	"s": "BTCUSDT",
	"k": {
		"t": 1700000000000,
		"T": 1700003599999,
		"i": "1h",
		"o": "100.0",
		"c": "101.5",
		"h": "102.0",
		"l": "99.5",
		"v": "1200.0",
		"q": "121800.0",
		"V": "700.0",
		"x": true
	}
}`

func TestStreamDispatch(t *testing.T) {
	var got *KlineEvent
	s := NewKlineStream("wss://example", "1h", func(event KlineEvent) {
		got = &event
	}, zerolog.Nop())

	s.dispatch([]byte(klineEventJSON))

	if got == nil {
		t.Fatal("handler was not invoked")
	}
	if got.Symbol != "BTCUSDT" || got.Interval != "1h" {
		t.Errorf("event identity = %s/%s", got.Symbol, got.Interval)
	}
	if !got.Final {
		t.Error("closed candle must be marked final")
	}
	c := got.Candle
	if c.Open != 100.0 || c.Close != 101.5 || c.High != 102.0 || c.Low != 99.5 {
		t.Errorf("OHLC = %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 1200.0 || c.TakerBuyBaseVolume != 700.0 {
		t.Errorf("volume = %v, taker = %v", c.Volume, c.TakerBuyBaseVolume)
	}
}

func TestStreamDispatchIgnoresOtherEvents(t *testing.T) {
	called := false
	s := NewKlineStream("wss://example", "1h", func(KlineEvent) {
		called = true
	}, zerolog.Nop())

	s.dispatch([]byte(`{"e":"trade","s":"BTCUSDT"}`))
	s.dispatch([]byte(`not json`))

	if called {
		t.Error("non-kline payloads must be dropped")
	}
}
