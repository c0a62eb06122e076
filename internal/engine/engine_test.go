package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/cooldown"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/regime"
)

// seriesFromDeltas builds a candle series from an initial close and a list
// of close-to-close deltas. Wicks extend wickWidth beyond the body on both
// sides.
func seriesFromDeltas(start float64, deltas []float64, wickWidth, volume, takerRatio float64) []market.Candle {
	candles := make([]market.Candle, 0, len(deltas)+1)
	candles = append(candles, market.Candle{
		OpenTime:           0,
		Open:               start,
		High:               start + wickWidth,
		Low:                start - wickWidth,
		Close:              start,
		Volume:             volume,
		TakerBuyBaseVolume: volume * takerRatio,
	})

	prev := start
	for i, d := range deltas {
		close := prev + d
		hi, lo := prev, close
		if close > prev {
			hi, lo = close, prev
		}
		candles = append(candles, market.Candle{
			OpenTime:           int64(i+1) * 3600000,
			Open:               prev,
			High:               hi + wickWidth,
			Low:                lo - wickWidth,
			Close:              close,
			Volume:             volume,
			TakerBuyBaseVolume: volume * takerRatio,
		})
		prev = close
	}
	return candles
}

func repeatDeltas(cycle []float64, cycles int) []float64 {
	out := make([]float64, 0, len(cycle)*cycles)
	for i := 0; i < cycles; i++ {
		out = append(out, cycle...)
	}
	return out
}

func steadyTrend(n int, start, step float64) []market.Candle {
	deltas := make([]float64, n-1)
	for i := range deltas {
		deltas[i] = step
	}
	return seriesFromDeltas(start, deltas, 0.2, 100, 0.55)
}

func alternatingRange(n int) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		close := 100.0
		if i%2 == 1 {
			close = 104
		}
		open := 104.0 - (close - 100)
		hi, lo := open, close
		if close > open {
			hi, lo = close, open
		}
		candles[i] = market.Candle{
			OpenTime:           int64(i) * 3600000,
			Open:               open,
			High:               hi + 0.2,
			Low:                lo - 0.2,
			Close:              close,
			Volume:             100,
			TakerBuyBaseVolume: 50,
		}
	}
	return candles
}

// uptrendWorkingSeries builds the 1h series for a trend-following buy: a
// long stepped advance whose last fourteen bars keep RSI in the sweet spot
// and end with three strong consecutive bullish candles, the final one on
// elevated volume.
func uptrendWorkingSeries() []market.Candle {
	deltas := repeatDeltas([]float64{0.4, 0.4, 0.4, -0.6}, 51)
	tail := []float64{-0.5, 0.37, 0.37, 0.37, -0.5, 0.37, 0.37, 0.37, -0.5, 0.37, -0.5, 0.37, 0.37, 0.37}
	deltas = append(deltas, tail...)

	candles := seriesFromDeltas(60, deltas, 0.05, 100, 0.62)
	candles[len(candles)-1].Volume = 300
	candles[len(candles)-1].TakerBuyBaseVolume = 300 * 0.62
	return candles
}

// capitulationSeries builds a flat stretch followed by a steady decline
// ending in a wide-range flush through the lower Bollinger band
func capitulationSeries() []market.Candle {
	deltas := make([]float64, 0, 220)
	for i := 0; i < 199; i++ {
		if i%2 == 0 {
			deltas = append(deltas, 0.2)
		} else {
			deltas = append(deltas, -0.2)
		}
	}
	for i := 0; i < 18; i++ {
		deltas = append(deltas, -0.5)
	}
	deltas = append(deltas, -3.5)

	candles := seriesFromDeltas(100, deltas, 2.5, 100, 0.62)

	// Flush bar: close pinned to its low so the stochastic reads washed out
	last := len(candles) - 1
	candles[last].Low = candles[last].Close - 0.1
	candles[last].High = candles[last].Open + 0.5
	candles[last].Volume = 350
	candles[last].TakerBuyBaseVolume = 350 * 0.62
	return candles
}

// candlesFromCloses builds doji-style candles whose highs and lows track
// the close, so pivot structure follows the close series exactly
func candlesFromCloses(closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:           int64(i) * 3600000,
			Open:               c,
			High:               c + 0.05,
			Low:                c - 0.05,
			Close:              c,
			Volume:             100,
			TakerBuyBaseVolume: 55,
		}
	}
	return candles
}

func newTestEngine(provider market.DataProvider, opts Options) *Engine {
	return New(provider, cooldown.NewMemoryStore(), zerolog.Nop(), opts)
}

func TestEvaluateTrendFollowingBuy(t *testing.T) {
	mock := market.NewMockClient()
	mock.SetCandles("BTCUSDT", "1h", uptrendWorkingSeries())
	mock.SetCandles("BTCUSDT", "4h", steadyTrend(250, 100, 0.5))
	mock.SetCandles("BTCUSDT", "1d", steadyTrend(250, 100, 0.5))
	mock.SetCandles("BTCUSDT", "15m", steadyTrend(150, 100, 0.2))

	eng := newTestEngine(mock, Options{Mode: "BALANCED"})

	signal, err := eng.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("aligned uptrend with momentum, volume and pattern confirmation must emit")
	}

	if signal.Direction != DirectionBuy {
		t.Errorf("direction = %s, want BUY", signal.Direction)
	}
	if signal.Score <= 60 {
		t.Errorf("score = %v, want above the 60 threshold", signal.Score)
	}
	if signal.Regime != regime.TrendingBull {
		t.Errorf("regime = %s, want TRENDING_BULL from the daily timeframe", signal.Regime)
	}
	if signal.StopLoss >= signal.Entry {
		t.Errorf("stop %v must sit below entry %v", signal.StopLoss, signal.Entry)
	}
	if signal.TakeProfit1 <= signal.Entry || signal.TakeProfit2 <= signal.TakeProfit1 {
		t.Errorf("targets %v/%v must stack above entry %v", signal.TakeProfit1, signal.TakeProfit2, signal.Entry)
	}
	if signal.RiskReward < 1.49 || signal.RiskReward > 1.51 {
		t.Errorf("risk:reward = %v, want 1.5", signal.RiskReward)
	}
	if signal.Confidence == "" {
		t.Error("signal must carry a confidence tier")
	}
	if len(signal.Reasons) == 0 {
		t.Error("signal must explain itself")
	}

	// The same setup straight after is inside the cooldown window
	again, err := eng.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != nil {
		t.Error("immediate re-evaluation must be suppressed by the cooldown")
	}
}

func TestEvaluateConsultsOrderBook(t *testing.T) {
	mock := market.NewMockClient()
	mock.SetCandles("BTCUSDT", "1h", uptrendWorkingSeries())
	mock.SetCandles("BTCUSDT", "4h", steadyTrend(250, 100, 0.5))
	mock.SetCandles("BTCUSDT", "1d", steadyTrend(250, 100, 0.5))
	mock.SetCandles("BTCUSDT", "15m", steadyTrend(150, 100, 0.2))
	// Bid-heavy but thin book with a 20bps spread
	mock.SetOrderBook("BTCUSDT", &market.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []market.PriceLevel{{Price: 99.0, Qty: 30}},
		Asks:   []market.PriceLevel{{Price: 99.2, Qty: 5}},
	})

	eng := newTestEngine(mock, Options{Mode: "BALANCED", OrderBookDepth: 5})

	signal, err := eng.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	warned := false
	for _, w := range signal.Warnings {
		if strings.HasPrefix(w, "Spread amplio en el libro") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("warnings %v must flag the wide spread", signal.Warnings)
	}
}

// TestAnalysisDivergenceIgnoresStalePivots pins the divergence scan to the
// recent window: a clean regular-bullish pivot pair more than thirty bars
// back must not surface in the snapshot.
func TestAnalysisDivergenceIgnoresStalePivots(t *testing.T) {
	var deltas []float64
	for i := 0; i < 48; i++ {
		deltas = append(deltas, 0.1)
	}
	deltas = append(deltas, -1.8, -1.0, 0.6, 0.3)
	for i := 0; i < 11; i++ {
		deltas = append(deltas, 0.1)
	}
	deltas = append(deltas, -1.2, -0.9, 0.7, 0.4)
	for i := 0; i < 32; i++ {
		deltas = append(deltas, 0.15)
	}

	closes := []float64{100}
	for _, d := range deltas {
		closes = append(closes, closes[len(closes)-1]+d)
	}
	candles := candlesFromCloses(closes)

	// The fixture must actually contain the pair when the scan reaches back
	// far enough
	if got := indicators.DetectDivergences(candles, 14, 60); len(got) == 0 {
		t.Fatal("fixture must carry a divergence pair beyond the scan window")
	}

	a := BuildAnalysis("TESTUSDT", "1h", candles, nil, nil)
	if len(a.Divergences) != 0 {
		t.Errorf("divergences = %+v, want none from pivots older than the scan window", a.Divergences)
	}
}

func TestEvaluateFlatRangeEmitsNothing(t *testing.T) {
	mock := market.NewMockClient()
	mock.SetCandles("ETHUSDT", "1h", alternatingRange(220))
	mock.SetCandles("ETHUSDT", "4h", alternatingRange(220))
	mock.SetCandles("ETHUSDT", "1d", alternatingRange(220))
	mock.SetCandles("ETHUSDT", "15m", alternatingRange(220))

	eng := newTestEngine(mock, Options{Mode: "BALANCED"})

	signal, err := eng.Evaluate(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal != nil {
		t.Errorf("mid-range price with neutral momentum must not emit, got %+v", signal)
	}
}

func TestEvaluateMeanReversionBuy(t *testing.T) {
	mock := market.NewMockClient()
	mock.SetCandles("SOLUSDT", "1h", capitulationSeries())
	mock.SetCandles("SOLUSDT", "1d", steadyTrend(250, 200, -0.4))
	mock.SetCandles("SOLUSDT", "15m", steadyTrend(150, 90, 0.15))

	eng := newTestEngine(mock, Options{Mode: "BALANCED", ChoppinessThreshold: 45})

	signal, err := eng.Evaluate(context.Background(), "SOLUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("a flush through the lower band with washed-out momentum must emit a reversion buy")
	}

	if signal.Direction != DirectionBuy {
		t.Errorf("direction = %s, want BUY against the stretch", signal.Direction)
	}
	if signal.StopLoss >= signal.Entry {
		t.Errorf("stop %v must sit below entry %v", signal.StopLoss, signal.Entry)
	}

	choppyWarned := false
	for _, w := range signal.Warnings {
		if w == "Mercado en rango, volatilidad lateral elevada" {
			choppyWarned = true
		}
	}
	if !choppyWarned {
		t.Errorf("warnings %v must flag the ranging market", signal.Warnings)
	}

	confluence := false
	for _, r := range signal.Reasons {
		if r == "Confluencia de reversión: RSI extremo en banda de Bollinger" {
			confluence = true
		}
	}
	if !confluence {
		t.Errorf("reasons %v must name the reversion confluence", signal.Reasons)
	}
}

func TestEvaluateConservativeNeutralBias(t *testing.T) {
	// Only the working timeframe is available, and it is ranging: the bias
	// stays neutral, which conservative mode refuses to trade
	mock := market.NewMockClient()
	mock.SetCandles("ADAUSDT", "1h", capitulationSeries())

	eng := newTestEngine(mock, Options{Mode: "CONSERVATIVE"})

	signal, err := eng.Evaluate(context.Background(), "ADAUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal != nil {
		t.Errorf("conservative mode must not trade a neutral bias, got %+v", signal)
	}
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	mock := market.NewMockClient()
	mock.SetCandles("NEWUSDT", "1h", steadyTrend(50, 100, 0.5))

	eng := newTestEngine(mock, Options{Mode: "BALANCED"})

	signal, err := eng.Evaluate(context.Background(), "NEWUSDT")
	if signal != nil {
		t.Errorf("expected no signal, got %+v", signal)
	}
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestEvaluateFetchFailure(t *testing.T) {
	mock := market.NewMockClient()
	mock.FailSymbol("DOWNUSDT", errors.New("exchange unavailable"))

	eng := newTestEngine(mock, Options{Mode: "BALANCED"})

	signal, err := eng.Evaluate(context.Background(), "DOWNUSDT")
	if signal != nil {
		t.Errorf("expected no signal, got %+v", signal)
	}
	if err == nil {
		t.Fatal("a working-timeframe fetch failure must surface")
	}
	if errors.Is(err, ErrInsufficientData) {
		t.Error("a transport failure is not an insufficient-data condition")
	}
}

func TestEvaluateModeOverride(t *testing.T) {
	mock := market.NewMockClient()
	mock.SetCandles("BTCUSDT", "1h", uptrendWorkingSeries())
	mock.SetCandles("BTCUSDT", "4h", steadyTrend(250, 100, 0.5))
	mock.SetCandles("BTCUSDT", "1d", steadyTrend(250, 100, 0.5))
	mock.SetCandles("BTCUSDT", "15m", steadyTrend(150, 100, 0.2))
	// Scalping works from the 15m timeframe
	mock.SetCandles("BTCUSDT", "5m", steadyTrend(150, 100, 0.1))

	eng := newTestEngine(mock, Options{Mode: "BALANCED"})
	if eng.Mode().Mode != ModeBalanced {
		t.Fatalf("default mode = %s, want BALANCED", eng.Mode().Mode)
	}

	// The override fetches the scalping working timeframe, for which only
	// a plain trend series exists, so no error is acceptable either way;
	// what matters is that the preset actually switches.
	scalping := ModeByName("SCALPING")
	mock.SetCandles("BTCUSDT", scalping.WorkingInterval, uptrendWorkingSeries())

	signal, err := eng.EvaluateMode(context.Background(), "BTCUSDT", scalping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal != nil && signal.Mode != ModeScalping {
		t.Errorf("signal mode = %s, want SCALPING", signal.Mode)
	}
}
