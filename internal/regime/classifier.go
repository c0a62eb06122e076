package regime

import (
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
)

// Label classifies a timeframe's price behavior
type Label string

const (
	TrendingBull Label = "TRENDING_BULL"
	TrendingBear Label = "TRENDING_BEAR"
	Ranging      Label = "RANGING"
	Unknown      Label = "UNKNOWN"
)

// Trending reports whether the label is directional
func (l Label) Trending() bool {
	return l == TrendingBull || l == TrendingBear
}

// Snapshot is one timeframe's regime classification with the indicator
// values that produced it
type Snapshot struct {
	Label      Label
	ADX        float64
	Choppiness float64
	EMA20      float64
	EMA50      float64
	SMA200     float64
}

// Classifier labels a single timeframe. Cross-timeframe reconciliation
// belongs to the aggregator, not here.
type Classifier struct {
	choppinessThreshold float64
	weakADX             float64
}

// NewClassifier creates a regime classifier. A choppiness reading above
// the threshold labels the market RANGING regardless of EMA ordering.
func NewClassifier(choppinessThreshold float64) *Classifier {
	if choppinessThreshold <= 0 {
		choppinessThreshold = 60
	}
	return &Classifier{
		choppinessThreshold: choppinessThreshold,
		weakADX:             20,
	}
}

// Classify labels one timeframe from its candle series. Trend direction
// comes from EMA20 vs EMA50 ordering, with price vs SMA200 as a fallback
// when the longer EMA cannot be computed; strength comes from ADX and
// choppiness.
func (c *Classifier) Classify(candles []market.Candle) Snapshot {
	snap := Snapshot{Label: Unknown}

	closes := indicators.Closes(candles)

	ema20, ok20 := indicators.CalculateEMA(closes, 20)
	ema50, ok50 := indicators.CalculateEMA(closes, 50)
	sma200, ok200 := indicators.CalculateSMA(closes, 200)
	snap.EMA20 = ema20
	snap.EMA50 = ema50
	snap.SMA200 = sma200

	if adx, ok := indicators.CalculateADX(candles, 14); ok {
		snap.ADX = adx.ADX
	}
	if chop, ok := indicators.CalculateChoppiness(candles, 14); ok {
		snap.Choppiness = chop
	}

	bullish := false
	bearish := false
	switch {
	case ok20 && ok50:
		bullish = ema20 > ema50
		bearish = ema20 < ema50
	case ok200:
		price := closes[len(closes)-1]
		bullish = price > sma200
		bearish = price < sma200
	default:
		return snap
	}

	if snap.Choppiness > c.choppinessThreshold || snap.ADX < c.weakADX {
		snap.Label = Ranging
		return snap
	}

	if bullish {
		snap.Label = TrendingBull
	} else if bearish {
		snap.Label = TrendingBear
	} else {
		snap.Label = Ranging
	}

	return snap
}
