package indicators

import "crypto-signal-engine/internal/market"

// AccumulationResult reports buyer/seller pressure over a trailing window
// using taker buy volume
type AccumulationResult struct {
	BuyRatio     float64 // Taker buy base volume / total volume
	Accumulating bool    // Sustained buyer dominance
	Distributing bool    // Sustained seller dominance
	Strength     float64 // 0-1, how far the ratio sits from neutral
}

// DetectAccumulation measures taker buy pressure over the trailing window.
// A ratio above 0.55 with flat-or-rising price flags accumulation; below
// 0.45 flags distribution.
func DetectAccumulation(candles []market.Candle, lookback int) (AccumulationResult, bool) {
	if lookback <= 0 || len(candles) < lookback {
		return AccumulationResult{}, false
	}

	window := candles[len(candles)-lookback:]
	var buyVolume, totalVolume float64
	for _, c := range window {
		buyVolume += c.TakerBuyBaseVolume
		totalVolume += c.Volume
	}
	if totalVolume == 0 {
		return AccumulationResult{}, false
	}

	result := AccumulationResult{BuyRatio: buyVolume / totalVolume}
	priceRising := window[len(window)-1].Close >= window[0].Close*0.99

	switch {
	case result.BuyRatio > 0.55 && priceRising:
		result.Accumulating = true
		result.Strength = clamp((result.BuyRatio-0.5)/0.2, 0, 1)
	case result.BuyRatio < 0.45 && !priceRising:
		result.Distributing = true
		result.Strength = clamp((0.5-result.BuyRatio)/0.2, 0, 1)
	}

	return result, true
}
