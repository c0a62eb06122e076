package indicators

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// SwingBands is the output of the swing-structure band tracker: adaptive
// high/low bands with per-bar stability counters. Band values are NaN on
// bars where the adaptive average jumped more than the reference ATR.
type SwingBands struct {
	Upper      []float64
	Lower      []float64
	StabUpper  []int
	StabLower  []int
	BuySignals []bool
}

// SwingBandConfig holds swing-structure band parameters
type SwingBandConfig struct {
	ATRPeriod    int // Reference Wilder ATR period
	MinStability int // Bars of stability required before the buy signal can fire
}

// DefaultSwingBandConfig returns the standard configuration
func DefaultSwingBandConfig() SwingBandConfig {
	return SwingBandConfig{ATRPeriod: 200, MinStability: 15}
}

// ComputeSwingBands runs the stateful band recurrence over the whole
// candle history. The tracker carries bars-since-swing counters and two
// adaptive moving averages across bars, so it must scan left to right; it
// cannot be expressed as a trailing-window function.
//
// Per bar: the bars-since-swing-high counter resets to 1 when the previous
// bar was the rolling high and the current bar is lower (mirrored for
// lows); each adaptive average spans exactly that many bars. When an
// average moves more than the reference ATR in one bar the band is
// withheld and its stability counter resets; otherwise the counter
// increments and the band equals the average. A buy fires when price
// crosses up through a previously valid lower band whose stability
// exceeds MinStability.
func ComputeSwingBands(candles []market.Candle, cfg SwingBandConfig) SwingBands {
	n := len(candles)
	result := SwingBands{
		Upper:      make([]float64, n),
		Lower:      make([]float64, n),
		StabUpper:  make([]int, n),
		StabLower:  make([]int, n),
		BuySignals: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		result.Upper[i] = math.NaN()
		result.Lower[i] = math.NaN()
	}
	if n < 2 {
		return result
	}

	atr := WilderATRSeries(candles, cfg.ATRPeriod)

	lh := 1 // Bars since last swing high
	ll := 1 // Bars since last swing low

	prevMaHi := math.NaN()
	prevMaLo := math.NaN()
	stabHi := 0
	stabLo := 0

	for i := 1; i < n; i++ {
		// Swing detection: previous bar was the rolling extreme of the
		// current counter window and this bar pulls away from it
		if isRollingHigh(candles, i-1, lh) && candles[i].High < candles[i-1].High {
			lh = 1
		} else {
			lh++
		}
		if isRollingLow(candles, i-1, ll) && candles[i].Low > candles[i-1].Low {
			ll = 1
		} else {
			ll++
		}

		maHi := trailingMeanHigh(candles, i, lh)
		maLo := trailingMeanLow(candles, i, ll)

		// Stability gate: a jump beyond the reference ATR marks the band
		// unstable for this bar
		if math.IsNaN(atr[i]) || math.IsNaN(prevMaHi) || math.Abs(maHi-prevMaHi) > atr[i] {
			stabHi = 0
		} else {
			stabHi++
			result.Upper[i] = maHi
		}
		if math.IsNaN(atr[i]) || math.IsNaN(prevMaLo) || math.Abs(maLo-prevMaLo) > atr[i] {
			stabLo = 0
		} else {
			stabLo++
			result.Lower[i] = maLo
		}

		result.StabUpper[i] = stabHi
		result.StabLower[i] = stabLo

		if stabLo > cfg.MinStability &&
			!math.IsNaN(result.Lower[i]) && !math.IsNaN(result.Lower[i-1]) &&
			candles[i-1].Close < result.Lower[i-1] && candles[i].Close > result.Lower[i] {
			result.BuySignals[i] = true
		}

		prevMaHi = maHi
		prevMaLo = maLo
	}

	return result
}

// BuySignalAt reports whether the latest bar fired a swing-band buy
func (b SwingBands) BuySignalAt(i int) bool {
	return i >= 0 && i < len(b.BuySignals) && b.BuySignals[i]
}

func isRollingHigh(candles []market.Candle, i, window int) bool {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	for j := start; j <= i; j++ {
		if candles[j].High > candles[i].High {
			return false
		}
	}
	return true
}

func isRollingLow(candles []market.Candle, i, window int) bool {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	for j := start; j <= i; j++ {
		if candles[j].Low < candles[i].Low {
			return false
		}
	}
	return true
}

func trailingMeanHigh(candles []market.Candle, i, window int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for j := start; j <= i; j++ {
		sum += candles[j].High
	}
	return sum / float64(i-start+1)
}

func trailingMeanLow(candles []market.Candle, i, window int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for j := start; j <= i; j++ {
		sum += candles[j].Low
	}
	return sum / float64(i-start+1)
}
