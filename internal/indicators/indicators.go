package indicators

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// All indicator functions are pure transforms over ordered input windows.
// When the window is shorter than the indicator requires they report
// ok=false (or NaN positions in series form) instead of failing hard;
// callers check before use.

// Closes extracts the close series from a candle sequence
func Closes(candles []market.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates the Simple Moving Average over the trailing window
func CalculateSMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// CalculateEMA calculates the Exponential Moving Average, seeded with the
// simple average of the first period values
func CalculateEMA(values []float64, period int) (float64, bool) {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0, false
	}
	last := series[len(series)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return last, true
}

// EMASeries produces an aligned EMA sequence with NaN before the seed
// index. Alignment matters: MACD computes an EMA of EMA-differences over a
// compacted sub-series and needs positions to line up with the input.
func EMASeries(values []float64, period int) []float64 {
	series := make([]float64, len(values))
	for i := range series {
		series[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return series
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	series[period-1] = ema

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*k + ema
		series[i] = ema
	}
	return series
}

// ============================================================================
// RSI
// ============================================================================

// CalculateRSI calculates the Relative Strength Index as the simple average
// gain/loss over the trailing period deltas. RSI is 100 when the window has
// no losses.
func CalculateRSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	gains := 0.0
	losses := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// RSISeries computes RSI at every index with the same simple trailing
// average as CalculateRSI, using an O(n) rolling window. Positions before
// the first full window are NaN. Divergence scanning recomputes RSI at
// every bar and needs this instead of per-index recomputation.
func RSISeries(closes []float64, period int) []float64 {
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return series
	}

	gainSum := 0.0
	lossSum := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}
	series[period] = rsiFromSums(gainSum, lossSum, period)

	for i := period + 1; i < len(closes); i++ {
		out := closes[i-period] - closes[i-period-1]
		if out > 0 {
			gainSum -= out
		} else {
			lossSum -= -out
		}
		in := closes[i] - closes[i-1]
		if in > 0 {
			gainSum += in
		} else {
			lossSum += -in
		}
		series[i] = rsiFromSums(gainSum, lossSum, period)
	}
	return series
}

func rsiFromSums(gainSum, lossSum float64, period int) float64 {
	avgLoss := lossSum / float64(period)
	if avgLoss <= 0 {
		return 100
	}
	avgGain := gainSum / float64(period)
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDVariant selects between the canonical signal-line MACD and the
// simplified low-data form (no signal line, histogram equals the line).
// The scoring path always uses the canonical variant; the simplified form
// exists for callers working with short windows.
type MACDVariant int

const (
	MACDSignalLine MACDVariant = iota
	MACDSimplified
)

// MACDResult holds MACD indicator values
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD computes MACD from the aligned fast/slow EMA series, with
// the signal line as an EMA of the compacted MACD line.
func CalculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int, variant ...MACDVariant) (MACDResult, bool) {
	v := MACDSignalLine
	if len(variant) > 0 {
		v = variant[0]
	}

	if len(closes) < slowPeriod {
		return MACDResult{}, false
	}

	fastSeries := EMASeries(closes, fastPeriod)
	slowSeries := EMASeries(closes, slowPeriod)

	// MACD line exists wherever both EMAs do; compact it for the signal EMA
	line := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		line = append(line, fastSeries[i]-slowSeries[i])
	}

	last := line[len(line)-1]

	if v == MACDSimplified {
		return MACDResult{Line: last, Signal: 0, Histogram: last}, true
	}

	if len(line) < signalPeriod {
		return MACDResult{}, false
	}

	signal, ok := CalculateEMA(line, signalPeriod)
	if !ok {
		return MACDResult{}, false
	}

	return MACDResult{
		Line:      last,
		Signal:    signal,
		Histogram: last - signal,
	}, true
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds Bollinger Bands values
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollinger calculates Bollinger Bands with population standard
// deviation over the trailing window
func CalculateBollinger(closes []float64, period int, stdDevMult float64) (BollingerResult, bool) {
	middle, ok := CalculateSMA(closes, period)
	if !ok {
		return BollingerResult{}, false
	}

	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerResult{
		Upper:  middle + stdDev*stdDevMult,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMult,
	}, true
}

// ============================================================================
// ATR
// ============================================================================

func trueRange(current, previous market.Candle) float64 {
	return math.Max(current.High-current.Low,
		math.Max(math.Abs(current.High-previous.Close), math.Abs(current.Low-previous.Close)))
}

// CalculateATR calculates the Average True Range as a simple trailing
// average of true range
func CalculateATR(candles []market.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	trSum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		trSum += trueRange(candles[i], candles[i-1])
	}
	return trSum / float64(period), true
}

// WilderATRSeries computes the Wilder-smoothed ATR at every index: seeded
// with the average true range over the first period bars, then
// atr = (atr*(period-1) + tr) / period. Positions before the seed are NaN.
func WilderATRSeries(candles []market.Candle, period int) []float64 {
	series := make([]float64, len(candles))
	for i := range series {
		series[i] = math.NaN()
	}
	if period <= 0 || len(candles) < period+1 {
		return series
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(candles[i], candles[i-1])
	}
	atr := sum / float64(period)
	series[period] = atr

	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRange(candles[i], candles[i-1])) / float64(period)
		series[i] = atr
	}
	return series
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// StochasticResult holds smoothed %K and %D for the current and previous
// bar; cross detection compares the two orderings.
type StochasticResult struct {
	K     float64
	D     float64
	PrevK float64
	PrevD float64
}

// BullishCross reports a %K/%D bullish crossover on the latest bar
func (s StochasticResult) BullishCross() bool {
	return s.PrevK <= s.PrevD && s.K > s.D
}

// BearishCross reports a %K/%D bearish crossover on the latest bar
func (s StochasticResult) BearishCross() bool {
	return s.PrevK >= s.PrevD && s.K < s.D
}

// CalculateStochastic calculates the Stochastic Oscillator. Raw %K comes
// from the rolling high/low window, %K is smoothed by smoothK, and %D is
// the SMA of smoothed %K over dPeriod.
func CalculateStochastic(candles []market.Candle, kPeriod, dPeriod, smoothK int) (StochasticResult, bool) {
	needed := kPeriod + smoothK + dPeriod
	if len(candles) < needed {
		return StochasticResult{}, false
	}

	rawK := make([]float64, 0, len(candles)-kPeriod+1)
	for i := kPeriod - 1; i < len(candles); i++ {
		highest := candles[i-kPeriod+1].High
		lowest := candles[i-kPeriod+1].Low
		for j := i - kPeriod + 2; j <= i; j++ {
			if candles[j].High > highest {
				highest = candles[j].High
			}
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
		}
		k := 50.0
		if highest != lowest {
			k = (candles[i].Close - lowest) / (highest - lowest) * 100
		}
		rawK = append(rawK, k)
	}

	smoothed := make([]float64, 0, len(rawK)-smoothK+1)
	for i := smoothK - 1; i < len(rawK); i++ {
		sum := 0.0
		for j := i - smoothK + 1; j <= i; j++ {
			sum += rawK[j]
		}
		smoothed = append(smoothed, sum/float64(smoothK))
	}

	if len(smoothed) < dPeriod+1 {
		return StochasticResult{}, false
	}

	dOf := func(end int) float64 {
		sum := 0.0
		for j := end - dPeriod + 1; j <= end; j++ {
			sum += smoothed[j]
		}
		return sum / float64(dPeriod)
	}

	last := len(smoothed) - 1
	return StochasticResult{
		K:     smoothed[last],
		D:     dOf(last),
		PrevK: smoothed[last-1],
		PrevD: dOf(last - 1),
	}, true
}

// ============================================================================
// CCI
// ============================================================================

func typicalPrice(c market.Candle) float64 {
	return (c.High + c.Low + c.Close) / 3
}

// CalculateCCI calculates the Commodity Channel Index. Undefined when the
// mean absolute deviation is zero.
func CalculateCCI(candles []market.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	window := candles[len(candles)-period:]
	sum := 0.0
	for _, c := range window {
		sum += typicalPrice(c)
	}
	mean := sum / float64(period)

	dev := 0.0
	for _, c := range window {
		dev += math.Abs(typicalPrice(c) - mean)
	}
	meanDev := dev / float64(period)
	if meanDev == 0 {
		return 0, false
	}

	return (typicalPrice(window[period-1]) - mean) / (0.015 * meanDev), true
}

// ============================================================================
// ADX
// ============================================================================

// ADXResult holds ADX and directional index values
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// CalculateADX calculates the Average Directional Index with
// Wilder-smoothed TR/DM and ADX as the SMA of DX over the period
func CalculateADX(candles []market.Candle, period int) (ADXResult, bool) {
	// Needs period bars to seed smoothing plus period DX values
	if period <= 0 || len(candles) < 2*period+1 {
		return ADXResult{}, false
	}

	n := len(candles)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// Wilder smoothing: seed with the sum over the first period bars,
	// then s = s - s/period + x
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	var dxValues []float64
	var plusDI, minusDI float64

	computeDX := func() float64 {
		if smTR == 0 {
			return 0
		}
		plusDI = smPlus / smTR * 100
		minusDI = smMinus / smTR * 100
		if plusDI+minusDI == 0 {
			return 0
		}
		return math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
	}

	dxValues = append(dxValues, computeDX())
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dxValues = append(dxValues, computeDX())
	}

	adx, ok := CalculateSMA(dxValues, period)
	if !ok {
		return ADXResult{}, false
	}

	return ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, true
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateVWAP calculates the volume-weighted average price over the
// trailing lookback window
func CalculateVWAP(candles []market.Candle, lookback int) (float64, bool) {
	if lookback <= 0 || len(candles) < lookback {
		return 0, false
	}

	var pvSum, vSum float64
	for i := len(candles) - lookback; i < len(candles); i++ {
		pvSum += typicalPrice(candles[i]) * candles[i].Volume
		vSum += candles[i].Volume
	}
	if vSum == 0 {
		return 0, false
	}
	return pvSum / vSum, true
}

// CalculateVolumeSMA calculates average volume over the trailing period
func CalculateVolumeSMA(candles []market.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period), true
}

// IsVolumeSpike checks if the latest volume exceeds the trailing average
// by the given multiplier
func IsVolumeSpike(candles []market.Candle, period int, multiplier float64) bool {
	if len(candles) < period+1 {
		return false
	}
	avg, ok := CalculateVolumeSMA(candles[:len(candles)-1], period)
	if !ok || avg == 0 {
		return false
	}
	return candles[len(candles)-1].Volume >= avg*multiplier
}

// ============================================================================
// CHOPPINESS
// ============================================================================

// CalculateChoppiness calculates the Choppiness Index (0-100). High values
// mean range-bound price action, low values mean directional movement.
func CalculateChoppiness(candles []market.Candle, period int) (float64, bool) {
	if period <= 1 || len(candles) < period+1 {
		return 0, false
	}

	window := candles[len(candles)-period:]
	trSum := 0.0
	highest := window[0].High
	lowest := window[0].Low

	for i := 0; i < period; i++ {
		idx := len(candles) - period + i
		trSum += trueRange(candles[idx], candles[idx-1])
		if window[i].High > highest {
			highest = window[i].High
		}
		if window[i].Low < lowest {
			lowest = window[i].Low
		}
	}

	if highest == lowest || trSum == 0 {
		return 0, false
	}

	chop := 100 * math.Log10(trSum/(highest-lowest)) / math.Log10(float64(period))
	return clamp(chop, 0, 100), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
