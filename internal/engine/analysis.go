package engine

import (
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/patterns"
	"crypto-signal-engine/internal/regime"
)

// Analysis is the full indicator snapshot for one symbol on one timeframe.
// Every indicator is optional; Has* flags mark what could be computed from
// the available history.
type Analysis struct {
	Symbol   string
	Interval string
	Candles  []market.Candle
	Price    float64

	RSI     float64
	PrevRSI float64
	HasRSI  bool

	EMA9    float64
	EMA20   float64
	EMA50   float64
	EMA200  float64
	SMA200  float64
	HasEMAs bool // EMA9/EMA20/EMA50
	Has200  bool // EMA200 and SMA200

	MACD    indicators.MACDResult
	HasMACD bool

	Bollinger    indicators.BollingerResult
	HasBollinger bool

	ATR    float64
	HasATR bool

	Stochastic    indicators.StochasticResult
	HasStochastic bool

	CCI    float64
	HasCCI bool

	ADX    indicators.ADXResult
	HasADX bool

	VWAP    float64
	HasVWAP bool

	VolumeSpike bool

	Choppiness    float64
	HasChoppiness bool

	Accumulation    indicators.AccumulationResult
	HasAccumulation bool

	Swing     indicators.SwingLevels
	Pivots    indicators.PivotPoints
	FibPivots indicators.PivotPoints
	HasPivots bool

	Patterns    []patterns.Match
	Divergences []indicators.Divergence
	Bands       indicators.SwingBands

	Regime regime.Snapshot
}

// Standard indicator parameters shared across timeframes
const (
	rsiPeriod        = 14
	atrPeriod        = 14
	adxPeriod        = 14
	cciPeriod        = 20
	bollingerPeriod  = 20
	bollingerStdDev  = 2.0
	vwapLookback     = 50
	volumePeriod     = 20
	volumeSpikeMult  = 2.0
	swingLookback    = 60
	swingPivotBars   = 3
	divergenceWindow = 30
	accumLookback    = 20
)

// BuildAnalysis computes the indicator snapshot for one timeframe. It
// never fails; missing history just leaves the corresponding Has* flags
// unset.
func BuildAnalysis(symbol, interval string, candles []market.Candle, classifier *regime.Classifier, detector *patterns.Detector) *Analysis {
	a := &Analysis{
		Symbol:   symbol,
		Interval: interval,
		Candles:  candles,
	}
	if len(candles) == 0 {
		return a
	}

	closes := indicators.Closes(candles)
	a.Price = closes[len(closes)-1]

	a.RSI, a.HasRSI = indicators.CalculateRSI(closes, rsiPeriod)
	if a.HasRSI {
		if prev, ok := indicators.CalculateRSI(closes[:len(closes)-1], rsiPeriod); ok {
			a.PrevRSI = prev
		} else {
			a.PrevRSI = a.RSI
		}
	}

	ema9, ok9 := indicators.CalculateEMA(closes, 9)
	ema20, ok20 := indicators.CalculateEMA(closes, 20)
	ema50, ok50 := indicators.CalculateEMA(closes, 50)
	a.EMA9, a.EMA20, a.EMA50 = ema9, ema20, ema50
	a.HasEMAs = ok9 && ok20 && ok50

	ema200, okE200 := indicators.CalculateEMA(closes, 200)
	sma200, okS200 := indicators.CalculateSMA(closes, 200)
	a.EMA200, a.SMA200 = ema200, sma200
	a.Has200 = okE200 && okS200

	a.MACD, a.HasMACD = indicators.CalculateMACD(closes, 12, 26, 9)
	a.Bollinger, a.HasBollinger = indicators.CalculateBollinger(closes, bollingerPeriod, bollingerStdDev)
	a.ATR, a.HasATR = indicators.CalculateATR(candles, atrPeriod)
	a.Stochastic, a.HasStochastic = indicators.CalculateStochastic(candles, 14, 3, 3)
	a.CCI, a.HasCCI = indicators.CalculateCCI(candles, cciPeriod)
	a.ADX, a.HasADX = indicators.CalculateADX(candles, adxPeriod)
	a.VWAP, a.HasVWAP = indicators.CalculateVWAP(candles, vwapLookback)
	a.VolumeSpike = indicators.IsVolumeSpike(candles, volumePeriod, volumeSpikeMult)
	a.Choppiness, a.HasChoppiness = indicators.CalculateChoppiness(candles, 14)
	a.Accumulation, a.HasAccumulation = indicators.DetectAccumulation(candles, accumLookback)

	a.Swing = indicators.FindSwingLevels(candles, swingLookback, swingPivotBars)
	if len(candles) >= 2 {
		prior := candles[len(candles)-2]
		a.Pivots = indicators.CalculatePivotPoints(prior)
		a.FibPivots = indicators.CalculateFibonacciPivots(prior)
		a.HasPivots = true
	}

	if detector != nil {
		a.Patterns = detector.Detect(candles)
	}
	a.Divergences = indicators.DetectDivergences(candles, rsiPeriod, divergenceWindow)
	a.Bands = indicators.ComputeSwingBands(candles, indicators.DefaultSwingBandConfig())

	if classifier != nil {
		a.Regime = classifier.Classify(candles)
	}

	return a
}

// CorePrerequisites reports whether the snapshot carries the indicators
// the scoring pipeline cannot run without
func (a *Analysis) CorePrerequisites() bool {
	return a.HasRSI && a.HasMACD && a.HasBollinger && a.Has200
}

// BandBuyRecently reports a swing-band buy trigger within the last few bars
func (a *Analysis) BandBuyRecently(bars int) bool {
	n := len(a.Bands.BuySignals)
	for i := n - 1; i >= 0 && i >= n-bars; i-- {
		if a.Bands.BuySignals[i] {
			return true
		}
	}
	return false
}
