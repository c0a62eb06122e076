package indicators

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// ============================================================================
// PIVOT POINTS
// ============================================================================

// PivotPoints holds classic pivot levels derived from a prior period's
// high/low/close
type PivotPoints struct {
	PP float64
	R1 float64
	R2 float64
	S1 float64
	S2 float64
}

// CalculatePivotPoints calculates classic pivot points from the prior
// period (normally the previous daily candle)
func CalculatePivotPoints(prior market.Candle) PivotPoints {
	pp := (prior.High + prior.Low + prior.Close) / 3
	return PivotPoints{
		PP: pp,
		R1: 2*pp - prior.Low,
		R2: pp + (prior.High - prior.Low),
		S1: 2*pp - prior.High,
		S2: pp - (prior.High - prior.Low),
	}
}

// CalculateFibonacciPivots calculates Fibonacci pivot points from the prior
// period
func CalculateFibonacciPivots(prior market.Candle) PivotPoints {
	pp := (prior.High + prior.Low + prior.Close) / 3
	rng := prior.High - prior.Low
	return PivotPoints{
		PP: pp,
		R1: pp + rng*0.382,
		R2: pp + rng*0.618,
		S1: pp - rng*0.382,
		S2: pp - rng*0.618,
	}
}

// NearestLevel returns the pivot level closest to price and its distance
// as a fraction of price
func (p PivotPoints) NearestLevel(price float64) (level float64, distance float64) {
	levels := []float64{p.PP, p.R1, p.R2, p.S1, p.S2}
	level = p.PP
	minDiff := math.MaxFloat64
	for _, l := range levels {
		diff := math.Abs(price - l)
		if diff < minDiff {
			minDiff = diff
			level = l
		}
	}
	if price > 0 {
		distance = minDiff / price
	}
	return level, distance
}

// ============================================================================
// DYNAMIC SUPPORT / RESISTANCE
// ============================================================================

// SwingLevels holds the nearest structural levels around the current price
type SwingLevels struct {
	Resistance     float64 // Nearest swing high above price; 0 when none
	Support        float64 // Nearest swing low below price; 0 when none
	NearResistance bool    // Distance below 1%
	NearSupport    bool
}

// FindSwingLevels scans the trailing lookback window for swing pivots
// (strict extrema with pivotBars neighbors on each side) and returns the
// nearest levels around price
func FindSwingLevels(candles []market.Candle, lookback, pivotBars int) SwingLevels {
	levels := SwingLevels{}
	if len(candles) < 2*pivotBars+1 {
		return levels
	}

	start := len(candles) - lookback
	if start < pivotBars {
		start = pivotBars
	}

	price := candles[len(candles)-1].Close
	minResDiff := math.MaxFloat64
	minSupDiff := math.MaxFloat64

	for i := start; i < len(candles)-pivotBars; i++ {
		isHigh := true
		isLow := true
		for j := i - pivotBars; j <= i+pivotBars; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}

		if isHigh && candles[i].High > price {
			if diff := candles[i].High - price; diff < minResDiff {
				minResDiff = diff
				levels.Resistance = candles[i].High
			}
		}
		if isLow && candles[i].Low < price {
			if diff := price - candles[i].Low; diff < minSupDiff {
				minSupDiff = diff
				levels.Support = candles[i].Low
			}
		}
	}

	if levels.Resistance > 0 && price > 0 {
		levels.NearResistance = (levels.Resistance-price)/price < 0.01
	}
	if levels.Support > 0 && price > 0 {
		levels.NearSupport = (price-levels.Support)/price < 0.01
	}

	return levels
}

// ============================================================================
// ORDER BOOK METRICS
// ============================================================================

// OrderBookMetrics holds spread and depth imbalance at decision time
type OrderBookMetrics struct {
	SpreadBps float64 // Best bid/ask spread in basis points
	Imbalance float64 // (bidNotional - askNotional) / (bidNotional + askNotional), top-N levels
}

// CalculateOrderBookMetrics computes spread and top-N notional imbalance
// from a depth snapshot
func CalculateOrderBookMetrics(book *market.OrderBook, topN int) (OrderBookMetrics, bool) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return OrderBookMetrics{}, false
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price
	if bestBid <= 0 || bestAsk <= bestBid {
		return OrderBookMetrics{}, false
	}

	mid := (bestBid + bestAsk) / 2
	metrics := OrderBookMetrics{
		SpreadBps: (bestAsk - bestBid) / mid * 10000,
	}

	var bidNotional, askNotional float64
	for i := 0; i < topN && i < len(book.Bids); i++ {
		bidNotional += book.Bids[i].Price * book.Bids[i].Qty
	}
	for i := 0; i < topN && i < len(book.Asks); i++ {
		askNotional += book.Asks[i].Price * book.Asks[i].Qty
	}

	if total := bidNotional + askNotional; total > 0 {
		metrics.Imbalance = (bidNotional - askNotional) / total
	}

	return metrics, true
}
