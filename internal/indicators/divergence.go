package indicators

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// DivergenceType classifies a price/RSI divergence
type DivergenceType string

const (
	RegularBullish DivergenceType = "regular_bullish"
	RegularBearish DivergenceType = "regular_bearish"
	HiddenBullish  DivergenceType = "hidden_bullish"
	HiddenBearish  DivergenceType = "hidden_bearish"
)

// Bullish reports whether the divergence favors longs
func (t DivergenceType) Bullish() bool {
	return t == RegularBullish || t == HiddenBullish
}

// Divergence is a detected price/RSI divergence between two confirmed
// pivots. Strength is the absolute RSI difference between them.
type Divergence struct {
	Type      DivergenceType
	Strength  float64
	FirstBar  int // Index of the older pivot
	SecondBar int // Index of the newer pivot
}

const (
	minPivotSeparation = 5
	maxPivotSeparation = 40
	pivotAlignment     = 2 // Max index drift between price and RSI pivots
	pivotNeighbors     = 2 // Bars required on each side of a pivot
)

// DetectDivergences scans the trailing lookback window for regular and
// hidden divergences between price and RSI. Pivots are strict extrema with
// two confirming bars on each side, found independently on the price and
// RSI series and then matched by index.
func DetectDivergences(candles []market.Candle, rsiPeriod, lookback int) []Divergence {
	if len(candles) < rsiPeriod+2*pivotNeighbors+minPivotSeparation {
		return nil
	}

	rsi := RSISeries(Closes(candles), rsiPeriod)

	lows := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	for i, c := range candles {
		lows[i] = c.Low
		highs[i] = c.High
	}

	start := len(candles) - lookback
	if start < rsiPeriod+pivotNeighbors {
		start = rsiPeriod + pivotNeighbors
	}

	priceLowPivots := findPivots(lows, start, true)
	priceHighPivots := findPivots(highs, start, false)
	rsiLowPivots := findPivots(rsi, start, true)
	rsiHighPivots := findPivots(rsi, start, false)

	var results []Divergence

	if d, ok := classifyLowPair(priceLowPivots, rsiLowPivots, lows, rsi); ok {
		results = append(results, d)
	}
	if d, ok := classifyHighPair(priceHighPivots, rsiHighPivots, highs, rsi); ok {
		results = append(results, d)
	}

	return results
}

// BestDivergence returns the strongest divergence matching the requested
// direction, or nil
func BestDivergence(divergences []Divergence, bullish bool) *Divergence {
	var best *Divergence
	for i := range divergences {
		if divergences[i].Type.Bullish() != bullish {
			continue
		}
		if best == nil || divergences[i].Strength > best.Strength {
			best = &divergences[i]
		}
	}
	return best
}

// findPivots returns indexes of strict local extrema confirmed by
// pivotNeighbors bars on each side, ascending. NaN values never qualify.
func findPivots(values []float64, start int, findLow bool) []int {
	var pivots []int
	for i := start; i < len(values)-pivotNeighbors; i++ {
		if i < pivotNeighbors || math.IsNaN(values[i]) {
			continue
		}
		isPivot := true
		for j := i - pivotNeighbors; j <= i+pivotNeighbors; j++ {
			if j == i {
				continue
			}
			if math.IsNaN(values[j]) {
				isPivot = false
				break
			}
			if findLow && values[j] <= values[i] {
				isPivot = false
				break
			}
			if !findLow && values[j] >= values[i] {
				isPivot = false
				break
			}
		}
		if isPivot {
			pivots = append(pivots, i)
		}
	}
	return pivots
}

// matchRSIPivot finds the RSI pivot nearest to the price pivot index
// within the allowed alignment drift
func matchRSIPivot(rsiPivots []int, priceIdx int) (int, bool) {
	best := -1
	bestDist := pivotAlignment + 1
	for _, idx := range rsiPivots {
		dist := idx - priceIdx
		if dist < 0 {
			dist = -dist
		}
		if dist <= pivotAlignment && dist < bestDist {
			best = idx
			bestDist = dist
		}
	}
	return best, best >= 0
}

func classifyLowPair(pricePivots, rsiPivots []int, lows, rsi []float64) (Divergence, bool) {
	if len(pricePivots) < 2 {
		return Divergence{}, false
	}

	p2 := pricePivots[len(pricePivots)-1]
	p1 := pricePivots[len(pricePivots)-2]
	sep := p2 - p1
	if sep < minPivotSeparation || sep > maxPivotSeparation {
		return Divergence{}, false
	}

	r1, ok1 := matchRSIPivot(rsiPivots, p1)
	r2, ok2 := matchRSIPivot(rsiPivots, p2)
	if !ok1 || !ok2 || r1 == r2 {
		return Divergence{}, false
	}

	d := Divergence{
		Strength:  math.Abs(rsi[r2] - rsi[r1]),
		FirstBar:  p1,
		SecondBar: p2,
	}

	switch {
	case lows[p2] < lows[p1] && rsi[r2] > rsi[r1]:
		d.Type = RegularBullish
	case lows[p2] > lows[p1] && rsi[r2] < rsi[r1]:
		d.Type = HiddenBullish
	default:
		return Divergence{}, false
	}

	return d, true
}

func classifyHighPair(pricePivots, rsiPivots []int, highs, rsi []float64) (Divergence, bool) {
	if len(pricePivots) < 2 {
		return Divergence{}, false
	}

	p2 := pricePivots[len(pricePivots)-1]
	p1 := pricePivots[len(pricePivots)-2]
	sep := p2 - p1
	if sep < minPivotSeparation || sep > maxPivotSeparation {
		return Divergence{}, false
	}

	r1, ok1 := matchRSIPivot(rsiPivots, p1)
	r2, ok2 := matchRSIPivot(rsiPivots, p2)
	if !ok1 || !ok2 || r1 == r2 {
		return Divergence{}, false
	}

	d := Divergence{
		Strength:  math.Abs(rsi[r2] - rsi[r1]),
		FirstBar:  p1,
		SecondBar: p2,
	}

	switch {
	case highs[p2] > highs[p1] && rsi[r2] < rsi[r1]:
		d.Type = RegularBearish
	case highs[p2] < highs[p1] && rsi[r2] > rsi[r1]:
		d.Type = HiddenBearish
	default:
		return Divergence{}, false
	}

	return d, true
}
