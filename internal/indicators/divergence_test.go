package indicators

import (
	"math"
	"testing"
)

func TestFindPivots(t *testing.T) {
	values := []float64{5, 4, 3, 1, 3, 4, 5, 6, 7, 6, 5, 4, 3, 2, 4, 5, 6}

	lows := findPivots(values, 2, true)
	if len(lows) != 2 || lows[0] != 3 || lows[1] != 13 {
		t.Errorf("low pivots = %v, want [3 13]", lows)
	}

	highs := findPivots(values, 2, false)
	if len(highs) != 1 || highs[0] != 8 {
		t.Errorf("high pivots = %v, want [8]", highs)
	}
}

func TestFindPivotsSkipsNaN(t *testing.T) {
	values := []float64{5, 4, math.NaN(), 1, 3, 4, 5}
	if pivots := findPivots(values, 2, true); len(pivots) != 0 {
		t.Errorf("pivots near NaN = %v, want none", pivots)
	}
}

func TestMatchRSIPivot(t *testing.T) {
	rsiPivots := []int{10, 20, 31}

	tests := []struct {
		name     string
		priceIdx int
		want     int
		ok       bool
	}{
		{"exact match", 20, 20, true},
		{"within drift", 30, 31, true},
		{"nearest wins", 21, 20, true},
		{"too far", 25, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchRSIPivot(rsiPivots, tt.priceIdx)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("matched %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassifyLowPair(t *testing.T) {
	lows := make([]float64, 40)
	rsi := make([]float64, 40)
	for i := range lows {
		lows[i] = 100
		rsi[i] = 50
	}

	// Price makes a lower low at 30 than at 20 while RSI makes a higher low
	lows[20], lows[30] = 95, 94
	rsi[20], rsi[30] = 20, 35

	d, ok := classifyLowPair([]int{20, 30}, []int{20, 30}, lows, rsi)
	if !ok {
		t.Fatal("expected a divergence")
	}
	if d.Type != RegularBullish {
		t.Errorf("type = %v, want RegularBullish", d.Type)
	}
	if math.Abs(d.Strength-15) > 1e-9 {
		t.Errorf("strength = %v, want 15", d.Strength)
	}
	if d.FirstBar != 20 || d.SecondBar != 30 {
		t.Errorf("bars = %d/%d, want 20/30", d.FirstBar, d.SecondBar)
	}

	// Higher price low with a lower RSI low is a hidden bullish divergence
	lows[20], lows[30] = 94, 95
	rsi[20], rsi[30] = 35, 20
	d, ok = classifyLowPair([]int{20, 30}, []int{20, 30}, lows, rsi)
	if !ok || d.Type != HiddenBullish {
		t.Errorf("type = %v (ok=%v), want HiddenBullish", d.Type, ok)
	}

	// Both falling together is no divergence
	lows[20], lows[30] = 95, 94
	rsi[20], rsi[30] = 35, 20
	if _, ok := classifyLowPair([]int{20, 30}, []int{20, 30}, lows, rsi); ok {
		t.Error("confirming lows should not classify as divergence")
	}
}

func TestClassifyLowPairSeparationBounds(t *testing.T) {
	lows := make([]float64, 80)
	rsi := make([]float64, 80)
	for i := range lows {
		lows[i] = 100
		rsi[i] = 50
	}

	// Pivots 3 bars apart are too close
	lows[20], lows[23] = 95, 94
	rsi[20], rsi[23] = 20, 35
	if _, ok := classifyLowPair([]int{20, 23}, []int{20, 23}, lows, rsi); ok {
		t.Error("pivots below the minimum separation should not classify")
	}

	// Pivots 45 bars apart are too far
	lows[20], lows[65] = 95, 94
	rsi[20], rsi[65] = 20, 35
	if _, ok := classifyLowPair([]int{20, 65}, []int{20, 65}, lows, rsi); ok {
		t.Error("pivots beyond the maximum separation should not classify")
	}
}

func TestClassifyHighPair(t *testing.T) {
	highs := make([]float64, 40)
	rsi := make([]float64, 40)
	for i := range highs {
		highs[i] = 100
		rsi[i] = 50
	}

	highs[15], highs[25] = 105, 106
	rsi[15], rsi[25] = 80, 65

	d, ok := classifyHighPair([]int{15, 25}, []int{15, 25}, highs, rsi)
	if !ok {
		t.Fatal("expected a divergence")
	}
	if d.Type != RegularBearish {
		t.Errorf("type = %v, want RegularBearish", d.Type)
	}
	if d.Type.Bullish() {
		t.Error("regular bearish must not report as bullish")
	}
}

func TestDetectDivergencesProperties(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 6*math.Sin(float64(i)/4) - 0.05*float64(i)
	}
	candles := mkCandles(closes, 0.3)

	divergences := DetectDivergences(candles, 14, 60)
	for _, d := range divergences {
		sep := d.SecondBar - d.FirstBar
		if sep < minPivotSeparation || sep > maxPivotSeparation {
			t.Errorf("separation %d outside [%d,%d]", sep, minPivotSeparation, maxPivotSeparation)
		}
		if d.Strength < 0 {
			t.Errorf("strength %v must be non-negative", d.Strength)
		}
	}

	if got := DetectDivergences(candles[:10], 14, 60); got != nil {
		t.Errorf("short series should return nil, got %v", got)
	}
}

func TestBestDivergence(t *testing.T) {
	divergences := []Divergence{
		{Type: RegularBullish, Strength: 5},
		{Type: HiddenBullish, Strength: 12},
		{Type: RegularBearish, Strength: 20},
	}

	best := BestDivergence(divergences, true)
	if best == nil || best.Strength != 12 {
		t.Errorf("best bullish = %+v, want the hidden bullish at 12", best)
	}

	best = BestDivergence(divergences, false)
	if best == nil || best.Type != RegularBearish {
		t.Errorf("best bearish = %+v, want the regular bearish", best)
	}

	if BestDivergence(nil, true) != nil {
		t.Error("empty input must return nil")
	}
}
