package indicators

import (
	"math"
	"testing"

	"crypto-signal-engine/internal/market"
)

func flatCandles(n int, close, high, low float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: int64(i) * 3600000,
			Open:     close,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   100,
		}
	}
	return candles
}

func TestComputeSwingBandsShapes(t *testing.T) {
	candles := flatCandles(40, 100, 101, 99)
	cfg := SwingBandConfig{ATRPeriod: 5, MinStability: 2}

	bands := ComputeSwingBands(candles, cfg)
	if len(bands.Upper) != 40 || len(bands.Lower) != 40 ||
		len(bands.StabUpper) != 40 || len(bands.StabLower) != 40 ||
		len(bands.BuySignals) != 40 {
		t.Fatal("all output slices must match the candle count")
	}

	// Bands are withheld until the reference ATR seeds
	for i := 0; i < cfg.ATRPeriod; i++ {
		if !math.IsNaN(bands.Upper[i]) || !math.IsNaN(bands.Lower[i]) {
			t.Errorf("bands at %d should be NaN before the ATR seed", i)
		}
	}
}

func TestComputeSwingBandsStabilizesOnFlatData(t *testing.T) {
	candles := flatCandles(40, 100, 101, 99)
	bands := ComputeSwingBands(candles, SwingBandConfig{ATRPeriod: 5, MinStability: 2})

	last := len(candles) - 1
	if math.IsNaN(bands.Upper[last]) || bands.Upper[last] != 101 {
		t.Errorf("upper band = %v, want 101 on flat data", bands.Upper[last])
	}
	if math.IsNaN(bands.Lower[last]) || bands.Lower[last] != 99 {
		t.Errorf("lower band = %v, want 99 on flat data", bands.Lower[last])
	}
	if bands.StabLower[last] <= bands.StabLower[last-5] {
		t.Errorf("stability should keep growing on flat data: %d then %d",
			bands.StabLower[last-5], bands.StabLower[last])
	}
	for _, v := range bands.StabLower {
		if v < 0 {
			t.Fatal("stability counters must never be negative")
		}
	}
}

func TestComputeSwingBandsBuySignal(t *testing.T) {
	candles := flatCandles(40, 100, 101, 99)

	// One candle dips below the stable lower band, the next reclaims it
	candles[30].Close = 98.5
	candles[30].Low = 98.3
	candles[30].Open = 100
	candles[31].Close = 100.2
	candles[31].Open = 98.5
	candles[31].High = 100.4
	candles[31].Low = 98.4

	bands := ComputeSwingBands(candles, SwingBandConfig{ATRPeriod: 5, MinStability: 2})

	if !bands.BuySignals[31] {
		t.Error("expected a buy signal on the reclaim candle")
	}
	if !bands.BuySignalAt(31) {
		t.Error("BuySignalAt should agree with the slice")
	}
	if bands.BuySignalAt(-1) || bands.BuySignalAt(40) {
		t.Error("out-of-range indexes must report false")
	}
}

func TestComputeSwingBandsTinyInput(t *testing.T) {
	bands := ComputeSwingBands(flatCandles(1, 100, 101, 99), DefaultSwingBandConfig())
	if len(bands.Upper) != 1 || !math.IsNaN(bands.Upper[0]) {
		t.Error("single candle input should produce one withheld bar")
	}
}
