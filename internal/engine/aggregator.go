package engine

import "crypto-signal-engine/internal/regime"

// MultiTFContext reconciles the per-timeframe snapshots into the state the
// scorer works against: the governing regime, the directional bias it
// implies, and whether the working timeframe is choppy enough to switch
// the engine into mean-reversion behavior.
type MultiTFContext struct {
	CurrentRegime regime.Label
	Bias          Bias
	Choppy        bool

	Working  *Analysis
	FourHour *Analysis
	Daily    *Analysis
	Trigger  *Analysis
}

// BuildContext builds the cross-timeframe context. The governing regime is
// the highest timeframe with a known label: daily, then 4h, then the
// working timeframe.
func BuildContext(working, fourHour, daily, trigger *Analysis, choppinessThreshold float64) MultiTFContext {
	ctx := MultiTFContext{
		CurrentRegime: regime.Unknown,
		Working:       working,
		FourHour:      fourHour,
		Daily:         daily,
		Trigger:       trigger,
	}

	for _, a := range []*Analysis{daily, fourHour, working} {
		if a != nil && a.Regime.Label != regime.Unknown {
			ctx.CurrentRegime = a.Regime.Label
			break
		}
	}

	switch ctx.CurrentRegime {
	case regime.TrendingBull:
		ctx.Bias = BiasBullish
	case regime.TrendingBear:
		ctx.Bias = BiasBearish
	default:
		ctx.Bias = BiasNeutral
	}

	if working != nil {
		ctx.Choppy = working.Regime.Label == regime.Ranging ||
			(working.HasChoppiness && working.Choppiness > choppinessThreshold)
	}

	return ctx
}

// LongTermAlignment scores how the higher-timeframe trend sits relative to
// the candidate direction: 1 aligned, 0 contradicting, 0.5 when no higher
// timeframe has a usable EMA ordering.
func (c MultiTFContext) LongTermAlignment(d Direction) float64 {
	for _, a := range []*Analysis{c.Daily, c.FourHour} {
		if a == nil || !a.HasEMAs {
			continue
		}
		bullish := a.EMA20 > a.EMA50
		if (d == DirectionBuy) == bullish {
			return 1
		}
		return 0
	}
	return 0.5
}

// TriggerConfirmation scores the lower-timeframe entry confirmation in
// [0,1], neutral 0.5 when the trigger snapshot is unavailable. RSI position
// and MACD histogram sign on the trigger timeframe each contribute.
func (c MultiTFContext) TriggerConfirmation(d Direction) float64 {
	t := c.Trigger
	if t == nil {
		return 0.5
	}

	score := 0.5
	if t.HasRSI {
		if d == DirectionBuy && t.RSI > 50 {
			score += 0.2
		}
		if d == DirectionSell && t.RSI < 50 {
			score += 0.2
		}
	}
	if t.HasMACD {
		if (d == DirectionBuy && t.MACD.Histogram > 0) ||
			(d == DirectionSell && t.MACD.Histogram < 0) {
			score += 0.3
		} else {
			score -= 0.3
		}
	}

	return clamp01(score)
}

// CandidateDirection picks the trade side to score. In a trending context
// the direction follows the bias; in a choppy context the engine switches
// to mean reversion and only trades price stretched to a Bollinger edge or
// an RSI extreme. The second return marks reversion mode; the third is
// false when no candidate exists.
func (c MultiTFContext) CandidateDirection() (Direction, bool, bool) {
	w := c.Working
	if w == nil {
		return "", false, false
	}

	if c.Choppy {
		if !w.HasBollinger || !w.HasRSI {
			return "", false, false
		}
		atLower := w.Price <= w.Bollinger.Lower*1.001
		atUpper := w.Price >= w.Bollinger.Upper*0.999
		switch {
		case atLower || w.RSI < 30:
			return DirectionBuy, true, true
		case atUpper || w.RSI > 70:
			return DirectionSell, true, true
		default:
			return "", false, false
		}
	}

	switch c.Bias {
	case BiasBullish:
		return DirectionBuy, false, true
	case BiasBearish:
		return DirectionSell, false, true
	default:
		return "", false, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
