package engine

import (
	"fmt"

	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/patterns"
	"crypto-signal-engine/internal/regime"
)

// ScoreResult is the scored evaluation of one candidate signal. Total is
// in [0,1]; subscores are per-category in [0,1]. Reasons are ordered for
// presentation: divergence and regime confluence first, then category
// order.
type ScoreResult struct {
	Total     float64
	Subscores map[Category]float64
	Reasons   []string
	Warnings  []string
}

// Evaluation carries everything about one symbol's candidate signal from
// aggregation through scoring to emission
type Evaluation struct {
	Symbol    string
	Mode      ModeConfig
	Context   MultiTFContext
	Direction Direction
	Reversion bool
	Book      *indicators.OrderBookMetrics
	Score     *ScoreResult
}

// Order book contribution limits: imbalance is in [-1,1] and adjusts the
// total by at most ±0.05; spreads above the bps ceiling only warn
const (
	bookImbalanceWeight = 0.05
	wideSpreadBps       = 10.0
)

// CheckGates applies the hard aborts that run before any scoring. A
// conservative engine never trades a neutral bias, and no mode trades
// against the governing regime except in mean-reversion context, where
// trading against the stretch is the point.
func CheckGates(mode ModeConfig, ctx MultiTFContext, d Direction, reversion bool) (bool, string) {
	if mode.Mode == ModeConservative && ctx.Bias == BiasNeutral {
		return false, "neutral bias in conservative mode"
	}
	if !reversion {
		if (d == DirectionBuy && ctx.Bias == BiasBearish) ||
			(d == DirectionSell && ctx.Bias == BiasBullish) {
			return false, "direction contradicts regime bias"
		}
	}
	return true, ""
}

// ComputeScore runs the eight category subscores, applies the ranging
// weight remap and the per-mode boosts, and returns the final clamped
// score with presentation reasons
func ComputeScore(eval *Evaluation) *ScoreResult {
	w := eval.Context.Working
	d := eval.Direction

	subs := map[Category]float64{
		CategoryMomentum:      momentumScore(w, d, eval.Reversion, eval.Mode.Mode),
		CategoryTrend:         trendScore(w, d, eval.Mode.Mode),
		CategoryTrendStrength: trendStrengthScore(w, d),
		CategoryLevels:        levelsScore(w, d, eval.Reversion),
		CategoryVolume:        volumeScore(w, d),
		CategoryPatterns:      patternsScore(w, d),
		CategoryDivergence:    divergenceScore(w, d),
		CategoryAccumulation:  accumulationScore(w, d),
	}

	weights := eval.Mode.Weights
	if eval.Context.Choppy {
		weights = rangingWeights(weights)
	}

	total := 0.0
	for _, cat := range AllCategories {
		total += subs[cat] * weights[cat]
	}

	result := &ScoreResult{Subscores: subs}

	bonus, boostReasons, warnings := applyBoosts(eval, subs)
	total += bonus

	// Higher-timeframe alignment and lower-timeframe trigger each adjust
	// the total by up to 0.05. Alignment is skipped in reversion mode,
	// where trading against the larger trend is expected.
	trigger := eval.Context.TriggerConfirmation(d)
	total += (trigger - 0.5) * 0.1
	if !eval.Reversion {
		total += (eval.Context.LongTermAlignment(d) - 0.5) * 0.1
	}
	if trigger < 0.4 {
		warnings = append(warnings, "Sin confirmación en temporalidad menor")
	}
	if b := eval.Book; b != nil {
		imbalance := b.Imbalance
		if d == DirectionSell {
			imbalance = -imbalance
		}
		total += imbalance * bookImbalanceWeight
		if imbalance <= -0.3 {
			warnings = append(warnings, "Libro de órdenes desequilibrado contra la señal")
		}
		if b.SpreadBps > wideSpreadBps {
			warnings = append(warnings, fmt.Sprintf("Spread amplio en el libro (%.1f bps)", b.SpreadBps))
		}
	}
	if eval.Context.Choppy {
		warnings = append(warnings, "Mercado en rango, volatilidad lateral elevada")
	}

	result.Total = clamp01(total)
	result.Reasons = buildReasons(eval, subs, boostReasons)
	result.Warnings = warnings
	return result
}

// rangingWeights remaps category weights for a choppy market: trend
// following is switched off, momentum and level proximity take its place
func rangingWeights(base map[Category]float64) map[Category]float64 {
	out := make(map[Category]float64, len(base))
	for cat, v := range base {
		out[cat] = v
	}
	out[CategoryTrend] = 0
	out[CategoryMomentum] = base[CategoryMomentum] * 1.75
	out[CategoryLevels] = base[CategoryLevels] * 1.5
	return out
}

// momentumScore blends RSI position, RSI velocity, stochastic state and
// MACD histogram sign. The RSI component is regime aware: trend
// continuation wants RSI mid-range in the direction of travel, reversion
// wants it stretched against it.
func momentumScore(a *Analysis, d Direction, reversion bool, mode Mode) float64 {
	if a == nil || !a.HasRSI {
		return 0
	}

	wRSI, wVel, wStoch, wMACD := 0.35, 0.15, 0.25, 0.25
	if mode == ModeScalping {
		wRSI, wVel, wStoch, wMACD = 0.30, 0.20, 0.30, 0.20
	}

	rsiComp := rsiComponent(a.RSI, d, reversion)

	delta := a.RSI - a.PrevRSI
	velComp := 0.0
	if d == DirectionBuy {
		velComp = clamp01(delta / 5)
	} else {
		velComp = clamp01(-delta / 5)
	}

	total := wRSI*rsiComp + wVel*velComp
	used := wRSI + wVel

	if a.HasStochastic {
		total += wStoch * stochComponent(a.Stochastic, d)
		used += wStoch
	}
	if a.HasMACD {
		macdComp := 0.0
		if (d == DirectionBuy && a.MACD.Histogram > 0) ||
			(d == DirectionSell && a.MACD.Histogram < 0) {
			macdComp = 1
		}
		total += wMACD * macdComp
		used += wMACD
	}

	if used == 0 {
		return 0
	}
	return total / used
}

func rsiComponent(rsi float64, d Direction, reversion bool) float64 {
	if reversion {
		if d == DirectionBuy {
			switch {
			case rsi <= 30:
				return 1
			case rsi <= 40:
				return 0.6
			case rsi <= 50:
				return 0.3
			}
			return 0
		}
		switch {
		case rsi >= 70:
			return 1
		case rsi >= 60:
			return 0.6
		case rsi >= 50:
			return 0.3
		}
		return 0
	}

	if d == DirectionBuy {
		switch {
		case rsi >= 50 && rsi <= 70:
			return 1
		case rsi >= 45 && rsi < 50:
			return 0.7
		case rsi > 70 && rsi <= 80:
			return 0.5
		case rsi >= 40 && rsi < 45:
			return 0.2
		}
		return 0
	}
	switch {
	case rsi >= 30 && rsi <= 50:
		return 1
	case rsi > 50 && rsi <= 55:
		return 0.7
	case rsi >= 20 && rsi < 30:
		return 0.5
	case rsi > 55 && rsi <= 60:
		return 0.2
	}
	return 0
}

func stochComponent(s indicators.StochasticResult, d Direction) float64 {
	if d == DirectionBuy {
		switch {
		case s.BullishCross():
			return 1
		case s.K < 20:
			return 0.8
		case s.K > s.D:
			return 0.5
		}
		return 0
	}
	switch {
	case s.BearishCross():
		return 1
	case s.K > 80:
		return 0.8
	case s.K < s.D:
		return 0.5
	}
	return 0
}

// trendScore rewards EMA ordering in the trade direction plus price
// holding above (or below) the fast EMA. Scalping mode reads the faster
// EMA9/EMA20 pair.
func trendScore(a *Analysis, d Direction, mode Mode) float64 {
	if a == nil || !a.HasEMAs {
		return 0
	}

	fast, slow := a.EMA20, a.EMA50
	if mode == ModeScalping {
		fast, slow = a.EMA9, a.EMA20
	}

	score := 0.0
	if d == DirectionBuy {
		if fast > slow {
			score += 0.6
		}
		if a.Price > fast {
			score += 0.4
		}
	} else {
		if fast < slow {
			score += 0.6
		}
		if a.Price < fast {
			score += 0.4
		}
	}
	return score
}

// trendStrengthScore maps ADX above 25 linearly to [0,1], halved when the
// dominant DI contradicts the trade direction
func trendStrengthScore(a *Analysis, d Direction) float64 {
	if a == nil || !a.HasADX {
		return 0
	}
	score := clamp01((a.ADX.ADX - 25) / 25)
	if (d == DirectionBuy && a.ADX.MinusDI > a.ADX.PlusDI) ||
		(d == DirectionSell && a.ADX.PlusDI > a.ADX.MinusDI) {
		score *= 0.5
	}
	return score
}

// levelsScore is inverse distance to the nearest favorable structural
// level: swing support/resistance thresholded at 2%, pivot levels at 1.5%,
// and in reversion mode the Bollinger edge itself counts as a level
func levelsScore(a *Analysis, d Direction, reversion bool) float64 {
	if a == nil || a.Price == 0 {
		return 0
	}

	best := 0.0

	if d == DirectionBuy && a.Swing.Support > 0 {
		dist := (a.Price - a.Swing.Support) / a.Price
		best = max64(best, clamp01(1-dist/0.02))
	}
	if d == DirectionSell && a.Swing.Resistance > 0 {
		dist := (a.Swing.Resistance - a.Price) / a.Price
		best = max64(best, clamp01(1-dist/0.02))
	}

	if a.HasPivots {
		_, dist := a.Pivots.NearestLevel(a.Price)
		best = max64(best, clamp01(1-dist/0.015))
		_, fibDist := a.FibPivots.NearestLevel(a.Price)
		best = max64(best, clamp01(1-fibDist/0.015))
	}

	if reversion && a.HasBollinger {
		if d == DirectionBuy && a.Price <= a.Bollinger.Lower*1.001 {
			best = 1
		}
		if d == DirectionSell && a.Price >= a.Bollinger.Upper*0.999 {
			best = 1
		}
	}

	return best
}

// volumeScore blends the spike flag with taker buy/sell pressure
func volumeScore(a *Analysis, d Direction) float64 {
	if a == nil {
		return 0
	}

	spike := 0.0
	if a.VolumeSpike {
		spike = 1
	}

	pressure := 0.0
	if a.HasAccumulation {
		if d == DirectionBuy {
			pressure = clamp01((a.Accumulation.BuyRatio - 0.4) / 0.2)
		} else {
			pressure = clamp01((0.6 - a.Accumulation.BuyRatio) / 0.2)
		}
	}

	return spike*0.6 + pressure*0.4
}

// patternsScore is the strongest directional candle pattern normalized by
// the strongest possible pattern weight
func patternsScore(a *Analysis, d Direction) float64 {
	if a == nil {
		return 0
	}
	want := "bullish"
	if d == DirectionSell {
		want = "bearish"
	}
	best := patterns.Best(a.Patterns, want)
	if best == nil {
		return 0
	}
	return clamp01(best.Strength / 35)
}

// divergenceScore normalizes the strongest directional RSI divergence
func divergenceScore(a *Analysis, d Direction) float64 {
	if a == nil {
		return 0
	}
	best := indicators.BestDivergence(a.Divergences, d == DirectionBuy)
	if best == nil {
		return 0
	}
	return clamp01(best.Strength / 15)
}

// accumulationScore rewards sustained taker pressure matching the trade
// direction
func accumulationScore(a *Analysis, d Direction) float64 {
	if a == nil || !a.HasAccumulation {
		return 0
	}
	if d == DirectionBuy && a.Accumulation.Accumulating {
		return a.Accumulation.Strength
	}
	if d == DirectionSell && a.Accumulation.Distributing {
		return a.Accumulation.Strength
	}
	return 0
}

// applyBoosts computes the per-mode additive bonuses plus the
// mode-independent reversion confluence and swing-band triggers
func applyBoosts(eval *Evaluation, subs map[Category]float64) (float64, []string, []string) {
	var (
		bonus    float64
		reasons  []string
		warnings []string
	)

	w := eval.Context.Working
	d := eval.Direction
	if w == nil {
		return 0, nil, nil
	}

	// Reversion confluence: RSI extreme landing on the Bollinger edge in a
	// ranging market is the core mean-reversion setup
	if eval.Reversion && w.HasRSI && w.HasBollinger {
		atEdge := (d == DirectionBuy && w.Price <= w.Bollinger.Lower*1.001) ||
			(d == DirectionSell && w.Price >= w.Bollinger.Upper*0.999)
		extreme := (d == DirectionBuy && w.RSI < 30) || (d == DirectionSell && w.RSI > 70)
		if atEdge && extreme {
			bonus += 0.10
			reasons = append(reasons, "Confluencia de reversión: RSI extremo en banda de Bollinger")
		}
	}

	if d == DirectionBuy && w.BandBuyRecently(3) {
		bonus += 0.05
		reasons = append(reasons, "Cruce alcista sobre banda de estructura estable")
	}

	tripleAligned := tripleAlignment(eval.Context, w, d)

	switch eval.Mode.Mode {
	case ModeConservative:
		if tripleAligned {
			bonus += 0.10
			reasons = append(reasons, "Triple alineación de tendencia confirmada")
		}
		if w.HasADX && w.ADX.ADX > 30 {
			bonus += 0.05
		}
	case ModeBalanced:
		if tripleAligned {
			bonus += 0.05
			reasons = append(reasons, "Triple alineación de tendencia confirmada")
		}
		if w.HasChoppiness && w.Choppiness < 38.2 {
			bonus += 0.05
		}
	case ModeRisky:
		if subs[CategoryPatterns] >= 25.0/35.0 {
			bonus += 0.08
		}
		if w.HasRSI && (w.RSI < 25 || w.RSI > 75) {
			bonus += 0.07
			reasons = append(reasons, fmt.Sprintf("RSI en zona extrema (%.1f)", w.RSI))
		}
	case ModeScalping:
		if w.HasEMAs {
			if (d == DirectionBuy && w.EMA9 > w.EMA20) ||
				(d == DirectionSell && w.EMA9 < w.EMA20) {
				bonus += 0.08
			}
		}
		if w.HasAccumulation {
			skew := (d == DirectionBuy && w.Accumulation.BuyRatio > 0.58) ||
				(d == DirectionSell && w.Accumulation.BuyRatio < 0.42)
			if skew {
				bonus += 0.06
			}
		}
	}

	if !eval.Reversion && w.HasADX && w.ADX.ADX < 20 {
		warnings = append(warnings, fmt.Sprintf("ADX débil (%.1f), tendencia poco fiable", w.ADX.ADX))
	}

	return bonus, reasons, warnings
}

// tripleAlignment checks working EMA ordering, price vs SMA200 and the
// governing regime all agreeing with the trade direction
func tripleAlignment(ctx MultiTFContext, w *Analysis, d Direction) bool {
	if !w.HasEMAs || !w.Has200 {
		return false
	}
	if d == DirectionBuy {
		return w.EMA20 > w.EMA50 && w.Price > w.SMA200 && ctx.CurrentRegime == regime.TrendingBull
	}
	return w.EMA20 < w.EMA50 && w.Price < w.SMA200 && ctx.CurrentRegime == regime.TrendingBear
}

// buildReasons assembles the presentation reasons: divergence and regime
// confluence lead, then passing categories in evaluation order, then boost
// reasons
func buildReasons(eval *Evaluation, subs map[Category]float64, boostReasons []string) []string {
	w := eval.Context.Working
	d := eval.Direction

	var front, rest []string

	if subs[CategoryDivergence] > 0 {
		if best := indicators.BestDivergence(w.Divergences, d == DirectionBuy); best != nil {
			front = append(front, divergenceReason(best.Type))
		}
	}
	if regimeAgrees(eval.Context.CurrentRegime, d) {
		front = append(front, fmt.Sprintf("Régimen %s alineado con la señal", eval.Context.CurrentRegime))
	}

	if subs[CategoryTrend] > 0.5 && w.HasEMAs {
		if eval.Mode.Mode == ModeScalping {
			if d == DirectionBuy {
				rest = append(rest, "Tendencia alcista (EMA9 > EMA20)")
			} else {
				rest = append(rest, "Tendencia bajista (EMA9 < EMA20)")
			}
		} else {
			if d == DirectionBuy {
				rest = append(rest, "Tendencia alcista (EMA20 > EMA50)")
			} else {
				rest = append(rest, "Tendencia bajista (EMA20 < EMA50)")
			}
		}
	}

	if subs[CategoryMomentum] > 0.5 && w.HasRSI {
		switch {
		case eval.Reversion && d == DirectionBuy:
			rest = append(rest, fmt.Sprintf("RSI en sobreventa (%.1f)", w.RSI))
		case eval.Reversion && d == DirectionSell:
			rest = append(rest, fmt.Sprintf("RSI en sobrecompra (%.1f)", w.RSI))
		default:
			rest = append(rest, fmt.Sprintf("RSI en zona favorable (%.1f)", w.RSI))
		}
		if w.HasMACD {
			if d == DirectionBuy && w.MACD.Histogram > 0 {
				rest = append(rest, "MACD con impulso alcista")
			}
			if d == DirectionSell && w.MACD.Histogram < 0 {
				rest = append(rest, "MACD con impulso bajista")
			}
		}
	}

	if subs[CategoryTrendStrength] > 0.5 && w.HasADX {
		rest = append(rest, fmt.Sprintf("Tendencia fuerte (ADX %.1f)", w.ADX.ADX))
	}

	if subs[CategoryLevels] > 0.5 {
		if d == DirectionBuy {
			rest = append(rest, "Precio cerca de soporte estructural")
		} else {
			rest = append(rest, "Precio cerca de resistencia estructural")
		}
	}

	if subs[CategoryVolume] > 0.5 {
		if w.VolumeSpike {
			rest = append(rest, "Pico de volumen confirmante")
		}
		if w.HasAccumulation {
			rest = append(rest, fmt.Sprintf("Presión compradora %.0f%%", w.Accumulation.BuyRatio*100))
		}
	}

	if subs[CategoryPatterns] > 0 {
		want := "bullish"
		if d == DirectionSell {
			want = "bearish"
		}
		if best := patterns.Best(w.Patterns, want); best != nil {
			rest = append(rest, fmt.Sprintf("Patrón de velas: %s", best.Type))
		}
	}

	if subs[CategoryAccumulation] > 0 {
		if d == DirectionBuy {
			rest = append(rest, "Acumulación sostenida detectada")
		} else {
			rest = append(rest, "Distribución sostenida detectada")
		}
	}

	out := append(front, rest...)
	return append(out, boostReasons...)
}

func divergenceReason(t indicators.DivergenceType) string {
	switch t {
	case indicators.RegularBullish:
		return "Divergencia alcista RSI/precio"
	case indicators.RegularBearish:
		return "Divergencia bajista RSI/precio"
	case indicators.HiddenBullish:
		return "Divergencia alcista oculta RSI/precio"
	default:
		return "Divergencia bajista oculta RSI/precio"
	}
}

func regimeAgrees(label regime.Label, d Direction) bool {
	return (d == DirectionBuy && label == regime.TrendingBull) ||
		(d == DirectionSell && label == regime.TrendingBear)
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
