package patterns

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// PatternType represents a candlestick pattern
type PatternType string

const (
	Hammer             PatternType = "hammer"
	ShootingStar       PatternType = "shooting_star"
	BullishEngulfing   PatternType = "bullish_engulfing"
	BearishEngulfing   PatternType = "bearish_engulfing"
	Doji               PatternType = "doji"
	MorningStar        PatternType = "morning_star"
	EveningStar        PatternType = "evening_star"
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows    PatternType = "three_black_crows"
)

// Match is a detected pattern on the latest candles. Strength is a fixed
// weight per pattern type; callers pick the strongest match per direction.
type Match struct {
	Type      PatternType
	Direction string // "bullish", "bearish" or "neutral" (doji)
	Strength  float64
}

// Fixed strength weights per pattern
var patternStrength = map[PatternType]float64{
	Doji:               10,
	Hammer:             20,
	ShootingStar:       20,
	BullishEngulfing:   25,
	BearishEngulfing:   25,
	MorningStar:        30,
	EveningStar:        30,
	ThreeWhiteSoldiers: 35,
	ThreeBlackCrows:    35,
}

// Detector detects candlestick patterns on the last 2-3 candles of a
// series using body/wick ratios relative to the total range
type Detector struct {
	dojiBodyMax   float64 // Body / range ceiling for a doji
	wickBodyRatio float64 // Wick / body floor for hammer and shooting star
}

// NewDetector creates a detector with standard thresholds
func NewDetector() *Detector {
	return &Detector{
		dojiBodyMax:   0.10,
		wickBodyRatio: 2.0,
	}
}

// Detect returns all pattern matches on the tail of the candle series.
// Multiple matches may co-occur.
func (d *Detector) Detect(candles []market.Candle) []Match {
	var matches []Match
	n := len(candles)
	if n < 2 {
		return matches
	}

	last := candles[n-1]
	prev := candles[n-2]

	if d.isHammer(last) {
		matches = append(matches, match(Hammer, "bullish"))
	}
	if d.isShootingStar(last) {
		matches = append(matches, match(ShootingStar, "bearish"))
	}
	if d.isDoji(last) {
		matches = append(matches, match(Doji, "neutral"))
	}
	if d.isBullishEngulfing(prev, last) {
		matches = append(matches, match(BullishEngulfing, "bullish"))
	}
	if d.isBearishEngulfing(prev, last) {
		matches = append(matches, match(BearishEngulfing, "bearish"))
	}

	if n >= 3 {
		c1, c2, c3 := candles[n-3], candles[n-2], candles[n-1]
		if d.isMorningStar(c1, c2, c3) {
			matches = append(matches, match(MorningStar, "bullish"))
		}
		if d.isEveningStar(c1, c2, c3) {
			matches = append(matches, match(EveningStar, "bearish"))
		}
		if d.isThreeWhiteSoldiers(c1, c2, c3) {
			matches = append(matches, match(ThreeWhiteSoldiers, "bullish"))
		}
		if d.isThreeBlackCrows(c1, c2, c3) {
			matches = append(matches, match(ThreeBlackCrows, "bearish"))
		}
	}

	return matches
}

// Best returns the highest-strength match for the given direction, or nil
func Best(matches []Match, direction string) *Match {
	var best *Match
	for i := range matches {
		if matches[i].Direction != direction {
			continue
		}
		if best == nil || matches[i].Strength > best.Strength {
			best = &matches[i]
		}
	}
	return best
}

func match(t PatternType, direction string) Match {
	return Match{Type: t, Direction: direction, Strength: patternStrength[t]}
}

func body(c market.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func totalRange(c market.Candle) float64 {
	return c.High - c.Low
}

func upperWick(c market.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func lowerWick(c market.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func isBullish(c market.Candle) bool {
	return c.Close > c.Open
}

func isBearish(c market.Candle) bool {
	return c.Close < c.Open
}

// isHammer checks for a small body near the top with a long lower wick
func (d *Detector) isHammer(c market.Candle) bool {
	rng := totalRange(c)
	b := body(c)
	if rng == 0 || b == 0 {
		return false
	}
	return lowerWick(c) >= b*d.wickBodyRatio &&
		upperWick(c) <= b &&
		b/rng < 0.35
}

// isShootingStar checks for a small body near the bottom with a long
// upper wick
func (d *Detector) isShootingStar(c market.Candle) bool {
	rng := totalRange(c)
	b := body(c)
	if rng == 0 || b == 0 {
		return false
	}
	return upperWick(c) >= b*d.wickBodyRatio &&
		lowerWick(c) <= b &&
		b/rng < 0.35
}

// isDoji checks for a body that is tiny relative to the range
func (d *Detector) isDoji(c market.Candle) bool {
	rng := totalRange(c)
	if rng == 0 {
		return false
	}
	return body(c)/rng < d.dojiBodyMax
}

// isBullishEngulfing checks that a bullish candle's body fully engulfs the
// prior bearish body
func (d *Detector) isBullishEngulfing(c1, c2 market.Candle) bool {
	return isBearish(c1) && isBullish(c2) &&
		c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isBearishEngulfing checks that a bearish candle's body fully engulfs the
// prior bullish body
func (d *Detector) isBearishEngulfing(c1, c2 market.Candle) bool {
	return isBullish(c1) && isBearish(c2) &&
		c2.Open >= c1.Close && c2.Close <= c1.Open
}

// isMorningStar checks for a strong bearish candle, a small-bodied middle
// candle, and a bullish candle closing into the first body
func (d *Detector) isMorningStar(c1, c2, c3 market.Candle) bool {
	if !isBearish(c1) || !isBullish(c3) {
		return false
	}
	if totalRange(c2) == 0 || body(c2)/totalRange(c2) > 0.3 {
		return false
	}
	return c3.Close > (c1.Open+c1.Close)/2
}

// isEveningStar is the bearish mirror of the morning star
func (d *Detector) isEveningStar(c1, c2, c3 market.Candle) bool {
	if !isBullish(c1) || !isBearish(c3) {
		return false
	}
	if totalRange(c2) == 0 || body(c2)/totalRange(c2) > 0.3 {
		return false
	}
	return c3.Close < (c1.Open+c1.Close)/2
}

// isThreeWhiteSoldiers checks for three consecutive bullish candles, each
// closing higher than the last, with real bodies
func (d *Detector) isThreeWhiteSoldiers(c1, c2, c3 market.Candle) bool {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !isBullish(c) {
			return false
		}
		if rng := totalRange(c); rng == 0 || body(c)/rng < 0.5 {
			return false
		}
	}
	return c2.Close > c1.Close && c3.Close > c2.Close
}

// isThreeBlackCrows is the bearish mirror of three white soldiers
func (d *Detector) isThreeBlackCrows(c1, c2, c3 market.Candle) bool {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !isBearish(c) {
			return false
		}
		if rng := totalRange(c); rng == 0 || body(c)/rng < 0.5 {
			return false
		}
	}
	return c2.Close < c1.Close && c3.Close < c2.Close
}
