package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/cooldown"
)

// Take-profit distances as multiples of the realized stop distance
const (
	takeProfit1Mult = 1.5
	takeProfit2Mult = 2.5
)

// Fallback stop distance when ATR is unavailable
const percentStopFallback = 0.02

// Emitter turns a scored evaluation into a signal: it applies the score
// and category gates, derives risk levels, and suppresses duplicates
// through the cooldown store.
type Emitter struct {
	cooldowns cooldown.Store
	log       zerolog.Logger
}

// NewEmitter creates an emitter backed by the given cooldown store
func NewEmitter(store cooldown.Store, logger zerolog.Logger) *Emitter {
	return &Emitter{cooldowns: store, log: logger}
}

// Emit gates and packages the evaluation. It returns nil without error
// when any gate holds the signal back: score below threshold, too few
// categories contributing, or an active cooldown.
func (e *Emitter) Emit(ctx context.Context, eval *Evaluation) (*Signal, error) {
	score := eval.Score

	if score.Total <= eval.Mode.ScoreToEmit {
		e.log.Debug().Str("symbol", eval.Symbol).Float64("score", score.Total).
			Float64("threshold", eval.Mode.ScoreToEmit).Msg("score below emission threshold")
		return nil, nil
	}

	passing := 0
	for _, v := range score.Subscores {
		if v > eval.Mode.CategoryThreshold {
			passing++
		}
	}
	if passing < eval.Mode.RequiredCategories {
		e.log.Debug().Str("symbol", eval.Symbol).Int("passing", passing).
			Int("required", eval.Mode.RequiredCategories).Msg("not enough contributing categories")
		return nil, nil
	}

	signal := e.buildSignal(eval)

	key := cooldownKey(signal)
	active, err := e.cooldowns.Active(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cooldown lookup for %s: %w", eval.Symbol, err)
	}
	if active {
		e.log.Debug().Str("symbol", eval.Symbol).Str("key", key).Msg("signal suppressed by cooldown")
		return nil, nil
	}
	if err := e.cooldowns.Mark(ctx, key, eval.Mode.Cooldown); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("cooldown mark failed")
	}

	e.log.Info().
		Str("symbol", signal.Symbol).
		Str("direction", string(signal.Direction)).
		Float64("score", signal.Score).
		Str("confidence", signal.Confidence).
		Msg("signal emitted")

	return signal, nil
}

// buildSignal derives entry, stop and targets. The stop starts at an
// ATR multiple (widened in choppy markets) and tightens to the nearest
// structural level when one sits between the ATR stop and the entry.
// Targets are fixed multiples of the realized stop distance, so the
// reported risk:reward holds whichever stop won.
func (e *Emitter) buildSignal(eval *Evaluation) *Signal {
	w := eval.Context.Working
	entry := w.Price

	mult := eval.Mode.StopATRMultiplier
	if eval.Context.Choppy {
		mult = eval.Mode.ChoppyStopATRMultiplier
	}

	warnings := eval.Score.Warnings
	stopDist := entry * percentStopFallback
	if w.HasATR {
		stopDist = w.ATR * mult
	} else {
		warnings = append(warnings, "ATR no disponible, stop calculado por porcentaje")
	}

	var stop, tp1, tp2 float64
	if eval.Direction == DirectionBuy {
		stop = entry - stopDist
		if s := w.Swing.Support; s > 0 && s < entry && s > stop {
			stop = s * 0.999
		}
		realized := entry - stop
		tp1 = entry + realized*takeProfit1Mult
		tp2 = entry + realized*takeProfit2Mult
	} else {
		stop = entry + stopDist
		if r := w.Swing.Resistance; r > 0 && r > entry && r < stop {
			stop = r * 1.001
		}
		realized := stop - entry
		tp1 = entry - realized*takeProfit1Mult
		tp2 = entry - realized*takeProfit2Mult
	}

	riskReward := 0.0
	if risk := abs64(entry - stop); risk > 0 {
		riskReward = abs64(tp1-entry) / risk
	}

	score100 := eval.Score.Total * 100

	// Subscores are published on the same 0..100 scale as the total,
	// rounded to one decimal
	subscores := make(map[Category]float64, len(eval.Score.Subscores))
	for cat, v := range eval.Score.Subscores {
		subscores[cat] = math.Round(v*1000) / 10
	}

	return &Signal{
		ID:          uuid.New().String(),
		Symbol:      eval.Symbol,
		Direction:   eval.Direction,
		Mode:        eval.Mode.Mode,
		Score:       score100,
		Confidence:  confidenceTier(score100),
		Entry:       entry,
		StopLoss:    stop,
		TakeProfit1: tp1,
		TakeProfit2: tp2,
		RiskReward:  riskReward,
		Regime:      eval.Context.CurrentRegime,
		Subscores:   subscores,
		Reasons:     eval.Score.Reasons,
		Warnings:    warnings,
		CreatedAt:   time.Now().UTC(),
	}
}

func cooldownKey(s *Signal) string {
	return fmt.Sprintf("%s|%s|%s", s.Symbol, s.Direction, s.PrimaryReason())
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
