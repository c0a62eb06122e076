// Package engine scores symbols across timeframes and emits trade
// signals. One Engine instance serves all symbols; per-call state lives in
// the Evaluation.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/cooldown"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/patterns"
	"crypto-signal-engine/internal/regime"
)

// Higher-timeframe fetch sizes; the working timeframe uses the configured
// candle limit
const (
	higherTFLimit  = 250
	triggerTFLimit = 150
)

// Options configures an Engine
type Options struct {
	Mode                string
	CandleLimit         int
	ChoppinessThreshold float64
	OrderBookDepth      int
}

// Engine evaluates symbols for trade signals
type Engine struct {
	provider   market.DataProvider
	classifier *regime.Classifier
	detector   *patterns.Detector
	emitter    *Emitter

	mode                ModeConfig
	candleLimit         int
	choppinessThreshold float64
	bookDepth           int
	log                 zerolog.Logger
}

// New creates an engine. Unknown mode names fall back to BALANCED.
func New(provider market.DataProvider, store cooldown.Store, logger zerolog.Logger, opts Options) *Engine {
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = 300
	}
	if opts.ChoppinessThreshold <= 0 {
		opts.ChoppinessThreshold = 60
	}
	if opts.OrderBookDepth <= 0 {
		opts.OrderBookDepth = 20
	}
	return &Engine{
		provider:            provider,
		classifier:          regime.NewClassifier(opts.ChoppinessThreshold),
		detector:            patterns.NewDetector(),
		emitter:             NewEmitter(store, logger),
		mode:                ModeByName(opts.Mode),
		candleLimit:         opts.CandleLimit,
		choppinessThreshold: opts.ChoppinessThreshold,
		bookDepth:           opts.OrderBookDepth,
		log:                 logger,
	}
}

// Mode returns the engine's default mode preset
func (e *Engine) Mode() ModeConfig {
	return e.mode
}

// Evaluate analyzes one symbol in the engine's default mode
func (e *Engine) Evaluate(ctx context.Context, symbol string) (*Signal, error) {
	return e.EvaluateMode(ctx, symbol, e.mode)
}

// EvaluateMode runs the full pipeline for one symbol: fetch candles per
// timeframe, build indicator snapshots, reconcile regimes, pick and gate a
// direction, score it and hand it to the emitter. A nil signal with nil
// error means no setup was found or a gate held it back.
func (e *Engine) EvaluateMode(ctx context.Context, symbol string, mode ModeConfig) (*Signal, error) {
	working, err := e.fetchAnalysis(ctx, symbol, mode.WorkingInterval, e.candleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s candles: %w", symbol, mode.WorkingInterval, err)
	}
	if !working.CorePrerequisites() {
		return nil, fmt.Errorf("%s on %s: %w", symbol, mode.WorkingInterval, ErrInsufficientData)
	}

	// Higher and trigger timeframes degrade gracefully; the aggregator
	// treats missing snapshots as neutral
	fourHour := e.fetchOptional(ctx, symbol, "4h", higherTFLimit)
	daily := e.fetchOptional(ctx, symbol, "1d", higherTFLimit)
	trigger := e.fetchOptional(ctx, symbol, mode.TriggerInterval, triggerTFLimit)

	tfCtx := BuildContext(working, fourHour, daily, trigger, e.choppinessThreshold)

	direction, reversion, ok := tfCtx.CandidateDirection()
	if !ok {
		e.log.Debug().Str("symbol", symbol).Str("regime", string(tfCtx.CurrentRegime)).
			Msg("no candidate direction")
		return nil, nil
	}

	if pass, reason := CheckGates(mode, tfCtx, direction, reversion); !pass {
		e.log.Debug().Str("symbol", symbol).Str("direction", string(direction)).
			Str("gate", reason).Msg("signal gated")
		return nil, nil
	}

	eval := &Evaluation{
		Symbol:    symbol,
		Mode:      mode,
		Context:   tfCtx,
		Direction: direction,
		Reversion: reversion,
		Book:      e.fetchBookMetrics(ctx, symbol),
	}
	eval.Score = ComputeScore(eval)

	return e.emitter.Emit(ctx, eval)
}

// fetchBookMetrics grabs a depth snapshot for the scoring adjustment. The
// book is best effort; a failed or empty snapshot just skips it.
func (e *Engine) fetchBookMetrics(ctx context.Context, symbol string) *indicators.OrderBookMetrics {
	book, err := e.provider.GetOrderBook(ctx, symbol, e.bookDepth)
	if err != nil {
		e.log.Debug().Err(err).Str("symbol", symbol).Msg("order book unavailable")
		return nil
	}
	metrics, ok := indicators.CalculateOrderBookMetrics(book, e.bookDepth)
	if !ok {
		return nil
	}
	return &metrics
}

func (e *Engine) fetchAnalysis(ctx context.Context, symbol, interval string, limit int) (*Analysis, error) {
	candles, err := e.provider.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	return BuildAnalysis(symbol, interval, candles, e.classifier, e.detector), nil
}

func (e *Engine) fetchOptional(ctx context.Context, symbol, interval string, limit int) *Analysis {
	a, err := e.fetchAnalysis(ctx, symbol, interval, limit)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Str("interval", interval).
			Msg("optional timeframe unavailable")
		return nil
	}
	return a
}
