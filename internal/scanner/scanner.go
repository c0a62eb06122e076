// Package scanner sweeps a symbol universe through the signal engine on a
// fixed cycle, pacing exchange requests and fanning emitted signals out to
// registered sinks.
package scanner

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/engine"
	"crypto-signal-engine/internal/market"
)

// SignalSink receives every emitted signal. Sinks must not block the scan
// loop for long; slow delivery is the sink's problem.
type SignalSink interface {
	Publish(ctx context.Context, signal *engine.Signal) error
}

// Scanner runs the periodic sweep
type Scanner struct {
	cfg      config.ScannerConfig
	provider market.DataProvider
	engine   *engine.Engine
	sinks    []SignalSink
	log      zerolog.Logger

	mu        sync.RWMutex
	lastRun   time.Time
	universe  []string
	recent    []*engine.Signal
	maxRecent int
}

// New creates a scanner. Sinks registered here receive every signal the
// engine emits during sweeps.
func New(cfg config.ScannerConfig, provider market.DataProvider, eng *engine.Engine, logger zerolog.Logger, sinks ...SignalSink) *Scanner {
	return &Scanner{
		cfg:       cfg,
		provider:  provider,
		engine:    eng,
		sinks:     sinks,
		log:       logger,
		maxRecent: 100,
	}
}

// Run executes sweep cycles until the context is cancelled
func (s *Scanner) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.ScanInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.log.Info().Dur("interval", interval).Int("batch_size", s.cfg.BatchSize).
		Msg("scanner started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scanner stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep evaluates the whole universe once. Per-symbol failures are logged
// and skipped; one bad symbol never aborts the cycle.
func (s *Scanner) Sweep(ctx context.Context) {
	symbols, err := s.Universe(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("universe refresh failed, sweep skipped")
		return
	}

	started := time.Now()
	emitted := 0

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	for start := 0; start < len(symbols); start += batchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		for _, symbol := range symbols[start:end] {
			if sig := s.evaluate(ctx, symbol); sig != nil {
				emitted++
			}
		}
		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.PacingDelay()):
			}
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.log.Info().Int("symbols", len(symbols)).Int("signals", emitted).
		Dur("took", time.Since(started)).Msg("sweep complete")
}

// EvaluateSymbol runs one symbol outside the sweep cycle, for on-demand
// scans and stream-triggered re-evaluation
func (s *Scanner) EvaluateSymbol(ctx context.Context, symbol string) (*engine.Signal, error) {
	sig, err := s.engine.Evaluate(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if sig != nil {
		s.record(ctx, sig)
	}
	return sig, nil
}

func (s *Scanner) evaluate(ctx context.Context, symbol string) *engine.Signal {
	sig, err := s.engine.Evaluate(ctx, symbol)
	if err != nil {
		if errors.Is(err, engine.ErrInsufficientData) {
			s.log.Debug().Str("symbol", symbol).Msg("skipped, not enough history")
		} else {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("symbol evaluation failed")
		}
		return nil
	}
	if sig == nil {
		return nil
	}
	s.record(ctx, sig)
	return sig
}

func (s *Scanner) record(ctx context.Context, sig *engine.Signal) {
	s.mu.Lock()
	s.recent = append([]*engine.Signal{sig}, s.recent...)
	if len(s.recent) > s.maxRecent {
		s.recent = s.recent[:s.maxRecent]
	}
	s.mu.Unlock()

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, sig); err != nil {
			s.log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("signal sink failed")
		}
	}
}

// Universe returns the symbols to sweep: the configured watch list when
// set, otherwise the top quote-volume symbols in the configured quote
// currency. The ranked universe is cached per sweep.
func (s *Scanner) Universe(ctx context.Context) ([]string, error) {
	if len(s.cfg.WatchSymbols) > 0 {
		return s.cfg.WatchSymbols, nil
	}

	tickers, err := s.provider.Get24hrTickers(ctx)
	if err != nil {
		s.mu.RLock()
		cached := s.universe
		s.mu.RUnlock()
		if len(cached) > 0 {
			s.log.Warn().Err(err).Msg("ticker refresh failed, using cached universe")
			return cached, nil
		}
		return nil, err
	}

	type ranked struct {
		symbol string
		volume float64
	}
	var candidates []ranked
	for _, t := range tickers {
		if s.cfg.QuoteCurrency != "" && !strings.HasSuffix(t.Symbol, s.cfg.QuoteCurrency) {
			continue
		}
		vol := t.QuoteVolume
		if vol < s.cfg.MinQuoteVolume {
			continue
		}
		candidates = append(candidates, ranked{symbol: t.Symbol, volume: vol})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].volume > candidates[j].volume
	})

	max := s.cfg.MaxSymbols
	if max <= 0 || max > len(candidates) {
		max = len(candidates)
	}
	symbols := make([]string, 0, max)
	for _, c := range candidates[:max] {
		symbols = append(symbols, c.symbol)
	}

	s.mu.Lock()
	s.universe = symbols
	s.mu.Unlock()

	return symbols, nil
}

// Recent returns the newest emitted signals, newest first, optionally
// filtered by symbol
func (s *Scanner) Recent(symbol string) []*engine.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*engine.Signal, 0, len(s.recent))
	for _, sig := range s.recent {
		if symbol != "" && sig.Symbol != symbol {
			continue
		}
		out = append(out, sig)
	}
	return out
}

// LastRun reports when the previous sweep finished
func (s *Scanner) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}
