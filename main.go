package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/api"
	"crypto-signal-engine/internal/cooldown"
	"crypto-signal-engine/internal/engine"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/notification"
	"crypto-signal-engine/internal/scanner"
	"crypto-signal-engine/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&cfg.Logging)
	logger.Info().Str("mode", cfg.Engine.Mode).Msg("signal engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := buildProvider(cfg, logger)
	store := buildCooldownStore(cfg, logger)

	var history *storage.Repository
	if cfg.Database.Enabled {
		history, err = storage.NewRepository(ctx, cfg.Database.DSN, logging.Component(logger, "storage"))
		if err != nil {
			logger.Warn().Err(err).Msg("signal history disabled, database unavailable")
		} else {
			defer history.Close()
		}
	}

	eng := engine.New(provider, store, logging.Component(logger, "engine"), engine.Options{
		Mode:                cfg.Engine.Mode,
		CandleLimit:         cfg.Engine.CandleLimit,
		ChoppinessThreshold: cfg.Engine.ChoppinessThreshold,
		OrderBookDepth:      cfg.Engine.OrderBookDepth,
	})

	var sinks []scanner.SignalSink
	if history != nil {
		sinks = append(sinks, history)
	}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(
			cfg.Notify.WebhookURL,
			time.Duration(cfg.Notify.TimeoutSeconds)*time.Second,
			logging.Component(logger, "notify"),
		))
	}
	sc := scanner.New(cfg.Scanner, provider, eng, logging.Component(logger, "scanner"), sinks...)

	if cfg.Scanner.Enabled {
		go sc.Run(ctx)
	}

	if !cfg.Market.MockMode && len(cfg.Scanner.WatchSymbols) > 0 {
		startStream(ctx, cfg, sc, logger)
	}

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server, sc, history, logging.Component(logger, "api"))
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("api server failed")
				cancel()
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	cancel()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api shutdown failed")
		}
	}
	logger.Info().Msg("signal engine stopped")
}

func buildProvider(cfg *config.Config, logger zerolog.Logger) market.DataProvider {
	if cfg.Market.MockMode {
		logger.Warn().Msg("mock market data enabled")
		return market.NewMockClient()
	}
	retry := market.RetryPolicy{
		MaxAttempts: cfg.Market.RetryAttempts,
		Backoff:     time.Duration(cfg.Market.RetryBackoffMs) * time.Millisecond,
	}
	return market.NewClient(cfg.Market.BaseURL, time.Duration(cfg.Market.RequestTimeout)*time.Second, retry)
}

func buildCooldownStore(cfg *config.Config, logger zerolog.Logger) cooldown.Store {
	if cfg.Redis.Enabled {
		return cooldown.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			logging.Component(logger, "cooldown"))
	}
	return cooldown.NewMemoryStore()
}

// startStream re-evaluates watched symbols when their working timeframe
// candle closes, so signals land without waiting for the next sweep
func startStream(ctx context.Context, cfg *config.Config, sc *scanner.Scanner, logger zerolog.Logger) {
	mode := engine.ModeByName(cfg.Engine.Mode)
	streamLog := logging.Component(logger, "stream")

	stream := market.NewKlineStream(cfg.Market.WSBaseURL, mode.WorkingInterval, func(event market.KlineEvent) {
		if !event.Final {
			return
		}
		evalCtx, evalCancel := context.WithTimeout(ctx, 30*time.Second)
		defer evalCancel()
		if _, err := sc.EvaluateSymbol(evalCtx, event.Symbol); err != nil {
			streamLog.Warn().Err(err).Str("symbol", event.Symbol).Msg("stream-triggered evaluation failed")
		}
	}, streamLog)
	stream.SetSymbols(cfg.Scanner.WatchSymbols)
	go stream.Run(ctx)
}
