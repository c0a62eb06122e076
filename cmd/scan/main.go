// One-shot analyzer: evaluates a single symbol in a chosen mode and
// prints the result as JSON. Useful for checking what the engine sees on
// a symbol without running the full service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/cooldown"
	"crypto-signal-engine/internal/engine"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to evaluate, e.g. BTCUSDT")
	mode := flag.String("mode", "BALANCED", "trading mode")
	configPath := flag.String("config", "config.json", "path to configuration file")
	flag.Parse()

	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "usage: scan -symbol BTCUSDT [-mode CONSERVATIVE|BALANCED|RISKY|SCALPING]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&cfg.Logging)

	retry := market.RetryPolicy{
		MaxAttempts: cfg.Market.RetryAttempts,
		Backoff:     time.Duration(cfg.Market.RetryBackoffMs) * time.Millisecond,
	}
	client := market.NewClient(cfg.Market.BaseURL, time.Duration(cfg.Market.RequestTimeout)*time.Second, retry)

	eng := engine.New(client, cooldown.NewMemoryStore(), logger, engine.Options{
		Mode:                *mode,
		CandleLimit:         cfg.Engine.CandleLimit,
		ChoppinessThreshold: cfg.Engine.ChoppinessThreshold,
		OrderBookDepth:      cfg.Engine.OrderBookDepth,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sig, err := eng.EvaluateMode(ctx, *symbol, engine.ModeByName(*mode))
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
		os.Exit(1)
	}
	if sig == nil {
		fmt.Printf("%s: no signal\n", *symbol)
		return
	}

	out, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode signal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
