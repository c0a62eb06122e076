package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"crypto-signal-engine/internal/logging"
)

// Config is the top-level application configuration. It is loaded once at
// startup; engine components receive resolved sub-structs and never read
// the environment themselves.
type Config struct {
	Market   MarketConfig   `json:"market"`
	Scanner  ScannerConfig  `json:"scanner"`
	Engine   EngineConfig   `json:"engine"`
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	Database DatabaseConfig `json:"database"`
	Notify   NotifyConfig   `json:"notify"`
	Logging  logging.Config `json:"logging"`
}

// MarketConfig holds market data provider settings
type MarketConfig struct {
	BaseURL        string `json:"base_url"`
	WSBaseURL      string `json:"ws_base_url"`
	RequestTimeout int    `json:"request_timeout"` // Seconds per HTTP call
	RetryAttempts  int    `json:"retry_attempts"`  // Bounded retry at the fetch boundary
	RetryBackoffMs int    `json:"retry_backoff_ms"`
	MockMode       bool   `json:"mock_mode"` // Use simulated data when the exchange is unavailable
}

// ScannerConfig holds symbol universe scan settings
type ScannerConfig struct {
	Enabled        bool     `json:"enabled"`
	ScanInterval   int      `json:"scan_interval"`   // Seconds between cycles
	MaxSymbols     int      `json:"max_symbols"`     // Universe size, ranked by quote volume
	BatchSize      int      `json:"batch_size"`      // Symbols evaluated per batch
	PacingDelayMs  int      `json:"pacing_delay_ms"` // Static delay between fetches
	MinQuoteVolume float64  `json:"min_quote_volume"`
	QuoteCurrency  string   `json:"quote_currency"`
	WatchSymbols   []string `json:"watch_symbols"` // Overrides the ranked universe when set
}

// EngineConfig holds signal engine settings
type EngineConfig struct {
	Mode                string  `json:"mode"` // CONSERVATIVE, BALANCED, RISKY, SCALPING
	CandleLimit         int     `json:"candle_limit"`
	ChoppinessThreshold float64 `json:"choppiness_threshold"`
	OrderBookDepth      int     `json:"order_book_depth"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// RedisConfig holds cooldown store backing settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig holds signal history persistence settings
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// NotifyConfig holds outbound signal delivery settings. An empty webhook
// URL disables delivery.
type NotifyConfig struct {
	WebhookURL     string `json:"webhook_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Market: MarketConfig{
			BaseURL:        "https://api.binance.com",
			WSBaseURL:      "wss://stream.binance.com:9443/ws",
			RequestTimeout: 10,
			RetryAttempts:  3,
			RetryBackoffMs: 500,
		},
		Scanner: ScannerConfig{
			Enabled:        true,
			ScanInterval:   300,
			MaxSymbols:     30,
			BatchSize:      3,
			PacingDelayMs:  500,
			MinQuoteVolume: 1_000_000,
			QuoteCurrency:  "USDT",
		},
		Engine: EngineConfig{
			Mode:                "BALANCED",
			CandleLimit:         300,
			ChoppinessThreshold: 60,
			OrderBookDepth:      20,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Database: DatabaseConfig{
			Enabled: false,
		},
		Notify: NotifyConfig{
			TimeoutSeconds: 10,
		},
		Logging: logging.Config{
			Level:  "INFO",
			Output: "stdout",
		},
	}
}

// LoadConfig loads configuration from a JSON file, falling back to defaults
// for missing fields, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides for
// deployment-sensitive values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENGINE_MODE"); v != "" {
		cfg.Engine.Mode = v
	}
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Scanner.BatchSize <= 0 {
		c.Scanner.BatchSize = 3
	}
	if c.Scanner.MaxSymbols <= 0 {
		return fmt.Errorf("scanner max_symbols must be positive")
	}
	if c.Engine.CandleLimit < 50 {
		return fmt.Errorf("engine candle_limit must be at least 50, got %d", c.Engine.CandleLimit)
	}
	if c.Market.RetryAttempts < 1 {
		c.Market.RetryAttempts = 1
	}
	return nil
}

// PacingDelay returns the static inter-fetch delay as a duration.
func (c *ScannerConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMs) * time.Millisecond
}
