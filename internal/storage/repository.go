// Package storage persists emitted signals to PostgreSQL for history and
// later review. The schema is created on startup if missing.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/engine"
	"crypto-signal-engine/internal/regime"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS signals (
	id           UUID PRIMARY KEY,
	symbol       TEXT NOT NULL,
	direction    TEXT NOT NULL,
	mode         TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	confidence   TEXT NOT NULL,
	entry        DOUBLE PRECISION NOT NULL,
	stop_loss    DOUBLE PRECISION NOT NULL,
	take_profit_1 DOUBLE PRECISION NOT NULL,
	take_profit_2 DOUBLE PRECISION NOT NULL,
	risk_reward  DOUBLE PRECISION NOT NULL,
	regime       TEXT NOT NULL,
	subscores    JSONB NOT NULL,
	reasons      JSONB NOT NULL,
	warnings     JSONB,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_created ON signals (symbol, created_at DESC);
`

// Repository stores and queries signal history
type Repository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewRepository connects a pgx pool and ensures the schema exists
func NewRepository(ctx context.Context, dsn string, logger zerolog.Logger) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create signals schema: %w", err)
	}

	return &Repository{pool: pool, log: logger}, nil
}

// Close releases the connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// SaveSignal inserts one emitted signal
func (r *Repository) SaveSignal(ctx context.Context, s *engine.Signal) error {
	subscores, err := json.Marshal(s.Subscores)
	if err != nil {
		return fmt.Errorf("marshal subscores: %w", err)
	}
	reasons, err := json.Marshal(s.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	warnings, err := json.Marshal(s.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO signals (
			id, symbol, direction, mode, score, confidence,
			entry, stop_loss, take_profit_1, take_profit_2, risk_reward,
			regime, subscores, reasons, warnings, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		s.ID, s.Symbol, string(s.Direction), string(s.Mode), s.Score, s.Confidence,
		s.Entry, s.StopLoss, s.TakeProfit1, s.TakeProfit2, s.RiskReward,
		string(s.Regime), subscores, reasons, warnings, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", s.ID, err)
	}
	return nil
}

// RecentSignals returns the newest stored signals, optionally filtered by
// symbol
func (r *Repository) RecentSignals(ctx context.Context, symbol string, limit int) ([]*engine.Signal, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, direction, mode, score, confidence,
		       entry, stop_loss, take_profit_1, take_profit_2, risk_reward,
		       regime, subscores, reasons, warnings, created_at
		FROM signals`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, symbol, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []*engine.Signal
	for rows.Next() {
		var (
			s                            engine.Signal
			direction, mode, label       string
			subscores, reasons, warnings []byte
		)
		err := rows.Scan(
			&s.ID, &s.Symbol, &direction, &mode, &s.Score, &s.Confidence,
			&s.Entry, &s.StopLoss, &s.TakeProfit1, &s.TakeProfit2, &s.RiskReward,
			&label, &subscores, &reasons, &warnings, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		s.Direction = engine.Direction(direction)
		s.Mode = engine.Mode(mode)
		s.Regime = regime.Label(label)
		if err := json.Unmarshal(subscores, &s.Subscores); err != nil {
			r.log.Warn().Err(err).Str("id", s.ID).Msg("corrupt subscores column")
		}
		if err := json.Unmarshal(reasons, &s.Reasons); err != nil {
			r.log.Warn().Err(err).Str("id", s.ID).Msg("corrupt reasons column")
		}
		if len(warnings) > 0 {
			_ = json.Unmarshal(warnings, &s.Warnings)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Publish implements the scanner sink by persisting the signal
func (r *Repository) Publish(ctx context.Context, s *engine.Signal) error {
	return r.SaveSignal(ctx, s)
}
