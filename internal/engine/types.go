package engine

import (
	"errors"
	"time"

	"crypto-signal-engine/internal/regime"
)

// Direction is the trade side of a signal
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Bias is the directional lean derived from the current regime
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// ErrInsufficientData marks a symbol whose candle history cannot support
// the core indicator set (RSI, MACD, Bollinger, EMA200). The whole symbol
// is skipped rather than scored on partial data.
var ErrInsufficientData = errors.New("insufficient candle data for analysis")

// Signal is an emitted trade alert. Score is the internal confluence score
// scaled to 0-100.
type Signal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Mode       Mode      `json:"mode"`
	Score      float64   `json:"score"`
	Confidence string    `json:"confidence"`

	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2"`
	RiskReward  float64 `json:"risk_reward"`

	Regime    regime.Label         `json:"regime"`
	Subscores map[Category]float64 `json:"subscores"`
	Reasons   []string             `json:"reasons"`
	Warnings  []string             `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PrimaryReason is the lead reason, used for cooldown keying
func (s *Signal) PrimaryReason() string {
	if len(s.Reasons) == 0 {
		return ""
	}
	return s.Reasons[0]
}

// Confidence tiers by 0-100 score
func confidenceTier(score float64) string {
	switch {
	case score >= 85:
		return "ALTA"
	case score >= 70:
		return "MEDIA"
	default:
		return "BAJA"
	}
}
