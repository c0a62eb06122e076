package engine

import (
	"strings"
	"time"
)

// Mode is a named trading mode preset
type Mode string

const (
	ModeConservative Mode = "CONSERVATIVE"
	ModeBalanced     Mode = "BALANCED"
	ModeRisky        Mode = "RISKY"
	ModeScalping     Mode = "SCALPING"
)

// Category is one analytical scoring category
type Category string

const (
	CategoryMomentum      Category = "momentum"
	CategoryTrend         Category = "trend"
	CategoryTrendStrength Category = "trend_strength"
	CategoryLevels        Category = "levels"
	CategoryVolume        Category = "volume"
	CategoryPatterns      Category = "patterns"
	CategoryDivergence    Category = "divergence"
	CategoryAccumulation  Category = "accumulation"
)

// AllCategories lists scoring categories in evaluation order
var AllCategories = []Category{
	CategoryMomentum,
	CategoryTrend,
	CategoryTrendStrength,
	CategoryLevels,
	CategoryVolume,
	CategoryPatterns,
	CategoryDivergence,
	CategoryAccumulation,
}

// ModeConfig is an immutable trading mode preset. Weights need not sum to
// one; the final score is clamped to [0,1].
type ModeConfig struct {
	Mode    Mode                 `json:"mode"`
	Weights map[Category]float64 `json:"weights"`

	// Emission gates
	ScoreToEmit        float64 `json:"score_to_emit"`       // Final score must exceed this
	RequiredCategories int     `json:"required_categories"` // Subscores above CategoryThreshold
	CategoryThreshold  float64 `json:"category_threshold"`

	// Risk levels
	StopATRMultiplier       float64 `json:"stop_atr_multiplier"`
	ChoppyStopATRMultiplier float64 `json:"choppy_stop_atr_multiplier"`

	// Re-alert suppression window per (symbol, direction, reason)
	Cooldown time.Duration `json:"cooldown"`

	// Timeframes
	WorkingInterval string `json:"working_interval"`
	TriggerInterval string `json:"trigger_interval"`
}

// Presets for every trading mode. Boost behavior is deliberately
// asymmetric per mode (see applyBoosts).
var modePresets = map[Mode]ModeConfig{
	ModeConservative: {
		Mode: ModeConservative,
		Weights: map[Category]float64{
			CategoryMomentum:      0.15,
			CategoryTrend:         0.25,
			CategoryTrendStrength: 0.15,
			CategoryLevels:        0.15,
			CategoryVolume:        0.10,
			CategoryPatterns:      0.05,
			CategoryDivergence:    0.10,
			CategoryAccumulation:  0.05,
		},
		ScoreToEmit:             0.70,
		RequiredCategories:      5,
		CategoryThreshold:       0.5,
		StopATRMultiplier:       2.0,
		ChoppyStopATRMultiplier: 2.8,
		Cooldown:                4 * time.Hour,
		WorkingInterval:         "1h",
		TriggerInterval:         "15m",
	},
	ModeBalanced: {
		Mode: ModeBalanced,
		Weights: map[Category]float64{
			CategoryMomentum:      0.20,
			CategoryTrend:         0.20,
			CategoryTrendStrength: 0.10,
			CategoryLevels:        0.15,
			CategoryVolume:        0.10,
			CategoryPatterns:      0.10,
			CategoryDivergence:    0.10,
			CategoryAccumulation:  0.05,
		},
		ScoreToEmit:             0.60,
		RequiredCategories:      3,
		CategoryThreshold:       0.5,
		StopATRMultiplier:       1.5,
		ChoppyStopATRMultiplier: 2.2,
		Cooldown:                2 * time.Hour,
		WorkingInterval:         "1h",
		TriggerInterval:         "15m",
	},
	ModeRisky: {
		Mode: ModeRisky,
		Weights: map[Category]float64{
			CategoryMomentum:      0.30,
			CategoryTrend:         0.10,
			CategoryTrendStrength: 0.05,
			CategoryLevels:        0.10,
			CategoryVolume:        0.10,
			CategoryPatterns:      0.15,
			CategoryDivergence:    0.15,
			CategoryAccumulation:  0.05,
		},
		ScoreToEmit:             0.50,
		RequiredCategories:      3,
		CategoryThreshold:       0.5,
		StopATRMultiplier:       1.2,
		ChoppyStopATRMultiplier: 1.8,
		Cooldown:                45 * time.Minute,
		WorkingInterval:         "1h",
		TriggerInterval:         "15m",
	},
	ModeScalping: {
		Mode: ModeScalping,
		Weights: map[Category]float64{
			CategoryMomentum:      0.35,
			CategoryTrend:         0.10,
			CategoryTrendStrength: 0.05,
			CategoryLevels:        0.15,
			CategoryVolume:        0.15,
			CategoryPatterns:      0.10,
			CategoryDivergence:    0.05,
			CategoryAccumulation:  0.05,
		},
		ScoreToEmit:             0.55,
		RequiredCategories:      3,
		CategoryThreshold:       0.5,
		StopATRMultiplier:       1.0,
		ChoppyStopATRMultiplier: 1.5,
		Cooldown:                20 * time.Minute,
		WorkingInterval:         "15m",
		TriggerInterval:         "5m",
	},
}

// ModeByName resolves a mode preset by name. Unresolved names fall back
// to BALANCED.
func ModeByName(name string) ModeConfig {
	if cfg, ok := modePresets[Mode(strings.ToUpper(strings.TrimSpace(name)))]; ok {
		return cfg
	}
	return modePresets[ModeBalanced]
}

// AllModes returns every preset, for the API surface
func AllModes() []ModeConfig {
	return []ModeConfig{
		modePresets[ModeConservative],
		modePresets[ModeBalanced],
		modePresets[ModeRisky],
		modePresets[ModeScalping],
	}
}
