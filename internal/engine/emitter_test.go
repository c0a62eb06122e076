package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/cooldown"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/regime"
)

func testEvaluation(direction Direction, total float64) *Evaluation {
	working := &Analysis{
		Symbol: "TESTUSDT",
		Price:  100,
		ATR:    2,
		HasATR: true,
	}

	subs := map[Category]float64{}
	for _, cat := range AllCategories {
		subs[cat] = 0.8
	}

	return &Evaluation{
		Symbol:    "TESTUSDT",
		Mode:      ModeByName("BALANCED"),
		Direction: direction,
		Context: MultiTFContext{
			CurrentRegime: regime.TrendingBull,
			Bias:          BiasBullish,
			Working:       working,
		},
		Score: &ScoreResult{
			Total:     total,
			Subscores: subs,
			Reasons:   []string{"Tendencia alcista (EMA20 > EMA50)"},
		},
	}
}

func newTestEmitter() *Emitter {
	return NewEmitter(cooldown.NewMemoryStore(), zerolog.Nop())
}

func TestEmitScoreGate(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.55) // BALANCED threshold is 0.60

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal != nil {
		t.Errorf("score 0.55 under a 0.60 threshold must not emit, got %+v", signal)
	}

	// Exactly at the threshold is still held back
	eval.Score.Total = 0.60
	if signal, _ := e.Emit(context.Background(), eval); signal != nil {
		t.Error("score equal to the threshold must not emit")
	}
}

func TestEmitCategoryGate(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)

	// Only two categories above the per-category threshold
	for _, cat := range AllCategories {
		eval.Score.Subscores[cat] = 0.1
	}
	eval.Score.Subscores[CategoryMomentum] = 0.8
	eval.Score.Subscores[CategoryTrend] = 0.8

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal != nil {
		t.Error("two contributing categories must not satisfy a requirement of three")
	}
}

func TestEmitBuySignalLevels(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	// BALANCED stop multiplier 1.5 on ATR 2 from entry 100
	wantStop := 100 - 2*1.5
	if math.Abs(signal.StopLoss-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want %v", signal.StopLoss, wantStop)
	}
	wantTP1 := 100 + (100-wantStop)*1.5
	wantTP2 := 100 + (100-wantStop)*2.5
	if math.Abs(signal.TakeProfit1-wantTP1) > 1e-9 {
		t.Errorf("tp1 = %v, want %v", signal.TakeProfit1, wantTP1)
	}
	if math.Abs(signal.TakeProfit2-wantTP2) > 1e-9 {
		t.Errorf("tp2 = %v, want %v", signal.TakeProfit2, wantTP2)
	}
	if math.Abs(signal.RiskReward-1.5) > 1e-9 {
		t.Errorf("risk:reward = %v, want 1.5", signal.RiskReward)
	}

	if signal.Score != 75 {
		t.Errorf("score = %v, want 75", signal.Score)
	}
	if signal.Confidence != "MEDIA" {
		t.Errorf("confidence = %s, want MEDIA at 75", signal.Confidence)
	}
	if signal.ID == "" {
		t.Error("signal must carry an id")
	}
	if signal.Regime != regime.TrendingBull {
		t.Errorf("regime = %s, want the governing regime", signal.Regime)
	}
	if signal.CreatedAt.IsZero() {
		t.Error("created timestamp must be set")
	}
}

func TestEmitStructuralStopOverride(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)
	// Support at 98 sits between the ATR stop (97) and the entry (100)
	eval.Context.Working.Swing = indicators.SwingLevels{Support: 98}

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	wantStop := 98 * 0.999
	if math.Abs(signal.StopLoss-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want tightened to just under support %v", signal.StopLoss, wantStop)
	}
	// Targets follow the realized stop, so risk:reward is preserved
	if math.Abs(signal.RiskReward-1.5) > 1e-9 {
		t.Errorf("risk:reward = %v, want 1.5 after the override", signal.RiskReward)
	}
}

func TestEmitSellSignalLevels(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionSell, 0.88)
	eval.Context.Bias = BiasBearish
	eval.Context.CurrentRegime = regime.TrendingBear
	// Resistance at 102 inside the ATR stop band (103)
	eval.Context.Working.Swing = indicators.SwingLevels{Resistance: 102}

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	wantStop := 102 * 1.001
	if math.Abs(signal.StopLoss-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want just above resistance %v", signal.StopLoss, wantStop)
	}
	if signal.TakeProfit1 >= signal.Entry {
		t.Error("a sell target must sit below the entry")
	}
	if signal.TakeProfit2 >= signal.TakeProfit1 {
		t.Error("the second target must extend beyond the first")
	}
	if signal.Confidence != "ALTA" {
		t.Errorf("confidence = %s, want ALTA at 88", signal.Confidence)
	}
}

func TestEmitPercentStopFallback(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)
	eval.Context.Working.HasATR = false

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	wantStop := 100 * (1 - 0.02)
	if math.Abs(signal.StopLoss-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want the 2%% fallback %v", signal.StopLoss, wantStop)
	}

	found := false
	for _, w := range signal.Warnings {
		if w == "ATR no disponible, stop calculado por porcentaje" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings %v must mention the fallback", signal.Warnings)
	}
}

func TestEmitSubscoresPercentScaled(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)
	eval.Score.Subscores[CategoryLevels] = 0.666

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	// Published subscores share the 0-100 scale of the total score
	if math.Abs(signal.Subscores[CategoryMomentum]-80) > 1e-9 {
		t.Errorf("momentum subscore = %v, want 80", signal.Subscores[CategoryMomentum])
	}
	if math.Abs(signal.Subscores[CategoryLevels]-66.6) > 1e-9 {
		t.Errorf("levels subscore = %v, want 66.6 rounded to one decimal", signal.Subscores[CategoryLevels])
	}
}

func TestEmitChoppyStopWidening(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)
	eval.Context.Choppy = true

	signal, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}

	// BALANCED choppy multiplier 2.2 on ATR 2
	wantStop := 100 - 2*2.2
	if math.Abs(signal.StopLoss-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want widened to %v", signal.StopLoss, wantStop)
	}
}

func TestEmitCooldownSuppression(t *testing.T) {
	e := newTestEmitter()
	eval := testEvaluation(DirectionBuy, 0.75)

	first, err := e.Emit(context.Background(), eval)
	if err != nil || first == nil {
		t.Fatalf("first emit = %v, %v; want a signal", first, err)
	}

	second, err := e.Emit(context.Background(), eval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != nil {
		t.Error("identical setup inside the cooldown window must be suppressed")
	}

	// A different primary reason opens a separate cooldown key
	other := testEvaluation(DirectionBuy, 0.75)
	other.Score.Reasons = []string{"Divergencia alcista RSI/precio"}
	third, err := e.Emit(context.Background(), other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third == nil {
		t.Error("a different primary reason must not share the cooldown")
	}
}

func TestConfidenceTiers(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{90, "ALTA"},
		{85, "ALTA"},
		{75, "MEDIA"},
		{70, "MEDIA"},
		{65, "BAJA"},
	}
	for _, tt := range tests {
		if got := confidenceTier(tt.score); got != tt.want {
			t.Errorf("confidenceTier(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestCooldownKeyShape(t *testing.T) {
	s := &Signal{
		Symbol:    "BTCUSDT",
		Direction: DirectionBuy,
		Reasons:   []string{"Tendencia alcista (EMA20 > EMA50)", "Pico de volumen confirmante"},
	}
	want := "BTCUSDT|BUY|Tendencia alcista (EMA20 > EMA50)"
	if got := cooldownKey(s); got != want {
		t.Errorf("key = %q, want %q", got, want)
	}
}

func TestSignalExpiryIndependentOfEmitter(t *testing.T) {
	// Cooldown TTLs come from the mode, not the store
	cfg := ModeByName("SCALPING")
	if cfg.Cooldown >= ModeByName("CONSERVATIVE").Cooldown {
		t.Error("scalping must recycle faster than conservative")
	}
	if cfg.Cooldown < time.Minute {
		t.Errorf("scalping cooldown %v implausibly short", cfg.Cooldown)
	}
}
