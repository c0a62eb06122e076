package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return current }

	ctx := context.Background()
	key := "BTCUSDT|BUY|Tendencia alcista (EMA20 > EMA50)"

	active, err := s.Active(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active {
		t.Error("unknown key must not be active")
	}

	if err := s.Mark(ctx, key, 2*time.Hour); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	active, _ = s.Active(ctx, key)
	if !active {
		t.Error("freshly marked key must be active")
	}

	current = current.Add(time.Hour)
	active, _ = s.Active(ctx, key)
	if !active {
		t.Error("key must stay active inside its window")
	}

	current = current.Add(90 * time.Minute)
	active, _ = s.Active(ctx, key)
	if active {
		t.Error("key must expire after its window")
	}

	// Expired entries are dropped; the key can be marked again
	if err := s.Mark(ctx, key, time.Minute); err != nil {
		t.Fatalf("re-mark failed: %v", err)
	}
	if active, _ = s.Active(ctx, key); !active {
		t.Error("re-marked key must be active")
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Mark(ctx, "BTCUSDT|BUY|a", time.Hour); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if active, _ := s.Active(ctx, "BTCUSDT|SELL|a"); active {
		t.Error("a different direction must not share the window")
	}
	if active, _ := s.Active(ctx, "BTCUSDT|BUY|b"); active {
		t.Error("a different reason must not share the window")
	}
	if active, _ := s.Active(ctx, "BTCUSDT|BUY|a"); !active {
		t.Error("the marked key itself must be active")
	}
}

func TestRedisStoreFallsBackWhenUnreachable(t *testing.T) {
	// Nothing listens on this port; the store must degrade to memory
	// without failing construction.
	s := NewRedisStore("127.0.0.1:1", "", 0, zerolog.Nop())
	defer s.Close()

	ctx := context.Background()
	key := "ETHUSDT|BUY|x"

	if err := s.Mark(ctx, key, time.Hour); err != nil {
		t.Fatalf("mark must be best effort, got %v", err)
	}
	active, err := s.Active(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Error("the memory fallback must keep the window")
	}
}
