// Package circuit implements a circuit breaker for the exchange data
// boundary. Repeated upstream failures open the breaker so the engine
// stops hammering a degraded API; after a cooldown a single probe request
// is allowed through.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the breaker's lifecycle state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Requests refused
	StateHalfOpen BreakerState = "half_open" // One probe allowed
)

// Config holds breaker thresholds
type Config struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	Cooldown         time.Duration `json:"cooldown"`          // Open duration before a probe
}

// DefaultConfig returns thresholds suited to a public exchange API
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker tracks consecutive request failures
type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         BreakerState
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker creates a closed breaker
func NewBreaker(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a request may proceed. While open it returns an
// error carrying the remaining cooldown; after the cooldown it lets one
// probe through in half-open state.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		elapsed := time.Since(b.openedAt)
		if elapsed < b.cfg.Cooldown {
			return fmt.Errorf("circuit open, retry in %v", (b.cfg.Cooldown - elapsed).Round(time.Second))
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return nil
	default: // half-open
		if b.probeInFlight {
			return fmt.Errorf("circuit half-open, probe in flight")
		}
		b.probeInFlight = true
		return nil
	}
}

// RecordSuccess closes the breaker and clears the failure count
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probeInFlight = false
}

// RecordFailure counts a failure; at the threshold (or on a failed probe)
// the breaker opens
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probeInFlight = false

	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
