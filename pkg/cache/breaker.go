package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrBreakerOpen is returned by store operations while the circuit breaker
// is open. Callers treat it like any other backing store failure: degrade to
// stale-serve or fail-soft, never crash.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Breaker thresholds.
const (
	// breakerFailureThreshold opens the breaker after this many
	// consecutive connector failures.
	breakerFailureThreshold = 5

	// breakerResetInterval is how long the breaker stays open before
	// letting a single probe operation through (half-open).
	breakerResetInterval = 30 * time.Second
)

// Breaker tracks consecutive backing store failures and gates operations
// once the store looks unavailable, so every request does not pay a
// connection timeout while Redis is down.
type Breaker struct {
	mu       sync.Mutex
	failures int
	open     bool
	openedAt time.Time
	halfOpen bool
	logger   zerolog.Logger
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(logger zerolog.Logger) *Breaker {
	return &Breaker{logger: logger}
}

// Allow reports whether an operation may proceed. While open, exactly one
// probe operation is let through per reset interval.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}

	if time.Since(b.openedAt) >= breakerResetInterval && !b.halfOpen {
		b.halfOpen = true
		b.logger.Info().Msg("Circuit breaker half-open, probing backing store")
		return true
	}

	breakerRejects.Inc()
	return false
}

// Success records a successful operation and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		b.logger.Info().Msg("Circuit breaker closed, backing store recovered")
	}
	b.failures = 0
	b.open = false
	b.halfOpen = false
	breakerState.Set(0)
}

// Failure records a failed operation, opening the breaker at the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.halfOpen {
		// Probe failed: stay open for another interval.
		b.halfOpen = false
		b.openedAt = time.Now()
		return
	}
	if !b.open && b.failures >= breakerFailureThreshold {
		b.open = true
		b.openedAt = time.Now()
		breakerState.Set(1)
		b.logger.Error().
			Int("consecutive_failures", b.failures).
			Msg("Circuit breaker opened, backing store unavailable")
	}
}

// Open reports whether the breaker is currently open.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
