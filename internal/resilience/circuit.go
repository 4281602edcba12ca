// Package resilience guards answer surface calls with retries and
// per-surface circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout passes.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected by an open circuit.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Name identifies the guarded surface in logs.
	Name string

	// FailureThreshold is the consecutive failure count that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open. Default: 60s.
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is the number of successful probes needed to close
	// the circuit again, and the number of probes allowed in flight while
	// half-open. Default: 1.
	HalfOpenMaxProbes int

	// ShouldTrip overrides which errors count as failures. By default every
	// error except caller cancellation does.
	ShouldTrip func(err error) bool
}

// DefaultCircuitBreakerConfig returns the defaults for a single surface.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      time.Minute,
		HalfOpenMaxProbes: 1,
	}
}

// CircuitBreaker stops calling a surface after repeated failures.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     CircuitState
	failures  int
	openedAt  time.Time
	successes int
	// probes counts half-open calls in flight; gen changes on every state
	// change so stale probes are not counted against a later period.
	probes int
	gen    uint64

	now func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute for functions that return a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	gen, probe, err := cb.admit()
	if err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err, gen, probe)
	return val, err
}

// State returns the current state, reporting an expired open circuit as
// half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.expired() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset closes the circuit and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(CircuitClosed)
}

func (cb *CircuitBreaker) expired() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

// admit reports whether a call may run. Calls admitted while half-open are
// probes, tagged with the generation they were admitted in.
func (cb *CircuitBreaker) admit() (gen uint64, probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitClosed:
		return cb.gen, false, nil
	case CircuitOpen:
		if !cb.expired() {
			return 0, false, eris.Wrapf(ErrCircuitOpen, "resilience: %s", cb.cfg.Name)
		}
		cb.moveTo(CircuitHalfOpen)
	}
	if cb.probes >= cb.cfg.HalfOpenMaxProbes {
		return 0, false, eris.Wrapf(ErrCircuitOpen, "resilience: %s probe in flight", cb.cfg.Name)
	}
	cb.probes++
	return cb.gen, true, nil
}

func (cb *CircuitBreaker) record(err error, gen uint64, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && gen == cb.gen && cb.probes > 0 {
		cb.probes--
	}

	if err == nil || !cb.cfg.ShouldTrip(err) {
		switch cb.state {
		case CircuitHalfOpen:
			cb.successes++
			if cb.successes >= cb.cfg.HalfOpenMaxProbes {
				cb.moveTo(CircuitClosed)
			}
		case CircuitClosed:
			cb.failures = 0
		}
		return
	}

	cb.failures++
	switch {
	case cb.state == CircuitHalfOpen:
		cb.moveTo(CircuitOpen)
	case cb.state == CircuitClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.moveTo(CircuitOpen)
	}
}

// moveTo changes state and resets the counters the new state starts from.
// Callers hold cb.mu.
func (cb *CircuitBreaker) moveTo(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successes = 0
	cb.probes = 0
	cb.gen++
	switch to {
	case CircuitClosed:
		cb.failures = 0
	case CircuitOpen:
		cb.openedAt = cb.now()
	}
	if from != to {
		zap.L().Info("circuit breaker state change",
			zap.String("surface", cb.cfg.Name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}

// Breakers hands out one circuit breaker per surface name.
type Breakers struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewBreakers creates a registry whose breakers share cfg.
func NewBreakers(cfg CircuitBreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for surface, creating it on first use.
func (b *Breakers) Get(surface string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[surface]; ok {
		return cb
	}
	cfg := b.cfg
	cfg.Name = surface
	cb := NewCircuitBreaker(cfg)
	b.breakers[surface] = cb
	return cb
}

// States returns a snapshot of every breaker's state keyed by surface.
func (b *Breakers) States() map[string]CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]CircuitState, len(b.breakers))
	for name, cb := range b.breakers {
		out[name] = cb.State()
	}
	return out
}
