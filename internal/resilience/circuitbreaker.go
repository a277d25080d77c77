// Package resilience keeps a failing speech backend from stalling text
// review.
//
// [CircuitBreaker] stops calling a provider after repeated failures and
// probes it again once a cool-down has passed. [FallbackGroup] chains several
// providers of the same kind, each behind its own breaker, and [TTSFallback]
// applies that to [tts.Provider].
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until ResetTimeout has passed since the last
	// failure.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax probes through. That many
	// successes close the breaker; any failure opens it again.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

// String returns the lower-case name of s.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take the
// documented defaults.
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the run of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is the cool-down before an open breaker admits probes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the probe concurrency and the number of
	// successful probes that close the breaker. Default: 3.
	HalfOpenMax int

	// IsFailure reports whether err counts against the provider. Errors it
	// rejects neither trip nor reset the breaker. Default: everything except
	// [context.Canceled], since a client hanging up on /v1/speak says nothing
	// about the backend.
	IsFailure func(error) bool

	// OnStateChange runs after each transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMax <= 0 {
		c.HalfOpenMax = 3
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// CircuitBreaker is a closed/open/half-open breaker around one provider.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // time of the failure that last opened or extended the open state
	probes   int       // half-open probes admitted and not yet failed
	passed   int       // half-open probes that succeeded
}

// NewCircuitBreaker returns a closed breaker configured by cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg.applyDefaults()
	return &CircuitBreaker{cfg: cfg}
}

// Name returns the breaker's label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute calls fn unless the breaker rejects it with [ErrCircuitOpen], and
// accounts for fn's result.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

// admit decides whether a call may proceed and whether it is a half-open
// probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.state, cb.probes, cb.passed = StateHalfOpen, 0, 0
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.probes++
		probe = true
	}
	to := cb.state
	cb.mu.Unlock()

	cb.transitioned(from, to)
	return probe, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	from := cb.state
	switch {
	case err != nil && cb.cfg.IsFailure(err):
		cb.openedAt = cb.cfg.Now()
		if probe {
			if cb.state == StateHalfOpen {
				cb.state = StateOpen
				cb.failures = cb.cfg.MaxFailures
			}
		} else if cb.failures++; cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
			cb.state = StateOpen
		}

	case err != nil:
		if probe {
			cb.probes--
		}

	case !probe:
		cb.failures = 0

	case cb.state == StateHalfOpen:
		if cb.passed++; cb.passed >= cb.cfg.HalfOpenMax {
			cb.state, cb.failures, cb.probes, cb.passed = StateClosed, 0, 0, 0
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.transitioned(from, to)
}

func (cb *CircuitBreaker) transitioned(from, to State) {
	if from == to {
		return
	}
	slog.Info("circuit breaker state change", "name", cb.cfg.Name, "from", from.String(), "to", to.String())
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the breaker's state. An open breaker whose cool-down has
// passed reports [StateHalfOpen]; it switches for real on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state, cb.failures, cb.probes, cb.passed = StateClosed, 0, 0, 0
	cb.mu.Unlock()
	cb.transitioned(from, StateClosed)
}
