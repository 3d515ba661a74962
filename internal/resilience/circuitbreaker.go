// Package resilience provides a generic circuit breaker, used by the
// Ingestion Workers (C6, outbound HTTP to Binance), so a failing downstream
// stops being hammered with requests it can't serve anyway.
//
// Grounded on internal/store/redis/circuitbreaker.go, kept domain-agnostic
// exactly as the teacher wrote it — the type already had no Redis-specific
// fields, it just lived in the wrong package for a concept this generic.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute when the circuit is open and the cooldown
// has not yet elapsed.
var ErrOpen = errors.New("resilience: circuit breaker is open")

// CircuitBreaker trips to open after FailureThreshold consecutive failures,
// stays open for Cooldown, then allows a single half-open trial call before
// deciding whether to close again or re-open.
type CircuitBreaker struct {
	FailureThreshold int
	Cooldown         time.Duration
	HalfOpenMaxCalls int

	OnStateChange func(from, to State)

	mu              sync.Mutex
	state           State
	failures        int
	openedAt        time.Time
	halfOpenCalls   int
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		FailureThreshold: failureThreshold,
		Cooldown:         cooldown,
		HalfOpenMaxCalls: 1,
		state:            StateClosed,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn if the circuit allows it, recording the outcome. It
// returns ErrOpen without calling fn when the circuit is open and the
// cooldown has not elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrOpen
	}
	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.Cooldown {
			cb.transition(StateHalfOpen)
			cb.halfOpenCalls = 1 // this call is the trial
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state != StateClosed {
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures++
	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
		cb.openedAt = time.Now()
	case StateClosed:
		if cb.failures >= cb.FailureThreshold {
			cb.transition(StateOpen)
			cb.openedAt = time.Now()
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil && from != to {
		cb.OnStateChange(from, to)
	}
}
