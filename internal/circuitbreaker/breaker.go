// Package circuitbreaker stops calls to an upstream that keeps failing.
// The push transport wraps every web push endpoint call in one so a dead
// push service cannot tie up send goroutines in retries.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker opens after maxFailures consecutive failures and stays
// open for timeout. The first call after the timeout probes the upstream:
// success closes the circuit, failure reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures int
	timeout     time.Duration

	state    State
	failures int
	openedAt time.Time
}

func New(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		timeout:     timeout,
	}
}

func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) <= cb.timeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.state = StateClosed
	cb.failures = 0
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = time.Now()
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}
