package concurrency

import (
	"context"
	"errors"
	"sync"
	"time"

	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// halfOpenSuccesses is the number of consecutive successes that closes a half-open circuit
const halfOpenSuccesses = 3

// CircuitBreaker stops admitting remote operations after a run of
// consecutive upstream failures, so a dead upstream fails fast instead of
// queueing a whole traversal behind it. Answers that prove the upstream is
// alive (not found, unauthorized, bad request, malformed payloads) and
// caller cancellations neither trip nor heal the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int64
	successes int64
	openedAt  time.Time
	lastCause error

	threshold    int64
	resetTimeout time.Duration
}

// NewCircuitBreaker creates a circuit breaker that opens after threshold
// consecutive upstream failures and admits trial operations again after resetTimeout.
func NewCircuitBreaker(threshold int64, resetTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 10
	}
	if resetTimeout <= 0 {
		resetTimeout = defaultBreakerResetTimeout
	}
	return &CircuitBreaker{threshold: threshold, resetTimeout: resetTimeout}
}

// IsOpen reports whether operations should be refused. An open circuit whose
// reset timeout has elapsed moves to half-open and admits trial operations.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return false
	}
	if time.Since(cb.openedAt) > cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.successes = 0
		return false
	}
	return true
}

// Record classifies the outcome of one remote operation
func (cb *CircuitBreaker) Record(err error) {
	switch {
	case err == nil:
		cb.RecordSuccess()
	case upstreamFailure(err):
		cb.recordFailure(err)
	}
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= halfOpenSuccesses {
		cb.state = StateClosed
		cb.successes = 0
		cb.lastCause = nil
	}
}

// RecordFailure records a failed operation regardless of its cause
func (cb *CircuitBreaker) RecordFailure() {
	cb.recordFailure(nil)
}

func (cb *CircuitBreaker) recordFailure(cause error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successes = 0
	cb.failures++

	switch cb.state {
	case StateClosed:
		if cb.failures < cb.threshold {
			return
		}
	case StateOpen:
		return
	}
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.lastCause = cause
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetConsecutiveFailures returns the current number of consecutive failures
func (cb *CircuitBreaker) GetConsecutiveFailures() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// LastCause returns the error that last opened the circuit, if known
func (cb *CircuitBreaker) LastCause() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastCause
}

// Reset returns the circuit breaker to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.lastCause = nil
}

// upstreamFailure reports whether err says the upstream is unhealthy
func upstreamFailure(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		sdkerrors.IsNotFound(err),
		sdkerrors.IsUnauthorized(err),
		sdkerrors.IsBadRequest(err),
		errors.Is(err, sdkerrors.ErrMalformedResponse),
		errors.Is(err, sdkerrors.ErrMalformedProperty):
		return false
	}
	return true
}

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}
