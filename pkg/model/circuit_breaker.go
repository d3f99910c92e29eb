package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed allows requests to pass through
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests
	CircuitOpen
	// CircuitHalfOpen lets one probe through to test recovery
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

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures uint32
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
	Now          func() time.Time
	Logger       zerolog.Logger
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to CircuitState)
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		Logger:       zerolog.Nop(),
	}
}

// CircuitBreaker stops calling a failing model until it has had time to
// recover.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    uint32
	lastFailureTime time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 1
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{config: config, now: now, state: CircuitClosed}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) FailureCount() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
	cb.mu.Unlock()

	cb.transitioned(from, CircuitClosed, "manual reset")
}

// Call runs fn unless the breaker is open. Errors from fn count as
// failures; a nil return counts as success.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		since := cb.now().Sub(cb.lastFailureTime)
		if since < cb.config.ResetTimeout {
			cb.mu.Unlock()
			return fmt.Errorf("%w (last failure %v ago)", ErrCircuitOpen, since.Round(time.Millisecond))
		}
		cb.state = CircuitHalfOpen
		cb.failureCount = 0
		cb.mu.Unlock()
		cb.transitioned(CircuitOpen, CircuitHalfOpen, "reset timeout elapsed")
	} else {
		cb.mu.Unlock()
	}

	err := fn()

	cb.mu.Lock()
	from := cb.state
	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	to := cb.state
	cb.mu.Unlock()

	if from != to {
		reason := "probe succeeded"
		if err != nil {
			reason = "failure threshold reached"
		}
		cb.transitioned(from, to, reason)
	}
	return err
}

// recordFailure must be called with the lock held.
func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitHalfOpen:
		cb.state = CircuitOpen
	case CircuitClosed:
		if cb.failureCount >= cb.config.MaxFailures {
			cb.state = CircuitOpen
		}
	}
}

// recordSuccess must be called with the lock held.
func (cb *CircuitBreaker) recordSuccess() {
	cb.failureCount = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.lastFailureTime = time.Time{}
	}
}

func (cb *CircuitBreaker) transitioned(from, to CircuitState, reason string) {
	if from == to {
		return
	}
	cb.config.Logger.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("circuit breaker state change")
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}
