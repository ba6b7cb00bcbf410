package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit is operational and requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit has tripped due to failures and requests are blocked.
	CircuitOpen
	// CircuitHalfOpen means the circuit is testing if the provider has recovered.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
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
	// Threshold is the number of consecutive failures before the circuit trips.
	Threshold int
	// ResetAfter is the duration to wait before attempting to close the circuit again.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig returns the defaults used by the factory.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker trips open after N consecutive failures and resets after a
// timeout period. It keeps a dead translation endpoint from stalling every
// incoming question; it never retries on the caller's behalf.
type CircuitBreaker struct {
	mu               sync.RWMutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
	}
}

// Allow returns true if the circuit breaker allows a request to proceed.
// It transitions to half-open state after the reset timeout expires.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetAfter {
			// Allow one probe request through
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("circuit breaker open: translator appears to be down (failed %d times, last failure %v ago)",
			cb.consecutiveFails, time.Since(cb.lastFailure).Round(time.Second))
	case CircuitHalfOpen:
		return false, fmt.Errorf("circuit breaker half-open: testing if translator has recovered")
	default:
		return false, fmt.Errorf("circuit breaker in unknown state: %v", cb.state)
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure increments the failure count and trips the circuit if the
// threshold is reached. A failed half-open probe reopens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = time.Now()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		return
	}

	if cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveFails
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// breakerTranslator wraps a Translator with a CircuitBreaker.
type breakerTranslator struct {
	inner   Translator
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// Ensure breakerTranslator implements Translator at compile time.
var _ Translator = (*breakerTranslator)(nil)

// WithCircuitBreaker wraps a translator so provider failures trip a circuit
// breaker and subsequent calls fail fast until the provider recovers.
func WithCircuitBreaker(inner Translator, config CircuitBreakerConfig, logger *zap.Logger) Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &breakerTranslator{
		inner:   inner,
		breaker: NewCircuitBreaker(config),
		logger:  logger.Named("llm.breaker"),
	}
}

// Translate implements Translator.
func (b *breakerTranslator) Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	if ok, err := b.breaker.Allow(); !ok {
		return TranslationResult{}, err
	}

	result, err := b.inner.Translate(ctx, req)
	b.record(err)
	return result, err
}

// ExplainResults implements Translator.
func (b *breakerTranslator) ExplainResults(ctx context.Context, req ExplanationRequest) (string, error) {
	if ok, err := b.breaker.Allow(); !ok {
		return "", err
	}

	explanation, err := b.inner.ExplainResults(ctx, req)
	b.record(err)
	return explanation, err
}

// GetModel returns the wrapped translator's model name.
func (b *breakerTranslator) GetModel() string {
	return b.inner.GetModel()
}

// GetEndpoint returns the wrapped translator's endpoint.
func (b *breakerTranslator) GetEndpoint() string {
	return b.inner.GetEndpoint()
}

// record updates the breaker after a call. Caller-initiated cancellation does
// not count against the provider.
func (b *breakerTranslator) record(err error) {
	if err == nil {
		b.breaker.RecordSuccess()
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	b.breaker.RecordFailure()
	if state := b.breaker.State(); state != CircuitClosed {
		b.logger.Warn("Translator circuit breaker tripped",
			zap.String("state", state.String()),
			zap.Int("consecutive_failures", b.breaker.ConsecutiveFailures()))
	}
}
