// Package resilience guards the remote store with circuit breakers so a
// failing backend is reported quickly as a persistence failure.
package resilience

import (
	"errors"
	"time"

	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
	// MaxRequests allowed through while half-open
	MaxRequests uint32
	Interval    time.Duration
}

// DefaultBreakerConfig returns the default configuration
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 1,
		Interval:    60 * time.Second,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker that trips after MaxFailures consecutive
// backend failures. Domain outcomes such as NOT_FOUND never count.
func NewBreaker(cfg BreakerConfig, logger *zap.Logger) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
			IsSuccessful: isSuccessful,
		}),
	}
}

// isSuccessful treats domain errors as successful calls to a healthy backend
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	return pkgerrors.IsNotFound(err) ||
		pkgerrors.IsInvalidState(err) ||
		pkgerrors.IsValidation(err)
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Execute runs fn through the breaker
func (b *Breaker) Execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.NewPersistenceError(operation, err)
	}
	return result, err
}

// run is Execute for calls that only return an error
func (b *Breaker) run(operation string, fn func() error) error {
	_, err := b.Execute(operation, func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
