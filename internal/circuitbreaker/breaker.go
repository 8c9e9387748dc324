// Package circuitbreaker wraps Sony's gobreaker to guard calls against a
// flapping or unreachable backend. The remote cache tier routes every
// Redis operation through a breaker so a dead Redis degrades to fast
// misses instead of a timeout per request.
package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"tiercache/internal/common/logging"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before probing half-open.
	Timeout time.Duration
	// MaxConcurrentRequests bounds requests allowed through in half-open state.
	MaxConcurrentRequests int
}

// DefaultConfig returns a configuration tuned for a cache backend: trip
// fast, probe again soon, because every rejected call is only a miss.
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               15 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker guards a single backend with a gobreaker circuit breaker.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger logging.Logger
}

// New creates a named breaker. State transitions are logged at warn level.
func New(name string, config Config, logger logging.Logger) (*Breaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	}

	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}, nil
}

// Execute runs fn through the breaker. When the breaker is open, ErrOpen
// is returned without invoking fn.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return result, err
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// State returns the breaker state as a string for stats reporting.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
