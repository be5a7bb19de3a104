package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/pos-ledger/pkg/logger"
)

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// halfOpenSuccesses is how many probes must pass before the circuit closes
const halfOpenSuccesses = 3

// CircuitBreaker stops forwarding to an upstream after maxFailures
// consecutive server errors and probes it again once timeout has passed.
type CircuitBreaker struct {
	name            string
	maxFailures     int
	timeout         time.Duration
	state           CircuitState
	failures        int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	mu              sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		maxFailures:     maxFailures,
		timeout:         timeout,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Allow reports whether a request may go through, moving an open circuit to
// half-open once its timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastStateChange) > cb.timeout {
		cb.transition(StateHalfOpen)
		cb.successCount = 0
	}
	return cb.state != StateOpen
}

// Record feeds the outcome of one forwarded request into the breaker
func (cb *CircuitBreaker) Record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if failed {
		cb.failures++
		cb.lastFailureTime = time.Now()
		switch {
		case cb.state == StateHalfOpen:
			cb.transition(StateOpen)
		case cb.state == StateClosed && cb.failures >= cb.maxFailures:
			cb.transition(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= halfOpenSuccesses {
			cb.failures = 0
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	logger.Logger.Warn().
		Str("circuit", cb.name).
		Str("from", string(cb.state)).
		Str("to", string(to)).
		Int("failures", cb.failures).
		Msg("Circuit breaker state change")
	cb.state = to
	cb.lastStateChange = time.Now()
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"name":              cb.name,
		"state":             cb.state,
		"failures":          cb.failures,
		"max_failures":      cb.maxFailures,
		"last_failure_time": cb.lastFailureTime,
		"time_since_change": time.Since(cb.lastStateChange).Seconds(),
	}
}

// CircuitBreakerManager manages one breaker per upstream service
type CircuitBreakerManager struct {
	breakers    map[string]*CircuitBreaker
	maxFailures int
	timeout     time.Duration
	mu          sync.Mutex
}

// NewCircuitBreakerManager creates a new manager
func NewCircuitBreakerManager(maxFailures int, timeout time.Duration) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers:    make(map[string]*CircuitBreaker),
		maxFailures: maxFailures,
		timeout:     timeout,
	}
}

// GetOrCreate gets or creates a circuit breaker for a service
func (m *CircuitBreakerManager) GetOrCreate(serviceName string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists := m.breakers[serviceName]; exists {
		return cb
	}

	cb := NewCircuitBreaker(serviceName, m.maxFailures, m.timeout)
	m.breakers[serviceName] = cb
	return cb
}

// AllStats returns stats for all circuit breakers
func (m *CircuitBreakerManager) AllStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]interface{}, len(m.breakers))
	for name, cb := range m.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}

// CircuitBreakerMiddleware guards the routes of one upstream service. A 5xx
// from the upstream, or from the proxy failing to reach it, counts as a
// failure; 4xx answers are the caller's problem and count as success.
func CircuitBreakerMiddleware(manager *CircuitBreakerManager, serviceName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cb := manager.GetOrCreate(serviceName)

		if !cb.Allow() {
			logger.Warn(c.UserContext()).
				Str("service", serviceName).
				Str("path", c.Path()).
				Msg("Circuit breaker is open - request blocked")

			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(manager.timeout.Seconds())))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   fmt.Sprintf("%s is temporarily unavailable", serviceName),
			})
		}

		err := c.Next()
		cb.Record(err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError)
		return err
	}
}
