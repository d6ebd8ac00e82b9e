package recovery

import (
	"fmt"
	"sync"
	"time"

	"pv-tracker-bridge/internal/logger"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - normal operation, calls pass through
	StateClosed CircuitState = iota
	// StateOpen - failing, calls rejected immediately
	StateOpen
	// StateHalfOpen - testing recovery, limited calls allowed
	StateHalfOpen
)

// String returns the string representation of the circuit state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned by Call while the circuit rejects calls
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open")

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	Name             string        // Used in log lines
	MaxFailures      int           // Default: 5
	Timeout          time.Duration // Default: 30 seconds
	HalfOpenMaxTries int           // Default: 3
}

// CircuitBreaker keeps a failing side sink (history store, event stream)
// from slowing down the router: after MaxFailures consecutive failures
// calls are rejected until Timeout has passed.
type CircuitBreaker struct {
	name             string
	maxFailures      int
	timeout          time.Duration
	halfOpenMaxTries int
	now              func() time.Time

	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	halfOpenAttempts int

	mu sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxTries == 0 {
		config.HalfOpenMaxTries = 3
	}

	return &CircuitBreaker{
		name:             config.Name,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxTries: config.HalfOpenMaxTries,
		now:              time.Now,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// SetClock replaces the time source (for testing)
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
	cb.lastStateChange = now()
}

// Call executes fn if the circuit allows it. The error from fn is returned
// unchanged; a rejected call returns an error wrapping ErrCircuitOpen.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.timeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenAttempts = 1
			return nil
		}
		return fmt.Errorf("%s: %w (failed %d times, retry in %.0fs)", cb.name, ErrCircuitOpen,
			cb.failures, cb.lastFailureTime.Add(cb.timeout).Sub(cb.now()).Seconds())

	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenMaxTries {
			return fmt.Errorf("%s: %w (half-open, max test attempts reached)", cb.name, ErrCircuitOpen)
		}
		cb.halfOpenAttempts++
		return nil

	default:
		return fmt.Errorf("%s: circuit breaker in unknown state", cb.name)
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
		cb.halfOpenAttempts = 0
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenMaxTries {
			cb.transition(StateClosed)
			cb.failures = 0
			cb.halfOpenAttempts = 0
		}
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	logger.LogWarn("Circuit %s: %s -> %s", cb.name, cb.state, to)
	cb.state = to
	cb.lastStateChange = cb.now()
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenAttempts = 0
	cb.lastStateChange = cb.now()
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:                     cb.name,
		State:                    cb.state,
		Failures:                 cb.failures,
		LastFailureTime:          cb.lastFailureTime,
		TimeSinceLastStateChange: cb.now().Sub(cb.lastStateChange),
	}
}

// CircuitBreakerStats holds statistics about the circuit breaker
type CircuitBreakerStats struct {
	Name                     string        `json:"name"`
	State                    CircuitState  `json:"-"`
	Failures                 int           `json:"failures"`
	LastFailureTime          time.Time     `json:"last_failure_time"`
	TimeSinceLastStateChange time.Duration `json:"-"`
}

// String returns a string representation of the stats
func (s CircuitBreakerStats) String() string {
	return fmt.Sprintf("%s: State: %s, Failures: %d, Last State Change: %s ago",
		s.Name, s.State, s.Failures, s.TimeSinceLastStateChange.Round(time.Second))
}
