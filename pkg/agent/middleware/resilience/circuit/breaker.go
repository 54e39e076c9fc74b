// Package circuit provides a circuit breaker that stops calling a backend
// model after repeated failures and probes it again after a cool-down.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

// Circuit breaker states.
const (
	Closed   State = iota // Normal operation
	Open                  // Failing, reject requests
	HalfOpen              // Probing whether the backend recovered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config defines configuration for circuit breaker behavior.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"` // Consecutive failures before opening
	SuccessThreshold int           `yaml:"success_threshold"` // Successes in half-open before closing
	Timeout          time.Duration `yaml:"timeout"`           // Cool-down before half-open
}

// DefaultConfig provides reasonable defaults for circuit breaker behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	Timeout:          30 * time.Second,
}

// Error is returned when the circuit rejects a call.
type Error struct {
	Model string
	State State
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("circuit breaker is %s", e.State)
	}
	return fmt.Sprintf("circuit breaker for %s is %s", e.Model, e.State)
}

// Breaker defines the interface for circuit breaker implementations.
type Breaker interface {
	// Allow checks if a request should be allowed based on current state.
	Allow() bool
	// Record records the result (success/failure) of a request.
	Record(success bool)
	// GetState returns the current circuit breaker state.
	GetState() State
	// Reset manually resets the circuit breaker to closed state.
	Reset()
}

//nolint:govet // Logical field grouping preferred over memory alignment
type breaker struct {
	config          Config
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	now             func() time.Time
}

// New creates a new circuit breaker with the given configuration.
func New(config Config) Breaker {
	return newBreaker(config, time.Now)
}

func newBreaker(config Config, now func() time.Time) *breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	return &breaker{config: config, state: Closed, now: now}
}

func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.lastFailureTime) >= b.config.Timeout {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

func (b *breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case Closed:
			b.failureCount = 0
		case HalfOpen:
			b.successCount++
			if b.successCount >= b.config.SuccessThreshold {
				b.state = Closed
				b.failureCount = 0
				b.successCount = 0
			}
		}
		return
	}

	b.failureCount++
	b.lastFailureTime = b.now()
	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
		b.successCount = 0
	}
}

func (b *breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.successCount = 0
}

// Registry hands out one breaker per backend model id, so an unhealthy
// model does not open the circuit for the other tiers.
type Registry struct {
	config   Config
	mu       sync.Mutex
	breakers map[string]Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry(config Config) *Registry {
	return &Registry{config: config, breakers: make(map[string]Breaker)}
}

// For returns the breaker for model, creating it on first use.
func (r *Registry) For(model string) Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[model]
	if !ok {
		b = New(r.config)
		r.breakers[model] = b
	}
	return b
}

// States reports the current state of every known breaker.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.breakers))
	for model, b := range r.breakers {
		out[model] = b.GetState()
	}
	return out
}
