package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/types"
)

// State is the admission state of a circuit breaker.
type State int

const (
	// StateClosed allows calls through; failures are counted.
	StateClosed State = iota
	// StateOpen rejects all calls immediately.
	StateOpen
	// StateHalfOpen allows a limited number of probe calls.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Any success resets the count.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before the next
	// call attempt transitions it to half_open.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	// SuccessThreshold is the number of consecutive half_open successes
	// required to close the circuit.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
	// RequestTimeout bounds a single call; an exceeded call counts as a
	// failure and surfaces CALL_TIMEOUT.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	// HalfOpenMaxProbes caps calls admitted while half_open. Zero means
	// SuccessThreshold.
	HalfOpenMaxProbes int `json:"half_open_max_probes" yaml:"half_open_max_probes"`
}

// DefaultConfig returns the default breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		RequestTimeout:   30 * time.Second,
	}
}

// withDefaults fills zero or negative fields with defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = c.SuccessThreshold
	}
	return c
}

// CallFunc performs the protected call. The context carries the per-call
// timeout; implementations should respect it.
type CallFunc func(ctx context.Context) (types.Payload, error)

// Fallback produces an alternate result when the breaker rejects a call.
type Fallback func(ctx context.Context, payload types.Payload) (types.Payload, error)

// Event describes a breaker state transition.
type Event struct {
	Name      string    `json:"name"`
	OldState  State     `json:"old_state"`
	NewState  State     `json:"new_state"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// EventHandler receives state transition events. Handlers are invoked on a
// separate goroutine and must not call back into the breaker synchronously.
type EventHandler interface {
	OnStateChange(event Event)
}

// Snapshot is a read-only view of a breaker for monitoring.
type Snapshot struct {
	Name                 string    `json:"name"`
	State                State     `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailure          time.Time `json:"last_failure,omitempty"`
}

// CircuitBreaker guards one remote endpoint. It lives for the process
// lifetime and is shared by every workflow execution targeting the endpoint.
type CircuitBreaker struct {
	name         string
	config       Config
	fallback     Fallback
	eventHandler EventHandler
	logger       *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int // consecutive failures (closed and half_open)
	successes   int // consecutive successes (half_open only)
	probes      int // calls admitted while half_open
	openedAt    time.Time
	lastFailure time.Time
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithFallback sets the fallback invoked when the breaker rejects a call.
func WithFallback(fb Fallback) Option {
	return func(cb *CircuitBreaker) { cb.fallback = fb }
}

// WithEventHandler sets the state transition event handler.
func WithEventHandler(h EventHandler) Option {
	return func(cb *CircuitBreaker) { cb.eventHandler = h }
}

// New creates a circuit breaker for the named endpoint.
func New(name string, config Config, logger *zap.Logger, opts ...Option) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := &CircuitBreaker{
		name:   name,
		config: config.withDefaults(),
		state:  StateClosed,
		logger: logger.With(zap.String("component", "circuit_breaker"), zap.String("breaker", name)),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker's endpoint name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Call executes fn through the breaker using the configured request timeout.
func (cb *CircuitBreaker) Call(ctx context.Context, payload types.Payload, fn CallFunc) (types.Payload, error) {
	return cb.CallWithTimeout(ctx, payload, 0, fn)
}

// CallWithTimeout executes fn through the breaker. A non-positive timeout
// falls back to the configured request timeout.
//
// When the circuit is open the call is rejected without invoking fn; the
// fallback serves the request if one is configured, otherwise CIRCUIT_OPEN
// is returned. A call exceeding the timeout counts as a failure and returns
// CALL_TIMEOUT; the in-flight fn is not interrupted beyond its context.
func (cb *CircuitBreaker) CallWithTimeout(ctx context.Context, payload types.Payload, timeout time.Duration, fn CallFunc) (types.Payload, error) {
	if err := cb.beforeCall(); err != nil {
		if cb.fallback != nil {
			return cb.fallback(ctx, payload)
		}
		return nil, err
	}

	if timeout <= 0 {
		timeout = cb.config.RequestTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type callResult struct {
		out types.Payload
		err error
	}
	resultCh := make(chan callResult, 1)
	go func() {
		out, err := fn(callCtx)
		resultCh <- callResult{out: out, err: err}
	}()

	select {
	case <-callCtx.Done():
		cb.afterCall(false)
		return nil, types.NewError(types.ErrCallTimeout, "call exceeded timeout").
			WithAgent(cb.name).
			WithRetryable(true).
			WithCause(callCtx.Err())

	case res := <-resultCh:
		cb.afterCall(res.err == nil)
		if res.err != nil {
			return nil, res.err
		}
		return res.out, nil
	}
}

// beforeCall admits or rejects the call and performs the open→half_open
// transition when the recovery timeout has elapsed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.RecoveryTimeout {
			cb.transitionTo(StateHalfOpen, "recovery timeout elapsed")
			cb.probes = 1
			return nil
		}
		return cb.openError()

	case StateHalfOpen:
		if cb.probes < cb.config.HalfOpenMaxProbes {
			cb.probes++
			return nil
		}
		return cb.openError()

	default:
		return fmt.Errorf("unknown circuit breaker state: %d", cb.state)
	}
}

// openError builds the rejection error. Rejections never count toward the
// breaker's own threshold.
func (cb *CircuitBreaker) openError() error {
	return types.NewError(types.ErrCircuitOpen, "circuit breaker is "+cb.state.String()).
		WithAgent(cb.name).
		WithRetryable(true)
}

// afterCall records the call outcome.
func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(StateClosed, fmt.Sprintf("%d consecutive successes in half_open", cb.successes))
		}

	case StateOpen:
		// A call admitted before the transition may report here after the
		// circuit reopened; its result no longer matters.
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}

	case StateHalfOpen:
		cb.transitionTo(StateOpen, "failure in half_open state")

	case StateOpen:
		// See onSuccess: late result from a previously admitted call.
	}
}

// transitionTo changes state, restarts the open timer, and zeroes the
// counters. Must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(newState State, reason string) {
	oldState := cb.state
	cb.state = newState
	if newState == StateOpen {
		cb.openedAt = time.Now()
	}

	failures := cb.failures
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0

	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", failures),
	)

	if cb.eventHandler != nil {
		event := Event{
			Name:      cb.name,
			OldState:  oldState,
			NewState:  newState,
			Timestamp: time.Now(),
			Reason:    reason,
		}
		// Async so a handler taking the breaker lock cannot deadlock.
		go cb.eventHandler.OnStateChange(event)
	}
}

// State returns the current admission state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns a read-only view for the monitoring layer.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Name:                 cb.name,
		State:                cb.state,
		ConsecutiveFailures:  cb.failures,
		ConsecutiveSuccesses: cb.successes,
		LastFailure:          cb.lastFailure,
	}
}

// Reset forces the breaker back to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateClosed {
		cb.transitionTo(StateClosed, "manual reset")
		return
	}
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
}
