package breaker

import (
	"sync"

	"go.uber.org/zap"
)

// Registry holds the circuit breakers of a process, keyed by agent endpoint
// identifier. Create-or-fetch is synchronized: concurrent tasks targeting
// the same endpoint always share one breaker instance, so failure counting
// stays coherent.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	config       Config
	eventHandler EventHandler
	logger       *zap.Logger
}

// NewRegistry creates a breaker registry. All breakers it creates share the
// given config and event handler.
func NewRegistry(config Config, eventHandler EventHandler, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		breakers:     make(map[string]*CircuitBreaker),
		config:       config,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// GetOrCreate returns the breaker for the named endpoint, creating it on
// first use.
func (r *Registry) GetOrCreate(name string, opts ...Option) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[name]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine may have created it between locks.
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	if r.eventHandler != nil {
		opts = append([]Option{WithEventHandler(r.eventHandler)}, opts...)
	}
	cb := New(name, r.config, r.logger, opts...)
	r.breakers[name] = cb
	return cb
}

// Get returns the breaker for the named endpoint, if one exists.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// Snapshots returns a read-only view of every breaker, for the external
// monitoring layer.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Snapshot()
	}
	return out
}

// ResetAll forces every breaker back to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
