package registry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/types"
)

// AgentDescriptor describes a remote conversational agent endpoint.
type AgentDescriptor struct {
	// ID uniquely identifies the agent within a registry.
	ID string `json:"id"`

	// Capabilities is the set of request kinds this agent can handle.
	Capabilities CapabilitySet `json:"capabilities"`

	// Endpoint is an opaque handle given to the external invoker. The core
	// never dereferences it.
	Endpoint string `json:"endpoint"`

	// Priority orders agents within a capability; lower is preferred.
	Priority int `json:"priority"`

	// Enabled gates whether the agent participates in routing.
	Enabled bool `json:"enabled"`

	// Metadata stores additional descriptor information.
	Metadata map[string]string `json:"metadata,omitempty"`

	// RegisteredAt is set by the registry on first registration.
	RegisteredAt time.Time `json:"registered_at"`
}

// HasCapability reports whether the descriptor advertises the capability.
func (d *AgentDescriptor) HasCapability(c Capability) bool {
	return d.Capabilities.Contains(c)
}

// Stats is a read-only snapshot of registry contents for observability.
type Stats struct {
	Total        int                `json:"total"`
	Enabled      int                `json:"enabled"`
	ByCapability map[Capability]int `json:"by_capability"`
}

// entry wraps a descriptor with its registration sequence number, which
// breaks priority ties stably. Overwriting a descriptor keeps the original
// sequence: a replace is not a new registration.
type entry struct {
	desc *AgentDescriptor
	seq  int
}

// Registry is the in-memory agent descriptor table. It is an explicit
// instance injected into the coordinator; multiple independent registries
// may coexist in one process.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*entry
	nextSeq int

	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]*entry),
		logger: logger.With(zap.String("component", "agent_registry")),
	}
}

// Register inserts or replaces a descriptor by id. Replacing is not an
// error; the original registration order is preserved for tie-breaking.
func (r *Registry) Register(desc AgentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.Capabilities == nil {
		desc.Capabilities = NewCapabilitySet()
	}

	if existing, ok := r.agents[desc.ID]; ok {
		desc.RegisteredAt = existing.desc.RegisteredAt
		existing.desc = &desc
		r.logger.Info("agent descriptor replaced", zap.String("agent_id", desc.ID))
		return
	}

	desc.RegisteredAt = time.Now()
	r.agents[desc.ID] = &entry{desc: &desc, seq: r.nextSeq}
	r.nextSeq++

	r.logger.Info("agent registered",
		zap.String("agent_id", desc.ID),
		zap.Int("priority", desc.Priority),
		zap.Int("capabilities", len(desc.Capabilities)),
	)
}

// Get retrieves a descriptor copy by id.
func (r *Registry) Get(id string) (*AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.agents[id]
	if !ok {
		return nil, types.NewError(types.ErrAgentNotFound, "agent not found").WithAgent(id)
	}
	return copyDescriptor(e.desc), nil
}

// FindByCapability returns all enabled descriptors whose capability set
// contains the capability, ordered by ascending priority with ties broken
// by registration order.
func (r *Registry) FindByCapability(c Capability) []*AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*entry, 0, len(r.agents))
	for _, e := range r.agents {
		if e.desc.Enabled && e.desc.HasCapability(c) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].desc.Priority != matched[j].desc.Priority {
			return matched[i].desc.Priority < matched[j].desc.Priority
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]*AgentDescriptor, len(matched))
	for i, e := range matched {
		out[i] = copyDescriptor(e.desc)
	}
	return out
}

// SetEnabled enables or disables an agent. Disabled agents remain registered
// but are excluded from capability lookups and routing.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.agents[id]
	if !ok {
		return types.NewError(types.ErrAgentNotFound, "agent not found").WithAgent(id)
	}
	if e.desc.Enabled != enabled {
		e.desc.Enabled = enabled
		r.logger.Info("agent enabled flag changed",
			zap.String("agent_id", id),
			zap.Bool("enabled", enabled),
		)
	}
	return nil
}

// Enable marks an agent as eligible for routing.
func (r *Registry) Enable(id string) error { return r.SetEnabled(id, true) }

// Disable removes an agent from routing without deleting its descriptor.
func (r *Registry) Disable(id string) error { return r.SetEnabled(id, false) }

// Stats returns a read-only snapshot of registry contents.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:        len(r.agents),
		ByCapability: make(map[Capability]int),
	}
	for _, e := range r.agents {
		if !e.desc.Enabled {
			continue
		}
		s.Enabled++
		for c := range e.desc.Capabilities {
			s.ByCapability[c]++
		}
	}
	return s
}

// copyDescriptor returns a copy safe to hand out under a shared lock.
func copyDescriptor(d *AgentDescriptor) *AgentDescriptor {
	out := *d
	out.Capabilities = make(CapabilitySet, len(d.Capabilities))
	for c := range d.Capabilities {
		out.Capabilities[c] = struct{}{}
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
