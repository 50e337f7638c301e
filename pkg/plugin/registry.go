package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs Agent instances. WithCredential is tried first when set;
// returning ErrCredentialRejected falls back to New.
type Factory struct {
	New            func() (Agent, error)
	WithCredential func(apiKey string) (Agent, error)
}

func (f Factory) valid() bool {
	return f.New != nil || f.WithCredential != nil
}

// Registry maps agent identifiers and implementation names to factories
type Registry struct {
	byID   map[string]Factory
	byName map[string]Factory
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]Factory),
		byName: make(map[string]Factory),
	}
}

// Register binds an agent identifier to a factory
func (r *Registry) Register(agentID string, factory Factory) error {
	if agentID == "" {
		return fmt.Errorf("agent ID cannot be empty")
	}
	if !factory.valid() {
		return fmt.Errorf("agent %s: %w", agentID, ErrNoFactory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[agentID]; exists {
		return fmt.Errorf("agent %s already registered", agentID)
	}
	r.byID[agentID] = factory
	return nil
}

// RegisterImplementation binds an implementation name to a factory. These
// bindings are consulted when an identifier has no direct registration.
func (r *Registry) RegisterImplementation(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("implementation name cannot be empty")
	}
	if !factory.valid() {
		return fmt.Errorf("implementation %s: %w", name, ErrNoFactory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("implementation %s already registered", name)
	}
	r.byName[name] = factory
	return nil
}

// Lookup returns the factory registered for an agent identifier
func (r *Registry) Lookup(agentID string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.byID[agentID]
	return factory, ok
}

// LookupImplementation returns the factory registered for an implementation name
func (r *Registry) LookupImplementation(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.byName[name]
	return factory, ok
}

// Remove drops an identifier binding
func (r *Registry) Remove(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[agentID]; !exists {
		return fmt.Errorf("agent %s not found", agentID)
	}
	delete(r.byID, agentID)
	return nil
}

// IDs returns the registered agent identifiers, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Implementations returns the registered implementation names, sorted
func (r *Registry) Implementations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
