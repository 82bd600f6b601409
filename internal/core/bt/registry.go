package bt

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a Kind from template parameters.
type Factory func(params map[string]any) (Kind, error)

// Registry maps kind names to factories so trees can be built from data and
// editors can list what is available.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// Kind resolves name and builds a kind with params.
func (r *Registry) Kind(name string, params map[string]any) (Kind, error) {
	r.mu.RLock()
	f := r.factories[name]
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	k, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("kind %s: %w", name, err)
	}
	return k, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered kind names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}
