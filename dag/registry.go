package dag

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps component names to node factories for dynamic graph construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewBuiltinRegistry creates a Registry preloaded with the built-in step kinds.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// RegisterFactory adds a factory under the given component name.
func (r *Registry) RegisterFactory(component string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[component] = f
}

// Register adds a shared node instance. Every resolve gets the same node,
// so only stateless nodes should be registered this way.
func (r *Registry) Register(component string, node Node) {
	r.RegisterFactory(component, func(NodeDef) (Node, error) { return node, nil })
}

// Has reports whether a component is registered.
func (r *Registry) Has(component string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[component]
	return ok
}

// Build instantiates the node described by def.
func (r *Registry) Build(def NodeDef) (Node, error) {
	r.mu.RLock()
	f, ok := r.factories[def.Component]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dag: component %q not found in registry", def.Component)
	}
	node, err := f(def)
	if err != nil {
		return nil, fmt.Errorf("dag: building node %q: %w", def.NodeName(), err)
	}
	return node, nil
}

// List returns sorted names of all registered components.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
