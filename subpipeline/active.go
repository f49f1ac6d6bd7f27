package subpipeline

import (
	"sync"

	"github.com/kbukum/etlkit/logger"
)

// Active is the handle of the most recent invocation started by a step.
type Active struct {
	InstanceID string
	Pipeline   string
	Capture    *logger.Capture
}

// ActiveRegistry tracks, per parent step name, the handle of the invocation
// the step started last. It is owned by the parent execution context so that
// a step can release the log buffer of its previous invocation.
type ActiveRegistry struct {
	mu      sync.Mutex
	entries map[string]*Active
}

// NewActiveRegistry creates an empty registry.
func NewActiveRegistry() *ActiveRegistry {
	return &ActiveRegistry{entries: make(map[string]*Active)}
}

// Replace registers a under step, discarding the log buffer of the handle it
// replaces.
func (r *ActiveRegistry) Replace(step string, a *Active) {
	r.mu.Lock()
	prev := r.entries[step]
	r.entries[step] = a
	r.mu.Unlock()

	if prev != nil && prev != a && prev.Capture != nil {
		prev.Capture.Discard()
	}
}

// Get returns the handle registered under step, or nil.
func (r *ActiveRegistry) Get(step string) *Active {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[step]
}

// Remove drops the handle registered under step and releases its log buffer.
func (r *ActiveRegistry) Remove(step string) {
	r.mu.Lock()
	prev := r.entries[step]
	delete(r.entries, step)
	r.mu.Unlock()

	if prev != nil && prev.Capture != nil {
		prev.Capture.Discard()
	}
}

// Len returns the number of registered steps.
func (r *ActiveRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
