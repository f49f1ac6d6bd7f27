package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotStarted is returned by Wait on an instance that was never started.
var ErrNotStarted = errors.New("dag: instance not started")

// Instance is one runnable copy of a pipeline: fresh nodes, its own State,
// and a start / wait / stop handle.
type Instance struct {
	id       string
	pipeline *Pipeline
	engine   *Engine
	graph    *Graph
	state    *State

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
	done    chan struct{}
	result  *Result
	err     error
}

// NewInstance resolves p into a fresh graph bound to state. Every node is
// built anew from the registry, wrapped in the engine's middleware, and the
// pipeline's parameters are declared in state.Vars.
func (e *Engine) NewInstance(p *Pipeline, registry *Registry, loader PipelineLoader, state *State) (*Instance, error) {
	if p == nil {
		return nil, errors.New("dag: nil pipeline")
	}
	g, err := ResolvePipeline(p, registry, loader)
	if err != nil {
		return nil, err
	}
	for name, node := range g.Nodes {
		for _, mw := range e.Middleware {
			node = mw(node)
		}
		g.Nodes[name] = node
	}
	if state == nil {
		state = NewState()
	}
	for _, param := range p.Parameters {
		state.Vars.DeclareParameter(param.Name, param.Default, param.Description)
	}

	return &Instance{
		id:       uuid.NewString(),
		pipeline: p,
		engine:   e,
		graph:    g,
		state:    state,
		done:     make(chan struct{}),
	}, nil
}

// ID returns the unique identifier of this instance.
func (i *Instance) ID() string { return i.id }

// Pipeline returns the definition the instance was built from.
func (i *Instance) Pipeline() *Pipeline { return i.pipeline }

// State returns the instance's execution state.
func (i *Instance) State() *State { return i.state }

// Start launches execution in the background. It fails if the instance was
// already started or stopped.
func (i *Instance) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return fmt.Errorf("dag: instance %s already started", i.id)
	}
	if i.stopped {
		return fmt.Errorf("dag: instance %s was stopped", i.id)
	}
	i.started = true

	runCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel

	go func() {
		defer close(i.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				i.err = fmt.Errorf("dag: pipeline %q panicked: %v", i.pipeline.Name, r)
			}
		}()
		i.result, i.err = i.engine.ExecuteBatch(runCtx, i.graph, i.state)
	}()
	return nil
}

// Wait blocks until execution completes and returns its result.
func (i *Instance) Wait() (*Result, error) {
	i.mu.Lock()
	started := i.started
	i.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	<-i.done
	return i.result, i.err
}

// Done is closed when a started instance finishes.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Result returns the result of a finished run, or nil.
func (i *Instance) Result() *Result {
	select {
	case <-i.done:
		return i.result
	default:
		return nil
	}
}

// Stop cancels the run. Nodes observe the cancellation through their context,
// which also stops any pipelines they run themselves.
func (i *Instance) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	if i.cancel != nil {
		i.cancel()
	}
}

// Stopped reports whether Stop was called.
func (i *Instance) Stopped() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stopped
}

// RequestSafeStop lets the running level finish and skips the rest.
func (i *Instance) RequestSafeStop() { i.state.RequestSafeStop() }

// SafeStopRequested reports whether a safe stop was requested.
func (i *Instance) SafeStopRequested() bool { return i.state.SafeStopRequested() }
