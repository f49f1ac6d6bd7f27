package dag

import "context"

// Node is the execution unit in a DAG.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

// Factory builds a fresh Node from its definition.
// Factories are invoked on every resolve so no node state leaks between runs.
type Factory func(def NodeDef) (Node, error)

// Middleware decorates a Node, e.g. with tracing or logging.
type Middleware func(Node) Node

// NodeFunc adapts a function into a Node.
func NodeFunc(name string, fn func(ctx context.Context, state *State) (any, error)) Node {
	return &funcNode{name: name, fn: fn}
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (any, error)
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) {
	if n.fn == nil {
		return nil, nil
	}
	return n.fn(ctx, state)
}
