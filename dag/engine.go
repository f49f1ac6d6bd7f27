package dag

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Engine executes a graph in dependency order.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
	// ContinueOnError keeps running later levels after a node failed.
	// By default a failure skips every node that has not started yet.
	ContinueOnError bool
	// Middleware wraps every node of instances created with NewInstance.
	Middleware []Middleware
}

// ExecuteBatch runs all nodes in dependency order, one-shot.
// Nodes of one level run concurrently; the call blocks until the last level completes.
func (e *Engine) ExecuteBatch(ctx context.Context, g *Graph, state *State) (*Result, error) {
	start := time.Now()

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NodeResults: make(map[string]NodeResult),
	}

	halted := false
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if halted || state.SafeStopRequested() {
			for _, name := range level {
				result.NodeResults[name] = NodeResult{Name: name, Status: StatusSkipped}
			}
			continue
		}

		e.executeLevel(ctx, g, state, level, result)

		if !e.ContinueOnError {
			for _, name := range level {
				if result.NodeResults[name].Status == StatusFailed {
					halted = true
					break
				}
			}
		}
	}

	result.SafeStopped = state.SafeStopRequested()
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) executeLevel(ctx context.Context, g *Graph, state *State, names []string, result *Result) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.concurrency(len(names)))

	for _, name := range names {
		wg.Add(1)
		go func(nodeName string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			nr := e.executeNode(ctx, nodeName, g.Nodes[nodeName], state)
			mu.Lock()
			result.NodeResults[nodeName] = nr
			mu.Unlock()
		}(name)
	}

	wg.Wait()
}

func (e *Engine) executeNode(ctx context.Context, name string, node Node, state *State) (nr NodeResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			nr = NodeResult{
				Name:     name,
				Status:   StatusFailed,
				Duration: time.Since(start),
				Error:    fmt.Errorf("dag: node %q panicked: %v", name, r),
			}
		}
	}()

	output, err := node.Run(ctx, state)
	duration := time.Since(start)

	if err != nil {
		return NodeResult{
			Name:     name,
			Status:   StatusFailed,
			Duration: duration,
			Error:    err,
		}
	}

	return NodeResult{
		Name:     name,
		Status:   StatusCompleted,
		Duration: duration,
		Output:   output,
	}
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}
