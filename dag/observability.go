package dag

import (
	"context"
	"time"

	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/observability"
)

// WithTracing wraps a Node with OpenTelemetry span creation.
// Each execution creates a span named "{prefix}.{nodeName}".
func WithTracing(node Node, prefix string) Node {
	return &tracingNode{inner: node, prefix: prefix}
}

// Tracing returns WithTracing as engine middleware.
func Tracing(prefix string) Middleware {
	return func(n Node) Node { return WithTracing(n, prefix) }
}

type tracingNode struct {
	inner  Node
	prefix string
}

func (n *tracingNode) Name() string { return n.inner.Name() }

func (n *tracingNode) Run(ctx context.Context, state *State) (any, error) {
	spanName := n.prefix + "." + n.inner.Name()
	ctx, span := observability.StartSpan(ctx, spanName)
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrStep, n.inner.Name())

	result, err := n.inner.Run(ctx, state)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}

	return result, err
}

// WithMetrics wraps a Node with metric recording.
// Records step count, duration, and errors under the pipeline name.
func WithMetrics(node Node, pipeline string, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, pipeline: pipeline, metrics: metrics}
}

// Metered returns WithMetrics as engine middleware.
func Metered(pipeline string, metrics *observability.Metrics) Middleware {
	return func(n Node) Node { return WithMetrics(n, pipeline, metrics) }
}

type metricsNode struct {
	inner    Node
	pipeline string
	metrics  *observability.Metrics
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		n.metrics.RecordError(ctx, "step", n.inner.Name())
	}
	n.metrics.RecordStep(ctx, n.pipeline, n.inner.Name(), status, duration)

	return result, err
}

// WithLogging wraps a Node with execution logging to the run's log sink.
// Logs: node name, duration, and success/error status.
func WithLogging(node Node) Node {
	return &loggingNode{inner: node}
}

type loggingNode struct {
	inner Node
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)
	duration := time.Since(start)

	fields := map[string]interface{}{
		logger.FieldStep:     n.inner.Name(),
		logger.FieldDuration: duration.Milliseconds(),
	}

	if err != nil {
		fields[logger.FieldError] = err.Error()
		state.Log.Error("step failed", fields)
	} else {
		state.Log.Debug("step completed", fields)
	}

	return result, err
}
