package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Invocation holds observability context for one sub-pipeline invocation.
type Invocation struct {
	Step      string
	Pipeline  string
	ID        string
	GroupSize int
	StartTime time.Time
	Metrics   *Metrics
}

// NewInvocation creates a tracked invocation.
// If metrics is nil, metric recording is silently skipped.
func NewInvocation(step, pipeline, id string, groupSize int, metrics *Metrics) *Invocation {
	return &Invocation{
		Step:      step,
		Pipeline:  pipeline,
		ID:        id,
		GroupSize: groupSize,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type invocationKey struct{}

// WithInvocation stores an Invocation in the context.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFromContext retrieves the Invocation from context, or nil.
func InvocationFromContext(ctx context.Context) *Invocation {
	if inv, ok := ctx.Value(invocationKey{}).(*Invocation); ok {
		return inv
	}
	return nil
}

// Start opens the invocation span and stores the invocation in the returned context.
func (inv *Invocation) Start(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanInvocation)
	span.SetAttributes(
		attribute.String(AttrStep, inv.Step),
		attribute.String(AttrPipeline, inv.Pipeline),
		attribute.String(AttrInvocation, inv.ID),
		attribute.Int(AttrGroupSize, inv.GroupSize),
	)
	return WithInvocation(ctx, inv), span
}

// End closes the span and records invocation metrics.
func (inv *Invocation) End(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(inv.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if inv.Metrics != nil {
		inv.Metrics.RecordInvocation(ctx, inv.Step, inv.Pipeline, status, inv.GroupSize, duration)
		if err != nil {
			inv.Metrics.RecordError(ctx, "invocation", inv.Step)
		}
	}
}

// Duration returns the elapsed time since the invocation started.
func (inv *Invocation) Duration() time.Duration {
	return time.Since(inv.StartTime)
}
