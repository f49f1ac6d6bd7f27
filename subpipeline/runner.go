package subpipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/etlkit/dag"
	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/params"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/variables"
)

// Controller receives safe-stop requests raised inside a nested run.
type Controller interface {
	RequestSafeStop()
}

// ParentContext is what a nested run inherits from the step that starts it.
type ParentContext struct {
	// StepName keys the parent's ActiveRegistry.
	StepName string
	Vars     *variables.Scope
	// Log is the parent's logger. Its level is inherited by the nested run
	// and captured lines are also written to it.
	Log  *logger.Logger
	Args []string
	// Active is owned by the parent. May be nil.
	Active *ActiveRegistry
	// Controller receives nested safe-stop requests. May be nil.
	Controller Controller
}

// Runner starts nested pipeline instances, one per call to Run.
// Run calls on one Runner must not overlap.
type Runner struct {
	engine   *dag.Engine
	registry *dag.Registry
	loader   dag.PipelineLoader
	cfg      params.Config
	logLimit int

	mu      sync.Mutex
	current *dag.Instance
	stopped bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogLimit bounds the captured log of each invocation to n bytes.
func WithLogLimit(n int) Option {
	return func(r *Runner) { r.logLimit = n }
}

// New creates a Runner. cfg is the same parameter configuration the binder
// uses; only InheritAllVariables is read here.
func New(engine *dag.Engine, registry *dag.Registry, loader dag.PipelineLoader, cfg params.Config, opts ...Option) *Runner {
	if engine == nil {
		engine = &dag.Engine{}
	}
	if registry == nil {
		registry = dag.NewBuiltinRegistry()
	}
	r := &Runner{
		engine:   engine,
		registry: registry,
		loader:   loader,
		cfg:      cfg,
		logLimit: logger.DefaultCaptureLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes def once over group and blocks until it completes. Failures
// to build or run the nested pipeline are reported in the outcome, never
// returned or propagated as panics.
func (r *Runner) Run(ctx context.Context, def *dag.Pipeline, group []row.Row, groupMeta *row.Meta, bound params.Bindings, parent *ParentContext) (out *Outcome) {
	start := time.Now()
	if parent == nil {
		parent = &ParentContext{}
	}
	if r.Stopped() {
		return &Outcome{Stopped: true, Err: errors.Stopped("sub-pipeline runner")}
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = failed(errors.Invocation(pipelineName(def), fmt.Errorf("panic: %v", rec)), time.Since(start))
		}
	}()

	state := dag.NewState()
	state.Vars = r.childScope(parent)

	capture := logger.NewCapture(r.logLimit)
	state.Log = capture.Logger(parent.Log, pipelineName(def))

	inst, err := r.engine.NewInstance(def, r.registry, r.loader, state)
	if err != nil {
		return failed(errors.Invocation(pipelineName(def), err), time.Since(start))
	}
	state.Log = state.Log.WithFields(logger.Fields(
		logger.FieldStep, parent.StepName,
		logger.FieldInvocation, inst.ID(),
	))
	if parent.Active != nil {
		parent.Active.Replace(parent.StepName, &Active{
			InstanceID: inst.ID(),
			Pipeline:   def.Name,
			Capture:    capture,
		})
	}

	bindInto(state.Vars, def, bound)
	if len(parent.Args) > 0 {
		dag.Write(state, dag.ArgsPort, append([]string(nil), parent.Args...))
	}
	state.SetInput(groupMeta, group)

	if !r.track(inst) {
		return &Outcome{Stopped: true, Err: errors.Stopped("sub-pipeline runner"), Elapsed: time.Since(start)}
	}
	defer r.untrack(inst)

	if err := inst.Start(ctx); err != nil {
		out = failed(errors.Invocation(def.Name, err), time.Since(start))
		out.Stopped = inst.Stopped()
		return r.finish(out, inst, capture, parent)
	}
	res, err := inst.Wait()

	out = collect(state, res, time.Since(start))
	if err != nil {
		out.Succeeded = false
		out.Errors = max(out.Errors, 1)
		if out.ExitStatus == 0 {
			out.ExitStatus = 1
		}
		out.Err = errors.Invocation(def.Name, err)
	}
	if inst.Stopped() {
		out.Stopped = true
		out.Succeeded = false
	}
	return r.finish(out, inst, capture, parent)
}

// Stop stops the running invocation, if any, and every later Run returns a
// stopped outcome without starting anything.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.current != nil {
		r.current.Stop()
	}
}

// Stopped reports whether Stop was called.
func (r *Runner) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Runner) track(inst *dag.Instance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.current = inst
	return true
}

func (r *Runner) untrack(inst *dag.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == inst {
		r.current = nil
	}
}

func (r *Runner) childScope(parent *ParentContext) *variables.Scope {
	scope := variables.NewScope()
	if r.cfg.InheritAllVariables && parent.Vars != nil {
		scope.InheritFrom(parent.Vars)
	}
	return scope
}

func (r *Runner) finish(out *Outcome, inst *dag.Instance, capture *logger.Capture, parent *ParentContext) *Outcome {
	out.LogChannelID = inst.ID()
	out.LogText = capture.String()
	if out.SafeStopRequested && parent.Controller != nil {
		parent.Controller.RequestSafeStop()
	}
	return out
}

// bindInto assigns bound values: names declared by def become parameter
// values, the rest plain variables. Parameters are activated last so their
// defaults apply only where nothing was bound.
func bindInto(scope *variables.Scope, def *dag.Pipeline, bound params.Bindings) {
	for _, b := range bound {
		if def.HasParameter(b.Variable) {
			scope.SetParameterValue(b.Variable, b.Value)
			continue
		}
		scope.Set(b.Variable, b.Value)
	}
	scope.ActivateParameters()
}

func collect(state *dag.State, res *dag.Result, elapsed time.Duration) *Outcome {
	c := state.Counters()
	results := state.Results()
	files := state.Files()
	out := &Outcome{
		Errors:            res.Errors(),
		Read:              c.Read,
		Written:           c.Written,
		Input:             c.Input,
		Output:            c.Output,
		Rejected:          c.Rejected,
		Updated:           c.Updated,
		Deleted:           c.Deleted,
		FilesRetrieved:    len(files),
		ExitStatus:        state.ExitStatus(),
		Rows:              results.Rows,
		RowsMeta:          results.Meta,
		Files:             files,
		SafeStopRequested: state.SafeStopRequested(),
		Elapsed:           elapsed,
	}
	if res != nil && res.SafeStopped {
		out.SafeStopRequested = true
	}
	out.Succeeded = out.Errors == 0
	if !out.Succeeded {
		out.Err = res.FirstError()
	}
	return out
}

func pipelineName(def *dag.Pipeline) string {
	if def == nil {
		return ""
	}
	return def.Name
}
