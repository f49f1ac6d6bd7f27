package executor

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/etlkit/component"
	"github.com/kbukum/etlkit/dag"
	"github.com/kbukum/etlkit/distribute"
	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/grouping"
	"github.com/kbukum/etlkit/journal"
	"github.com/kbukum/etlkit/params"
	"github.com/kbukum/etlkit/pipeline"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/variables"
)

// recorder is a nested step that remembers every group it was given.
type recorder struct {
	mu     sync.Mutex
	groups [][]row.Row
	vars   []string
}

func (rc *recorder) registry(varName string) *dag.Registry {
	reg := dag.NewBuiltinRegistry()
	reg.RegisterFactory("capture", func(def dag.NodeDef) (dag.Node, error) {
		return dag.NodeFunc(def.NodeName(), func(_ context.Context, s *dag.State) (any, error) {
			in := s.Input()
			rc.mu.Lock()
			defer rc.mu.Unlock()
			rc.groups = append(rc.groups, in.Rows)
			rc.vars = append(rc.vars, s.Vars.Get(varName))
			return len(in.Rows), nil
		}), nil
	})
	return reg
}

func (rc *recorder) sizes() []int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]int, len(rc.groups))
	for i, g := range rc.groups {
		out[i] = len(g)
	}
	return out
}

var capturePipeline = &dag.Pipeline{
	Name: "capture",
	Nodes: []dag.NodeDef{
		{Component: "capture"},
		{Component: dag.ComponentRowsInput},
		{Component: dag.ComponentRowsOutput, DependsOn: []string{dag.ComponentRowsInput}},
	},
}

func customers() (*row.Meta, []row.Row) {
	meta := row.NewMeta(
		row.NewValueMeta("custID", row.TypeString),
		row.NewValueMeta("region", row.TypeString),
	)
	return meta, []row.Row{
		{"c1", "E"}, {"c2", "E"}, {"c3", "W"}, {"c4", "W"}, {"c5", "W"}, {"c6", "E"},
	}
}

func newExecutor(t *testing.T, cfg Config, deps Deps) *Executor {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "exec"
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = "capture"
	}
	if deps.Pipeline == nil && deps.Loader == nil {
		deps.Pipeline = capturePipeline
	}
	e, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func scopeWith(name, value string) *variables.Scope {
	s := variables.NewScope()
	s.Set(name, value)
	return s
}

func run(t *testing.T, e *Executor, meta *row.Meta, rows []row.Row) {
	t.Helper()
	if err := e.Run(context.Background(), meta, pipeline.FromSlice(rows)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExecutor_Grouping(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		grouping grouping.Config
		want     []int
	}{
		{"by size", 5, grouping.Config{Size: "3"}, []int{3, 2}},
		{"by size exact", 6, grouping.Config{Size: "3"}, []int{3, 3}},
		{"by field", 6, grouping.Config{Field: "region"}, []int{2, 3, 1}},
		{"size wins over field", 6, grouping.Config{Size: "4", Field: "region"}, []int{4, 2}},
		{"ungrouped", 6, grouping.Config{}, []int{6}},
		{"empty input", 0, grouping.Config{Size: "2"}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &recorder{}
			e := newExecutor(t, Config{Grouping: tt.grouping}, Deps{Registry: rc.registry("")})
			meta, rows := customers()
			run(t, e, meta, rows[:tt.rows])

			if got := rc.sizes(); !equalInts(got, tt.want) {
				t.Errorf("got groups %v, want %v", got, tt.want)
			}
			if e.Invocations() != int64(len(tt.want)) {
				t.Errorf("got %d invocations, want %d", e.Invocations(), len(tt.want))
			}
			if e.State() != Closed {
				t.Errorf("got state %s, want closed", e.State())
			}
		})
	}
}

func TestExecutor_GroupsKeepOrder(t *testing.T) {
	rc := &recorder{}
	e := newExecutor(t, Config{Grouping: grouping.Config{Size: "3"}}, Deps{Registry: rc.registry("")})
	meta, rows := customers()
	run(t, e, meta, rows[:5])

	var ids []string
	for _, g := range rc.groups {
		for _, r := range g {
			ids = append(ids, r[0].(string))
		}
	}
	if got := strings.Join(ids, ","); got != "c1,c2,c3,c4,c5" {
		t.Errorf("got %s", got)
	}
}

func TestExecutor_ElapsedTimeGrouping(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	rc := &recorder{}
	e := newExecutor(t, Config{Grouping: grouping.Config{TimeMillis: "100"}},
		Deps{Registry: rc.registry(""), Clock: clock})
	meta, rows := customers()
	ctx := context.Background()

	for i, step := range []time.Duration{0, 50 * time.Millisecond, 60 * time.Millisecond} {
		now = now.Add(step)
		if err := e.ProcessRow(ctx, meta, rows[i]); err != nil {
			t.Fatalf("ProcessRow: %v", err)
		}
	}
	if err := e.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if got := rc.sizes(); !equalInts(got, []int{2, 1}) {
		t.Errorf("got groups %v, want [2 1]", got)
	}
}

func TestExecutor_ParameterFromLastRow(t *testing.T) {
	rc := &recorder{}
	cfg := Config{
		Grouping: grouping.Config{Field: "region"},
		Params: params.Config{
			Declarations:        []params.Declaration{{Variable: "CUST", Field: "custID"}},
			InheritAllVariables: true,
		},
	}
	e := newExecutor(t, cfg, Deps{Registry: rc.registry("CUST")})
	meta, rows := customers()
	run(t, e, meta, rows)

	if got := strings.Join(rc.vars, ","); got != "c2,c5,c6" {
		t.Errorf("got parameter values %s, want c2,c5,c6", got)
	}
}

func TestExecutor_UnresolvedFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"grouping field", Config{Grouping: grouping.Config{Field: "nope"}}},
		{"parameter field", Config{Params: params.Config{
			Declarations: []params.Declaration{{Variable: "X", Field: "nope"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &recorder{}
			e := newExecutor(t, tt.cfg, Deps{Registry: rc.registry("")})
			meta, rows := customers()

			err := e.ProcessRow(context.Background(), meta, rows[0])
			if !errors.IsCode(err, errors.ErrCodeConfiguration) {
				t.Fatalf("got %v, want a configuration error", err)
			}
			if len(rc.groups) != 0 {
				t.Errorf("nested pipeline ran %d times", len(rc.groups))
			}
		})
	}
}

func TestExecutor_SchemaDrift(t *testing.T) {
	rc := &recorder{}
	e := newExecutor(t, Config{Grouping: grouping.Config{Field: "region"}}, Deps{Registry: rc.registry("")})
	meta, _ := customers()
	ctx := context.Background()

	if err := e.ProcessRow(ctx, meta, row.Row{"c1", "E"}); err != nil {
		t.Fatalf("ProcessRow: %v", err)
	}
	err := e.ProcessRow(ctx, meta, row.Row{"c2", int64(7)})
	if !errors.IsCode(err, errors.ErrCodeSchemaDrift) {
		t.Fatalf("got %v, want schema drift", err)
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"missing name", Config{Pipeline: "capture"}, Deps{Pipeline: capturePipeline}},
		{"missing pipeline", Config{Name: "exec"}, Deps{Pipeline: capturePipeline}},
		{"no loader", Config{Name: "exec", Pipeline: "capture"}, Deps{}},
		{"unknown pipeline", Config{Name: "exec", Pipeline: "other"},
			Deps{Loader: dag.StaticLoader{"capture": capturePipeline}}},
		{"bad size", Config{Name: "exec", Pipeline: "capture", Grouping: grouping.Config{Size: "lots"}},
			Deps{Pipeline: capturePipeline}},
		{"duplicate parameter", Config{Name: "exec", Pipeline: "capture", Params: params.Config{
			Declarations: []params.Declaration{{Variable: "A", Value: "1"}, {Variable: "A", Value: "2"}},
		}}, Deps{Pipeline: capturePipeline}},
		{"channel without emitter", Config{Name: "exec", Pipeline: "capture",
			Outputs: distribute.Bindings{Passthrough: "out"}}, Deps{Pipeline: capturePipeline}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.deps)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.IsCode(err, errors.ErrCodeConfiguration) {
				t.Errorf("got %v, want a configuration error", err)
			}
		})
	}
}

func TestNew_LoadsPipelineByName(t *testing.T) {
	rc := &recorder{}
	e := newExecutor(t, Config{Pipeline: "${FLOW}"}, Deps{
		Registry: rc.registry(""),
		Loader:   dag.StaticLoader{"capture": capturePipeline},
		Vars:     scopeWith("FLOW", "capture"),
	})
	if e.Pipeline().Name != "capture" {
		t.Fatalf("got pipeline %q", e.Pipeline().Name)
	}
}

// resolvingCollector only knows the channels it was created with.
type resolvingCollector struct {
	*row.Collector
	known map[string]bool
}

func (c resolvingCollector) HasChannel(name string) bool { return c.known[name] }

func TestNew_UnknownChannel(t *testing.T) {
	emit := resolvingCollector{Collector: row.NewCollector(), known: map[string]bool{"metrics": true}}
	_, err := New(Config{
		Name:     "exec",
		Pipeline: "capture",
		Outputs: distribute.Bindings{
			Metrics:    distribute.MetricsBinding{Channel: "metrics", Columns: []distribute.MetricColumn{{Metric: "errors"}}},
			ResultRows: distribute.ResultRowsBinding{Channel: "rows", Fields: []distribute.FieldDef{{Name: "custID"}}},
		},
	}, Deps{Pipeline: capturePipeline, Emitter: emit})
	if !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("got %v, want a configuration error", err)
	}
}

func TestExecutor_Outputs(t *testing.T) {
	rc := &recorder{}
	emit := row.NewCollector()
	cfg := Config{
		Grouping: grouping.Config{Size: "2"},
		Outputs: distribute.Bindings{
			Passthrough: "pass",
			Metrics: distribute.MetricsBinding{Channel: "metrics", Columns: []distribute.MetricColumn{
				{Metric: "result"}, {Metric: "lines_read"}, {Metric: "log_channel_id"},
			}},
			ResultRows: distribute.ResultRowsBinding{Channel: "rows", Fields: []distribute.FieldDef{{Name: "custID"}}},
		},
	}
	e := newExecutor(t, cfg, Deps{Registry: rc.registry(""), Emitter: emit})
	meta, rows := customers()
	run(t, e, meta, rows[:5])

	if n := len(emit.Rows("pass")); n != 5 {
		t.Errorf("got %d passthrough rows, want 5", n)
	}
	metrics := emit.Rows("metrics")
	if len(metrics) != 3 {
		t.Fatalf("got %d metrics rows, want one per invocation", len(metrics))
	}
	for i, m := range metrics {
		if m[0] != true {
			t.Errorf("invocation %d: got result %v", i, m[0])
		}
		if m[2] == "" {
			t.Errorf("invocation %d: empty log channel id", i)
		}
	}
	if metrics[2][1] != int64(1) {
		t.Errorf("got lines read %v for the last group, want 1", metrics[2][1])
	}
	if n := len(emit.Rows("rows")); n != 5 {
		t.Errorf("got %d result rows, want 5", n)
	}
	if got := emit.Meta("rows").Names(); len(got) != 1 || got[0] != "custID" {
		t.Errorf("got result row schema %v", got)
	}
}

func TestExecutor_FailureDoesNotAbort(t *testing.T) {
	def := &dag.Pipeline{
		Name:  "fails",
		Nodes: []dag.NodeDef{{Component: dag.ComponentAbort, Config: map[string]string{"message": "boom"}}},
	}
	emit := row.NewCollector()
	e := newExecutor(t, Config{
		Grouping: grouping.Config{Size: "2"},
		Outputs: distribute.Bindings{Metrics: distribute.MetricsBinding{
			Channel: "metrics", Columns: []distribute.MetricColumn{{Metric: "result"}, {Metric: "errors"}},
		}},
	}, Deps{Pipeline: def, Emitter: emit})
	meta, rows := customers()
	run(t, e, meta, rows[:4])

	if e.Invocations() != 2 || e.Errors() != 2 {
		t.Fatalf("got invocations=%d errors=%d, want 2 and 2", e.Invocations(), e.Errors())
	}
	for _, m := range emit.Rows("metrics") {
		if m[0] != false || m[1] != int64(1) {
			t.Errorf("got metrics %v, want [false 1]", m)
		}
	}
	if h := e.Health(context.Background()); h.Status != component.StatusDegraded {
		t.Errorf("got health %s, want degraded", h.Status)
	}
}

func TestExecutor_StopRefusesWork(t *testing.T) {
	rc := &recorder{}
	e := newExecutor(t, Config{Grouping: grouping.Config{Size: "2"}}, Deps{Registry: rc.registry("")})
	meta, rows := customers()
	ctx := context.Background()

	if err := e.ProcessRow(ctx, meta, rows[0]); err != nil {
		t.Fatalf("ProcessRow: %v", err)
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.ProcessRow(ctx, meta, rows[1]); !errors.IsCode(err, errors.ErrCodeStopped) {
		t.Errorf("got %v, want a stopped error", err)
	}
	if err := e.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(rc.groups) != 0 {
		t.Errorf("nested pipeline ran %d times after stop", len(rc.groups))
	}
	if err := e.Start(ctx); !errors.IsCode(err, errors.ErrCodeStopped) {
		t.Errorf("Start after Stop: got %v", err)
	}
	if h := e.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("got health %s, want unhealthy", h.Status)
	}
}

type parentController struct{ requested bool }

func (p *parentController) RequestSafeStop() { p.requested = true }

func TestExecutor_SafeStopHaltsInput(t *testing.T) {
	def := &dag.Pipeline{Name: "stops", Nodes: []dag.NodeDef{{Component: dag.ComponentStop}}}
	parent := &parentController{}
	e := newExecutor(t, Config{Grouping: grouping.Config{Size: "2"}}, Deps{Pipeline: def, Controller: parent})
	meta, rows := customers()
	run(t, e, meta, rows)

	if e.Invocations() != 1 {
		t.Errorf("got %d invocations, want 1", e.Invocations())
	}
	if !e.SafeStopRequested() || !parent.requested {
		t.Error("safe stop was not propagated")
	}
}

type fakeJournal struct {
	entries []*journal.Entry
	err     error
}

func (j *fakeJournal) Record(_ context.Context, e *journal.Entry) error {
	j.entries = append(j.entries, e)
	return j.err
}

func TestExecutor_Journal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"records", nil},
		{"record failure is not fatal", stderrors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &recorder{}
			j := &fakeJournal{err: tt.err}
			e := newExecutor(t, Config{Grouping: grouping.Config{Size: "4"}}, Deps{Registry: rc.registry(""), Journal: j})
			meta, rows := customers()
			run(t, e, meta, rows)

			if len(j.entries) != 2 {
				t.Fatalf("got %d entries, want 2", len(j.entries))
			}
			first := j.entries[0]
			if first.Step != "exec" || first.Pipeline != "capture" || first.GroupSize != 4 || first.Status != "success" {
				t.Errorf("unexpected entry %+v", first)
			}
			if first.InvocationID == j.entries[1].InvocationID {
				t.Error("invocation ids are not unique")
			}
		})
	}
}

func TestExecutor_FinishIsIdempotent(t *testing.T) {
	rc := &recorder{}
	e := newExecutor(t, Config{}, Deps{Registry: rc.registry("")})
	meta, rows := customers()
	ctx := context.Background()
	if err := e.ProcessRow(ctx, meta, rows[0]); err != nil {
		t.Fatalf("ProcessRow: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := e.Finish(ctx); err != nil {
			t.Fatalf("Finish: %v", err)
		}
	}
	if len(rc.groups) != 1 {
		t.Errorf("got %d invocations, want 1", len(rc.groups))
	}
	if err := e.ProcessRow(ctx, meta, rows[1]); !errors.IsCode(err, errors.ErrCodeStopped) {
		t.Errorf("ProcessRow after Finish: got %v", err)
	}
}
