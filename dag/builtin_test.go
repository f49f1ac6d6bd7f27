package dag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/row"
)

func regionInput() (*row.Meta, []row.Row) {
	meta := row.NewMeta(
		row.NewValueMeta("id", row.TypeString),
		row.NewValueMeta("region", row.TypeString),
	)
	return meta, []row.Row{{"r1", "E"}, {"r2", "W"}, {"r3", "E"}}
}

func runPipeline(t *testing.T, p *Pipeline, state *State) *Result {
	t.Helper()
	inst, err := (&Engine{}).NewInstance(p, NewBuiltinRegistry(), nil, state)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if err := inst.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := inst.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return res
}

func TestBuiltins_FilterSetOutput(t *testing.T) {
	state := NewState()
	state.SetInput(regionInput())
	state.Vars.Set("REGION", "E")

	p := &Pipeline{
		Name: "east",
		Nodes: []NodeDef{
			{Component: ComponentRowsInput},
			{Name: "filter", Component: ComponentRowsFilter, DependsOn: []string{ComponentRowsInput},
				Config: map[string]string{"field": "region", "value": "${REGION}"}},
			{Name: "flag", Component: ComponentRowsSet, DependsOn: []string{"filter"},
				Config: map[string]string{"field": "score", "value": "7", "type": "Integer"}},
			{Component: ComponentRowsOutput, DependsOn: []string{"flag"}},
		},
	}

	res := runPipeline(t, p, state)
	if res.Errors() != 0 {
		t.Fatalf("unexpected failure: %v", res.FirstError())
	}

	out := state.Results()
	if len(out.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(out.Rows))
	}
	if got := out.Meta.Names(); len(got) != 3 || got[2] != "score" {
		t.Fatalf("unexpected result schema %v", got)
	}
	if out.Rows[1][0] != "r3" || out.Rows[1][2] != int64(7) {
		t.Fatalf("unexpected second row %v", out.Rows[1])
	}

	c := state.Counters()
	if c.Read != 3 || c.Input != 3 || c.Rejected != 1 || c.Written != 2 || c.Output != 2 {
		t.Fatalf("unexpected counters %+v", c)
	}
}

func TestBuiltins_FilterUnknownField(t *testing.T) {
	state := NewState()
	state.SetInput(regionInput())

	p := &Pipeline{
		Name: "bad",
		Nodes: []NodeDef{
			{Component: ComponentRowsInput},
			{Component: ComponentRowsFilter, DependsOn: []string{ComponentRowsInput},
				Config: map[string]string{"field": "missing"}},
		},
	}

	res := runPipeline(t, p, state)
	if res.Errors() != 1 {
		t.Fatalf("expected one failure, got %d", res.Errors())
	}
}

func TestBuiltins_FilesAndVars(t *testing.T) {
	state := NewState()
	state.SetInput(regionInput())

	p := &Pipeline{
		Name: "files",
		Nodes: []NodeDef{
			{Component: ComponentVarsSet, Config: map[string]string{"name": "OUT", "value": "/data/out"}},
			{Component: ComponentRowsInput},
			{Name: "static", Component: ComponentFilesAdd, DependsOn: []string{ComponentVarsSet},
				Config: map[string]string{"name": "${OUT}/summary.csv"}},
			{Name: "per-row", Component: ComponentFilesAdd, DependsOn: []string{"static", ComponentRowsInput},
				Config: map[string]string{"field": "id"}},
		},
	}

	res := runPipeline(t, p, state)
	if res.Errors() != 0 {
		t.Fatalf("unexpected failure: %v", res.FirstError())
	}
	files := state.Files()
	want := []string{"/data/out/summary.csv", "r1", "r2", "r3"}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Fatalf("got files %v, want %v", files, want)
	}
	if state.Vars.Get("OUT") != "/data/out" {
		t.Fatalf("expected OUT to be set, got %q", state.Vars.Get("OUT"))
	}
}

func TestBuiltins_AbortSetsExitStatus(t *testing.T) {
	state := NewState()
	state.Vars.Set("WHY", "bad batch")

	p := &Pipeline{
		Name:  "abort",
		Nodes: []NodeDef{{Component: ComponentAbort, Config: map[string]string{"message": "${WHY}", "status": "4"}}},
	}

	res := runPipeline(t, p, state)
	if res.Errors() != 1 {
		t.Fatalf("expected one failure, got %d", res.Errors())
	}
	if err := res.FirstError(); err == nil || err.Error() != "bad batch" {
		t.Fatalf("unexpected error %v", err)
	}
	if state.ExitStatus() != 4 {
		t.Fatalf("got exit status %d, want 4", state.ExitStatus())
	}
}

func TestBuiltins_StopRequestsSafeStop(t *testing.T) {
	state := NewState()
	p := &Pipeline{
		Name: "stop",
		Nodes: []NodeDef{
			{Component: ComponentStop},
			{Component: ComponentLog, DependsOn: []string{ComponentStop}, Config: map[string]string{"message": "never"}},
		},
	}

	res := runPipeline(t, p, state)
	if !res.SafeStopped {
		t.Fatal("expected safe stop")
	}
	if res.NodeResults[ComponentLog].Status != StatusSkipped {
		t.Fatalf("expected log skipped, got %s", res.NodeResults[ComponentLog].Status)
	}
}

func TestBuiltins_LogWritesToStateLog(t *testing.T) {
	capture := logger.NewCapture(0)
	state := NewState()
	state.Log = capture.Logger(nil, "nested")
	state.Vars.Set("WHO", "world")

	p := &Pipeline{
		Name:  "log",
		Nodes: []NodeDef{{Component: ComponentLog, Config: map[string]string{"message": "hello ${WHO}", "level": "warn"}}},
	}
	runPipeline(t, p, state)

	if !strings.Contains(capture.String(), "hello world") {
		t.Fatalf("expected message in log, got %q", capture.String())
	}
}

func TestBuiltins_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		def  NodeDef
	}{
		{"filter without field", NodeDef{Component: ComponentRowsFilter}},
		{"set without field", NodeDef{Component: ComponentRowsSet}},
		{"set with bad type", NodeDef{Component: ComponentRowsSet, Config: map[string]string{"field": "x", "type": "Weird"}}},
		{"files without target", NodeDef{Component: ComponentFilesAdd}},
		{"vars without name", NodeDef{Component: ComponentVarsSet}},
		{"wait with bad duration", NodeDef{Component: ComponentWait, Config: map[string]string{"duration": "soon"}}},
		{"abort with bad status", NodeDef{Component: ComponentAbort, Config: map[string]string{"status": "x"}}},
	}
	reg := NewBuiltinRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Build(tt.def); err == nil {
				t.Errorf("expected build error")
			}
		})
	}
}

func TestBuiltins_WaitHonoursCancellation(t *testing.T) {
	node, err := NewBuiltinRegistry().Build(NodeDef{Component: ComponentWait, Config: map[string]string{"duration": "1h"}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = node.Run(ctx, NewState())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}
