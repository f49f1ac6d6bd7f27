package subpipeline

import (
	"context"
	"fmt"

	"github.com/kbukum/etlkit/dag"
	"github.com/kbukum/etlkit/params"
)

// ComponentRun is the step kind that runs another pipeline over the current
// working set, letting pipelines nest to any depth.
const ComponentRun = "pipeline.run"

// RegisterComponent adds the pipeline.run step kind to registry. Nested
// pipelines are loaded by name through loader and resolved against the same
// registry. Each built node owns a fresh Runner.
//
//	nodes:
//	  - name: enrich
//	    component: pipeline.run
//	    depends_on: [load]
//	    config:
//	      pipeline: enrich-customer
func RegisterComponent(registry *dag.Registry, loader dag.PipelineLoader, engine *dag.Engine, cfg params.Config) {
	registry.RegisterFactory(ComponentRun, func(def dag.NodeDef) (dag.Node, error) {
		name := def.Setting("pipeline", "")
		if name == "" {
			return nil, fmt.Errorf("%s: pipeline is required", def.Component)
		}
		if loader == nil {
			return nil, fmt.Errorf("%s: no pipeline loader configured", def.NodeName())
		}
		runner := New(engine, registry, loader, cfg)
		active := NewActiveRegistry()

		return dag.NodeFunc(def.NodeName(), func(ctx context.Context, s *dag.State) (any, error) {
			nested, err := loader.Load(s.Substitute(name))
			if err != nil {
				return nil, err
			}
			rs, err := dag.Read(s, dag.RowsPort)
			if err != nil {
				rs = s.Input()
			}
			args, _ := dag.Read(s, dag.ArgsPort)

			out := runner.Run(ctx, nested, rs.Rows, rs.Meta, nil, &ParentContext{
				StepName:   def.NodeName(),
				Vars:       s.Vars,
				Log:        s.Log,
				Args:       args,
				Active:     active,
				Controller: s,
			})
			if !out.Succeeded {
				if out.Err != nil {
					return nil, out.Err
				}
				return nil, fmt.Errorf("%s: nested pipeline %q failed with %d errors", def.NodeName(), nested.Name, out.Errors)
			}
			dag.Write(s, dag.RowsPort, dag.Rowset{Meta: out.RowsMeta, Rows: out.Rows})
			for _, f := range out.Files {
				s.AddFile(f)
			}
			return out, nil
		}), nil
	})
}
