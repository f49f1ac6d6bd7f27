// Command batchexec runs one batch executor over JSON-lines input.
//
//	batchexec -config config.yml -executor per-customer -input orders.jsonl > out.jsonl
//
// Every input line is one record. Channel records are written to stdout as
// {"channel": ..., "record": {...}} lines; logs and the run summary go to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kbukum/etlkit/bootstrap"
	"github.com/kbukum/etlkit/config"
	"github.com/kbukum/etlkit/dag"
	"github.com/kbukum/etlkit/executor"
	"github.com/kbukum/etlkit/journal"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/observability"
	"github.com/kbukum/etlkit/params"
	"github.com/kbukum/etlkit/pipeline"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/subpipeline"
	"github.com/kbukum/etlkit/variables"
	"github.com/kbukum/etlkit/version"
)

const serviceName = "batchexec"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file (searched when empty)")
	envPath := fs.String("env", "", "path to a .env file (searched when empty)")
	execName := fs.String("executor", "", "executor to run (the first configured when empty)")
	inputPath := fs.String("input", "", "JSON-lines input file (stdin when empty)")
	channels := fs.String("channels", "", "comma-separated channels written to stdout (all when empty)")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.Get())
		return nil
	}

	var cfg config.ServiceConfig
	if err := config.LoadConfig(serviceName, &cfg,
		config.WithConfigFile(*configPath), config.WithEnvFile(*envPath)); err != nil {
		return err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Short()
	}
	// stdout carries the channel records
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	exCfg, err := selectExecutor(&cfg, *execName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdown, err := observability.Setup(ctx, &cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return err
	}
	app.OnStop(func(ctx context.Context) error { return shutdown(ctx) })
	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}

	vars := variables.FromEnvironment()
	for k, v := range cfg.Variables {
		vars.Set(k, v)
	}

	loader := dag.NewFilePipelineLoader(cfg.PipelineDirs...)
	registry := dag.NewBuiltinRegistry()
	engine := &dag.Engine{Middleware: []dag.Middleware{dag.Tracing("step"), dag.Metered(exCfg.Pipeline, metrics)}}
	subpipeline.RegisterComponent(registry, loader, engine, params.DefaultConfig())

	jc := journal.NewComponent(cfg.Journal, log)
	if err := app.RegisterComponent(jc); err != nil {
		return err
	}

	input := stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}
	reader := newLineReader(input)
	meta, err := reader.Schema()
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ex, err := executor.New(exCfg, executor.Deps{
		Engine:   engine,
		Registry: registry,
		Loader:   loader,
		Emitter:  newLineWriter(stdout, splitList(*channels)),
		Vars:     vars,
		Log:      log,
		Args:     fs.Args(),
		Metrics:  metrics,
		Journal:  journalRecorder{jc},
	})
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(ex); err != nil {
		return err
	}

	if cfg.Journal.Enabled {
		app.OnStop(func(ctx context.Context) error {
			return logJournalSummary(ctx, jc, exCfg.Name, log)
		})
	}

	if err := app.RunTask(ctx, func(ctx context.Context) error {
		return ex.Run(ctx, meta, pipeline.From[row.Row](reader))
	}); err != nil {
		return err
	}
	if n := ex.Errors(); n > 0 {
		return fmt.Errorf("%d errors in %d invocations", n, ex.Invocations())
	}
	return nil
}

func selectExecutor(cfg *config.ServiceConfig, name string) (executor.Config, error) {
	if name == "" {
		return cfg.Executors[0], nil
	}
	ex, ok := cfg.Executor(name)
	if !ok {
		return executor.Config{}, fmt.Errorf("executor %q is not configured", name)
	}
	return ex, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// journalRecorder defers to the journal once its component has started.
type journalRecorder struct {
	c *journal.Component
}

func (r journalRecorder) Record(ctx context.Context, e *journal.Entry) error {
	j := r.c.Journal()
	if j == nil {
		return nil
	}
	return j.Record(ctx, e)
}

func logJournalSummary(ctx context.Context, c *journal.Component, step string, log *logger.Logger) error {
	j := c.Journal()
	if j == nil {
		return nil
	}
	s, err := j.Summarize(ctx, step)
	if err != nil {
		return err
	}
	log.Info("Journal summary", logger.Fields(
		logger.FieldStep, step,
		"invocations", s.Invocations,
		"failed", s.Failed,
		logger.FieldErrors, s.Errors,
		"written", s.Written,
	))
	return nil
}
