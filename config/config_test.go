package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/etlkit/executor"
)

func validConfig() ServiceConfig {
	return ServiceConfig{
		Name:      "batchexec",
		Executors: []executor.Config{{Name: "per-customer", Pipeline: "load-customer"}},
	}
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Environment != "development" || !cfg.Debug {
		t.Errorf("expected development with debug, got %q debug=%v", cfg.Environment, cfg.Debug)
	}
	if len(cfg.PipelineDirs) != 1 || cfg.PipelineDirs[0] != "./pipelines" {
		t.Errorf("unexpected pipeline dirs %v", cfg.PipelineDirs)
	}
	if cfg.Journal.DSN == "" || cfg.Logging.Level != "info" {
		t.Errorf("section defaults not applied: %+v %+v", cfg.Journal, cfg.Logging)
	}
	if cfg.Executors[0].LogLimit == 0 {
		t.Error("executor defaults not applied")
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
		errMsg string
	}{
		{"valid", func(*ServiceConfig) {}, ""},
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "config.name is required"},
		{"invalid environment", func(c *ServiceConfig) { c.Environment = "qa" }, "config.environment must be one of"},
		{"no executors", func(c *ServiceConfig) { c.Executors = nil }, "at least one executor"},
		{"duplicate executor", func(c *ServiceConfig) {
			c.Executors = append(c.Executors, executor.Config{Name: "per-customer", Pipeline: "other"})
		}, "duplicate name"},
		{"invalid executor", func(c *ServiceConfig) { c.Executors[0].Pipeline = "" }, "config.executors[0]"},
		{"invalid logging", func(c *ServiceConfig) { c.Logging.Level = "loud" }, "config.logging"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: batchexec
environment: staging
journal:
  enabled: true
  dsn: ":memory:"
executors:
  - name: per-customer
    pipeline: load-customer
    grouping:
      field: custID
    inherit_all_variables: true
    parameters:
      - variable: CUST
        field: custID
    outputs:
      metrics:
        channel: metrics
        columns:
          - metric: errors
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg ServiceConfig
	if err := LoadConfig("batchexec", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "batchexec" || cfg.Environment != "staging" {
		t.Errorf("unexpected base fields %q %q", cfg.Name, cfg.Environment)
	}
	if !cfg.Journal.Enabled || cfg.Journal.DSN != ":memory:" {
		t.Errorf("unexpected journal %+v", cfg.Journal)
	}
	ex, ok := cfg.Executor("per-customer")
	if !ok {
		t.Fatal("executor not loaded")
	}
	if ex.Grouping.Field != "custID" || !ex.Params.InheritAllVariables {
		t.Errorf("unexpected executor %+v", ex)
	}
	if len(ex.Params.Declarations) != 1 || ex.Params.Declarations[0].Variable != "CUST" {
		t.Errorf("unexpected parameters %+v", ex.Params.Declarations)
	}
	if len(ex.Outputs.Metrics.Columns) != 1 || ex.Outputs.Metrics.Columns[0].Metric != "errors" {
		t.Errorf("unexpected outputs %+v", ex.Outputs)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("name: batchexec\njournal:\n  dsn: file.db\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("JOURNAL_DSN", "override.db")

	var cfg ServiceConfig
	if err := LoadConfig("batchexec", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Journal.DSN != "override.db" {
		t.Errorf("expected env override, got %q", cfg.Journal.DSN)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg ServiceConfig
	err := LoadConfig("batchexec", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected a not found error, got %v", err)
	}
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestResolverSearchOrder(t *testing.T) {
	tests := []struct {
		name       string
		files      []string
		wantConfig string
		wantEnv    string
	}{
		{"nothing found", nil, "", ""},
		{"cmd dir first", []string{"./cmd/svc/config.yml", "./config.yml"}, "./cmd/svc/config.yml", ""},
		{"service file in config dir", []string{"./config/svc.yml", "./config/config.yml"}, "./config/svc.yml", ""},
		{"root fallback", []string{"./config.yml", "./.env"}, "./config.yml", "./.env"},
		{"service env file", []string{"./.env.svc", "./.env"}, "", "./.env.svc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := &mockFS{files: map[string]bool{}}
			for _, f := range tc.files {
				fs.files[f] = true
			}
			got := (&Resolver{FileSystem: fs}).ResolveFiles("svc", LoaderConfig{})
			if got.ConfigFile != tc.wantConfig || got.EnvFile != tc.wantEnv {
				t.Errorf("got %+v, want config=%q env=%q", got, tc.wantConfig, tc.wantEnv)
			}
		})
	}
}

func TestLoadConfigLoadsEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./.env": true}}
	var cfg ServiceConfig
	if err := LoadConfig("svc", &cfg, WithFileSystem(fs)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(fs.loaded) != 1 || fs.loaded[0] != "./.env" {
		t.Errorf("expected ./.env to be loaded, got %v", fs.loaded)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("JOURNAL_SLOW_QUERY_THRESHOLD")
	want := []string{
		"journal_slow_query_threshold",
		"journal.slow_query_threshold",
		"journal.slow.query_threshold",
		"journal.slow.query.threshold",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := envKeyVariants("NAME"); len(got) != 1 || got[0] != "name" {
		t.Errorf("got %v", got)
	}
}
