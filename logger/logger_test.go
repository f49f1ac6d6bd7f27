package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "json"}, "exec", &buf)
	l.Info("group flushed", Fields(FieldGroupSize, 3))

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("expected a json line, got %q: %v", buf.String(), err)
	}
	if event["message"] != "group flushed" {
		t.Errorf("got message %v", event["message"])
	}
	if event[FieldGroupSize] != float64(3) {
		t.Errorf("got group_size %v", event[FieldGroupSize])
	}
	if event["service"] != "exec" {
		t.Errorf("got service %v", event["service"])
	}
}

func TestLevelIsPerLogger(t *testing.T) {
	var a, b bytes.Buffer
	warnOnly := NewWithWriter(&Config{Level: "warn", Format: "json"}, "a", &a)
	debug := NewWithWriter(&Config{Level: "debug", Format: "json"}, "b", &b)

	warnOnly.Info("hidden")
	debug.Debug("shown")

	if a.Len() != 0 {
		t.Errorf("warn logger wrote info: %q", a.String())
	}
	if !strings.Contains(b.String(), "shown") {
		t.Errorf("debug logger dropped debug event: %q", b.String())
	}
	if warnOnly.Level() != "warn" {
		t.Errorf("got level %q", warnOnly.Level())
	}
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "error", Format: "json"}, "x", &buf).WithLevel("debug")
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "json"}, "svc", &buf).
		WithComponent("runner").
		WithFields(map[string]interface{}{FieldStep: "exec"})
	l.Info("hello")

	out := buf.String()
	for _, want := range []string{`"component":"runner"`, `"step":"exec"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %q", want, out)
		}
	}
	if l.service != "svc" {
		t.Errorf("service should be preserved, got %q", l.service)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	if l.WithComponent("x") == nil {
		t.Fatal("expected derived logger")
	}
}

func TestGlobalLogger(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
	Init(&Config{Level: "debug", Format: "json", Output: "stdout"})
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.CaptureLimit != DefaultCaptureLimit {
		t.Errorf("expected capture limit %d, got %d", DefaultCaptureLimit, cfg.CaptureLimit)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"op", "save", "id", 42}, map[string]interface{}{"op": "save", "id": 42}},
		{"odd number of args", []interface{}{"op", "save", "trailing"}, map[string]interface{}{"op": "save"}},
		{"non-string key skipped", []interface{}{1, "x", "k", "v"}, map[string]interface{}{"k": "v"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fields(tc.input...)
			if len(got) != len(tc.expected) {
				t.Fatalf("got %v, want %v", got, tc.expected)
			}
			for k, v := range tc.expected {
				if got[k] != v {
					t.Errorf("key %q: got %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
