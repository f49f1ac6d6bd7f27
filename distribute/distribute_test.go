package distribute

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/subpipeline"
)

func sampleOutcome() *subpipeline.Outcome {
	return &subpipeline.Outcome{
		Succeeded:    false,
		Errors:       2,
		Read:         5,
		Written:      10,
		ExitStatus:   3,
		LogText:      "line 1\n",
		LogChannelID: "c-1",
		Elapsed:      1500 * time.Millisecond,
		RowsMeta: row.NewMeta(
			row.NewValueMeta("id", row.TypeString),
			row.NewValueMeta("amount", row.TypeString),
		),
		Rows:           []row.Row{{"a", "12"}, {"b", "7"}},
		Files:          []string{"/tmp/a.csv", "/tmp/b.csv"},
		FilesRetrieved: 2,
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	emit := row.NewCollector()
	tests := []struct {
		name string
		b    Bindings
	}{
		{"metrics without columns", Bindings{Metrics: MetricsBinding{Channel: "m"}}},
		{"unknown metric", Bindings{Metrics: MetricsBinding{Channel: "m", Columns: []MetricColumn{{Metric: "cpu"}}}}},
		{"result rows without fields", Bindings{ResultRows: ResultRowsBinding{Channel: "r"}}},
		{"result row with bad type", Bindings{ResultRows: ResultRowsBinding{Channel: "r", Fields: []FieldDef{{Name: "x", Type: "Weird"}}}}},
		{"result row with empty name", Bindings{ResultRows: ResultRowsBinding{Channel: "r", Fields: []FieldDef{{Name: " "}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.b, emit)
			if !errors.IsCode(err, errors.ErrCodeConfiguration) {
				t.Errorf("got %v, want a configuration error", err)
			}
		})
	}
}

func TestNew_BoundChannelsNeedEmitter(t *testing.T) {
	if _, err := New(Bindings{Passthrough: "p"}, nil); !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("got %v, want a configuration error", err)
	}
	if _, err := New(Bindings{}, nil); err != nil {
		t.Fatalf("no channels bound should need no emitter: %v", err)
	}
}

func TestDistribute_MetricsOnlyConfiguredColumns(t *testing.T) {
	emit := row.NewCollector()
	d, err := New(Bindings{Metrics: MetricsBinding{
		Channel: "metrics",
		Columns: []MetricColumn{{Metric: "errors"}, {Metric: "lines_written", Name: "written"}},
	}}, emit, WithOrigin("exec"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := d.Distribute(context.Background(), sampleOutcome()); err != nil {
		t.Fatalf("Distribute: %v", err)
	}

	rows := emit.Rows("metrics")
	if len(rows) != 1 {
		t.Fatalf("got %d metrics rows, want 1", len(rows))
	}
	if rows[0][0] != int64(2) || rows[0][1] != int64(10) {
		t.Errorf("got %v, want [2 10]", rows[0])
	}
	meta := emit.Meta("metrics")
	if got := strings.Join(meta.Names(), ","); got != "ExecutionNrErrors,written" {
		t.Errorf("got columns %s", got)
	}
	if meta.Value(0).Length != 9 || meta.Value(0).Origin != "exec" {
		t.Errorf("unexpected column meta %+v", meta.Value(0))
	}
	for _, ch := range []string{"rows", "files"} {
		if n := len(emit.Rows(ch)); n != 0 {
			t.Errorf("unbound channel %s received %d rows", ch, n)
		}
	}
}

func TestDistribute_AllMetrics(t *testing.T) {
	emit := row.NewCollector()
	d, err := New(Bindings{Metrics: MetricsBinding{Channel: "m", Columns: AllMetrics()}}, emit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := sampleOutcome()
	r := d.MetricsRow(out)

	want := []any{int64(1500), false, int64(2), int64(5), int64(10), int64(0), int64(0),
		int64(0), int64(0), int64(0), int64(2), int64(3), "line 1\n", "c-1"}
	if len(r) != len(want) {
		t.Fatalf("got %d values, want %d", len(r), len(want))
	}
	for i := range want {
		if r[i] != want[i] {
			t.Errorf("column %s: got %v, want %v", d.MetricsMeta().Value(i).Name, r[i], want[i])
		}
	}

	types := map[string]row.Type{
		"ExecutionTime":         row.TypeInteger,
		"ExecutionResult":       row.TypeBoolean,
		"ExecutionExitStatus":   row.TypeInteger,
		"ExecutionLogText":      row.TypeString,
		"ExecutionLogChannelId": row.TypeString,
	}
	for name, typ := range types {
		idx := d.MetricsMeta().IndexOf(name)
		if idx < 0 || d.MetricsMeta().Value(idx).Type != typ {
			t.Errorf("column %s: missing or wrong type", name)
		}
	}
	if got := d.MetricsMeta().Value(d.MetricsMeta().IndexOf("ExecutionLogChannelId")).Length; got != 50 {
		t.Errorf("got channel id length %d, want 50", got)
	}
}

func TestDistribute_ResultRowsProjectedAndConverted(t *testing.T) {
	emit := row.NewCollector()
	d, err := New(Bindings{ResultRows: ResultRowsBinding{
		Channel: "rows",
		Fields:  []FieldDef{{Name: "amount", Type: "Integer"}, {Name: "id"}},
	}}, emit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Distribute(context.Background(), sampleOutcome()); err != nil {
		t.Fatalf("Distribute: %v", err)
	}

	rows := emit.Rows("rows")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != int64(12) || rows[0][1] != "a" || rows[1][0] != int64(7) {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestDistribute_ResultRowMissingField(t *testing.T) {
	d, err := New(Bindings{ResultRows: ResultRowsBinding{
		Channel: "rows",
		Fields:  []FieldDef{{Name: "total"}},
	}}, row.NewCollector())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Distribute(context.Background(), sampleOutcome())
	if !errors.IsCode(err, errors.ErrCodeUnresolvedField) {
		t.Fatalf("got %v, want an unresolved field error", err)
	}
}

func TestDistribute_ResultFiles(t *testing.T) {
	emit := row.NewCollector()
	d, err := New(Bindings{ResultFiles: ResultFilesBinding{Channel: "files"}}, emit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Distribute(context.Background(), sampleOutcome()); err != nil {
		t.Fatalf("Distribute: %v", err)
	}

	rows := emit.Rows("files")
	if len(rows) != 2 || rows[0][0] != "/tmp/a.csv" || rows[1][0] != "/tmp/b.csv" {
		t.Fatalf("unexpected file rows %v", rows)
	}
	if got := emit.Meta("files").Names(); len(got) != 1 || got[0] != DefaultFileNameField {
		t.Errorf("got columns %v", got)
	}
}

func TestDistribute_UnboundResultRowsReceiveNothing(t *testing.T) {
	emit := row.NewCollector()
	d, err := New(Bindings{Metrics: MetricsBinding{Channel: "m", Columns: []MetricColumn{{Metric: "result"}}}}, emit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := sampleOutcome()
	for i := 0; i < 3; i++ {
		out.Rows = append(out.Rows, row.Row{fmt.Sprint(i), "1"})
	}
	if err := d.Distribute(context.Background(), out); err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if chans := emit.Channels(); len(chans) != 1 || chans[0] != "m" {
		t.Fatalf("got channels %v, want only m", chans)
	}
	if d.ResultRowsMeta() != nil || d.ResultFilesMeta() != nil {
		t.Error("unbound channels must have no schema")
	}
}

func TestPassthrough(t *testing.T) {
	meta := row.NewMeta(row.NewValueMeta("id", row.TypeString))
	emit := row.NewCollector()

	bound, _ := New(Bindings{Passthrough: "pass"}, emit)
	if err := bound.Passthrough(context.Background(), meta, row.Row{"x"}); err != nil {
		t.Fatalf("Passthrough: %v", err)
	}
	unbound, _ := New(Bindings{}, emit)
	if err := unbound.Passthrough(context.Background(), meta, row.Row{"y"}); err != nil {
		t.Fatalf("Passthrough: %v", err)
	}

	rows := emit.Rows("pass")
	if len(rows) != 1 || rows[0][0] != "x" {
		t.Fatalf("got %v", rows)
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
	}{
		{"time", MetricExecutionTime},
		{"ExecutionLinesRejected", MetricLinesRejected},
		{"LOG_CHANNEL_ID", MetricLogChannelID},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMetric(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if MetricExitStatus.DefaultColumn() != "ExecutionExitStatus" {
		t.Errorf("got %q", MetricExitStatus.DefaultColumn())
	}
}
