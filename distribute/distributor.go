package distribute

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/subpipeline"
)

// DefaultFileNameField is the column of the result-files channel when none is configured.
const DefaultFileNameField = "FileName"

// MetricColumn selects one metric for the metrics channel. Name defaults to
// the metric's default column.
type MetricColumn struct {
	Metric string `yaml:"metric" mapstructure:"metric" validate:"required"`
	Name   string `yaml:"name" mapstructure:"name"`
}

// FieldDef declares one column of the result-rows channel.
type FieldDef struct {
	Name      string `yaml:"name" mapstructure:"name" validate:"required"`
	Type      string `yaml:"type" mapstructure:"type"`
	Length    int    `yaml:"length" mapstructure:"length"`
	Precision int    `yaml:"precision" mapstructure:"precision"`
}

// MetricsBinding configures the metrics channel.
type MetricsBinding struct {
	Channel string         `yaml:"channel" mapstructure:"channel"`
	Columns []MetricColumn `yaml:"columns" mapstructure:"columns" validate:"dive"`
}

// ResultRowsBinding configures the result-rows channel.
type ResultRowsBinding struct {
	Channel string     `yaml:"channel" mapstructure:"channel"`
	Fields  []FieldDef `yaml:"fields" mapstructure:"fields" validate:"dive"`
}

// ResultFilesBinding configures the result-files channel.
type ResultFilesBinding struct {
	Channel       string `yaml:"channel" mapstructure:"channel"`
	FileNameField string `yaml:"file_name_field" mapstructure:"file_name_field"`
}

// Bindings names the consumer of each output channel. An empty Channel
// leaves that channel unbound.
type Bindings struct {
	Passthrough string             `yaml:"passthrough" mapstructure:"passthrough"`
	Metrics     MetricsBinding     `yaml:"metrics" mapstructure:"metrics"`
	ResultRows  ResultRowsBinding  `yaml:"result_rows" mapstructure:"result_rows"`
	ResultFiles ResultFilesBinding `yaml:"result_files" mapstructure:"result_files"`
}

// ApplyDefaults fills the file-name column.
func (b *Bindings) ApplyDefaults() {
	if b.ResultFiles.FileNameField == "" {
		b.ResultFiles.FileNameField = DefaultFileNameField
	}
}

// Channels returns the bound channel names.
func (b Bindings) Channels() []string {
	var out []string
	for _, c := range []string{b.Passthrough, b.Metrics.Channel, b.ResultRows.Channel, b.ResultFiles.Channel} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Distributor emits rows to the bound channels. Schemas of the metrics,
// result-rows and result-files channels are computed once in New.
type Distributor struct {
	b    Bindings
	emit row.Emitter

	metrics     []Metric
	metricsMeta *row.Meta
	rowsMeta    *row.Meta
	filesMeta   *row.Meta
}

// Option configures a Distributor.
type Option func(*options)

type options struct {
	origin string
}

// WithOrigin stamps the producing step name on every computed column.
func WithOrigin(step string) Option {
	return func(o *options) { o.origin = step }
}

// New validates the bindings and computes the channel schemas. A bound
// channel whose schema would be empty is a configuration error.
func New(b Bindings, emit row.Emitter, opts ...Option) (*Distributor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b.ApplyDefaults()
	if emit == nil && len(b.Channels()) > 0 {
		return nil, errors.Configuration("distribute", "channels are bound but no emitter was given")
	}

	d := &Distributor{b: b, emit: emit}

	if b.Metrics.Channel != "" {
		if len(b.Metrics.Columns) == 0 {
			return nil, errors.Configuration("metrics.columns", "metrics channel is bound but no metric columns are configured")
		}
		d.metricsMeta = row.NewMeta()
		for _, c := range b.Metrics.Columns {
			m, err := ParseMetric(c.Metric)
			if err != nil {
				return nil, errors.Configuration("metrics.columns", err.Error())
			}
			info := metricTable[m]
			name := c.Name
			if name == "" {
				name = info.column
			}
			d.metrics = append(d.metrics, m)
			d.metricsMeta.Add(row.ValueMeta{Name: name, Type: info.typ, Length: info.length, Precision: info.precision, Origin: o.origin})
		}
	}

	if b.ResultRows.Channel != "" {
		if len(b.ResultRows.Fields) == 0 {
			return nil, errors.Configuration("result_rows.fields", "result rows channel is bound but no fields are declared")
		}
		d.rowsMeta = row.NewMeta()
		for _, f := range b.ResultRows.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return nil, errors.Configuration("result_rows.fields", "field name is empty")
			}
			t := row.TypeString
			if f.Type != "" {
				parsed, err := row.ParseType(f.Type)
				if err != nil {
					return nil, errors.Configuration("result_rows.fields", err.Error())
				}
				t = parsed
			}
			d.rowsMeta.Add(row.ValueMeta{Name: f.Name, Type: t, Length: f.Length, Precision: f.Precision, Origin: o.origin})
		}
	}

	if b.ResultFiles.Channel != "" {
		d.filesMeta = row.NewMeta(row.ValueMeta{
			Name: b.ResultFiles.FileNameField, Type: row.TypeString, Length: -1, Precision: -1, Origin: o.origin,
		})
	}
	return d, nil
}

// Bindings returns the effective bindings.
func (d *Distributor) Bindings() Bindings { return d.b }

// MetricsMeta returns the metrics channel schema, or nil when unbound.
func (d *Distributor) MetricsMeta() *row.Meta { return d.metricsMeta }

// ResultRowsMeta returns the result-rows channel schema, or nil when unbound.
func (d *Distributor) ResultRowsMeta() *row.Meta { return d.rowsMeta }

// ResultFilesMeta returns the result-files channel schema, or nil when unbound.
func (d *Distributor) ResultFilesMeta() *row.Meta { return d.filesMeta }

// Passthrough forwards an input row unchanged, as it is read.
func (d *Distributor) Passthrough(ctx context.Context, meta *row.Meta, r row.Row) error {
	if d.b.Passthrough == "" {
		return nil
	}
	return d.emit.Emit(ctx, d.b.Passthrough, meta, r)
}

// Distribute emits the outcome of one invocation: the metrics record, then
// every produced row, then one record per produced file.
func (d *Distributor) Distribute(ctx context.Context, out *subpipeline.Outcome) error {
	if out == nil {
		return nil
	}
	if d.metricsMeta != nil {
		if err := d.emit.Emit(ctx, d.b.Metrics.Channel, d.metricsMeta, d.MetricsRow(out)); err != nil {
			return err
		}
	}
	if d.rowsMeta != nil {
		for i, r := range out.Rows {
			projected, err := d.project(out.RowsMeta, r)
			if err != nil {
				return fmt.Errorf("result row %d: %w", i, err)
			}
			if err := d.emit.Emit(ctx, d.b.ResultRows.Channel, d.rowsMeta, projected); err != nil {
				return err
			}
		}
	}
	if d.filesMeta != nil {
		for _, f := range out.Files {
			if err := d.emit.Emit(ctx, d.b.ResultFiles.Channel, d.filesMeta, row.Row{f}); err != nil {
				return err
			}
		}
	}
	return nil
}

// MetricsRow builds the metrics record of out in configured column order.
func (d *Distributor) MetricsRow(out *subpipeline.Outcome) row.Row {
	r := make(row.Row, len(d.metrics))
	for i, m := range d.metrics {
		r[i] = metricTable[m].value(out)
	}
	return r
}

// project maps a produced row onto the declared result fields by name.
func (d *Distributor) project(meta *row.Meta, r row.Row) (row.Row, error) {
	out := make(row.Row, d.rowsMeta.Size())
	for i, vm := range d.rowsMeta.Values() {
		idx := meta.IndexOf(vm.Name)
		if idx < 0 {
			return nil, errors.UnresolvedField("result row", vm.Name)
		}
		v, _ := r.Get(idx)
		converted, err := row.Convert(v, vm.Type)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("field %q cannot be converted to %s", vm.Name, vm.Type)).WithCause(err)
		}
		out[i] = converted
	}
	return out, nil
}
