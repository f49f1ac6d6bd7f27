package distribute

import (
	"fmt"
	"strings"

	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/subpipeline"
)

// Metric identifies one value of the per-invocation metrics record.
type Metric int

const (
	MetricExecutionTime Metric = iota
	MetricResult
	MetricErrors
	MetricLinesRead
	MetricLinesWritten
	MetricLinesInput
	MetricLinesOutput
	MetricLinesRejected
	MetricLinesUpdated
	MetricLinesDeleted
	MetricFilesRetrieved
	MetricExitStatus
	MetricLogText
	MetricLogChannelID
)

type metricInfo struct {
	key       string
	column    string
	typ       row.Type
	length    int
	precision int
	value     func(*subpipeline.Outcome) any
}

var metricTable = []metricInfo{
	MetricExecutionTime: {"time", "ExecutionTime", row.TypeInteger, 15, 0,
		func(o *subpipeline.Outcome) any { return o.Elapsed.Milliseconds() }},
	MetricResult: {"result", "ExecutionResult", row.TypeBoolean, -1, -1,
		func(o *subpipeline.Outcome) any { return o.Succeeded }},
	MetricErrors: {"errors", "ExecutionNrErrors", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return int64(o.Errors) }},
	MetricLinesRead: {"lines_read", "ExecutionLinesRead", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Read }},
	MetricLinesWritten: {"lines_written", "ExecutionLinesWritten", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Written }},
	MetricLinesInput: {"lines_input", "ExecutionLinesInput", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Input }},
	MetricLinesOutput: {"lines_output", "ExecutionLinesOutput", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Output }},
	MetricLinesRejected: {"lines_rejected", "ExecutionLinesRejected", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Rejected }},
	MetricLinesUpdated: {"lines_updated", "ExecutionLinesUpdated", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Updated }},
	MetricLinesDeleted: {"lines_deleted", "ExecutionLinesDeleted", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return o.Deleted }},
	MetricFilesRetrieved: {"files_retrieved", "ExecutionFilesRetrieved", row.TypeInteger, 9, 0,
		func(o *subpipeline.Outcome) any { return int64(o.FilesRetrieved) }},
	MetricExitStatus: {"exit_status", "ExecutionExitStatus", row.TypeInteger, 3, 0,
		func(o *subpipeline.Outcome) any { return int64(o.ExitStatus) }},
	MetricLogText: {"log_text", "ExecutionLogText", row.TypeString, -1, -1,
		func(o *subpipeline.Outcome) any { return o.LogText }},
	MetricLogChannelID: {"log_channel_id", "ExecutionLogChannelId", row.TypeString, 50, 0,
		func(o *subpipeline.Outcome) any { return o.LogChannelID }},
}

// String returns the configuration key of the metric, e.g. "lines_read".
func (m Metric) String() string {
	if m < 0 || int(m) >= len(metricTable) {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricTable[m].key
}

// DefaultColumn returns the column name used when none is configured.
func (m Metric) DefaultColumn() string {
	return metricTable[m].column
}

// ParseMetric resolves a configuration key or a default column name,
// case-insensitively.
func ParseMetric(name string) (Metric, error) {
	for i, info := range metricTable {
		if strings.EqualFold(info.key, name) || strings.EqualFold(info.column, name) {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

// AllMetrics returns a column for every metric under its default name, in
// canonical order.
func AllMetrics() []MetricColumn {
	out := make([]MetricColumn, len(metricTable))
	for i, info := range metricTable {
		out[i] = MetricColumn{Metric: info.key, Name: info.column}
	}
	return out
}
