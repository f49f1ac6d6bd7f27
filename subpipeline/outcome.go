package subpipeline

import (
	"time"

	"github.com/kbukum/etlkit/row"
)

// Outcome is the result of one nested pipeline invocation. It is not
// modified after Run returns.
type Outcome struct {
	Succeeded bool
	Errors    int

	Read     int64
	Written  int64
	Input    int64
	Output   int64
	Rejected int64
	Updated  int64
	Deleted  int64

	FilesRetrieved int
	ExitStatus     int

	LogText      string
	LogChannelID string

	Rows     []row.Row
	RowsMeta *row.Meta
	Files    []string

	SafeStopRequested bool
	// Stopped is set when the invocation was cut short, or never started,
	// because the runner was stopped.
	Stopped bool
	Elapsed time.Duration
	// Err is the first error of a failed invocation.
	Err error
}

// Status renders the outcome as "success", "failed" or "stopped".
func (o *Outcome) Status() string {
	switch {
	case o.Stopped:
		return "stopped"
	case o.Succeeded:
		return "success"
	default:
		return "failed"
	}
}

func failed(err error, elapsed time.Duration) *Outcome {
	return &Outcome{
		Succeeded:  false,
		Errors:     1,
		ExitStatus: 1,
		Elapsed:    elapsed,
		Err:        err,
	}
}
