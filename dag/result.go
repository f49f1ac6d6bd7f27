package dag

import "time"

// Node statuses reported in NodeResult.Status.
const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Result holds the outcome of a graph execution.
type Result struct {
	NodeResults map[string]NodeResult
	Duration    time.Duration
	// SafeStopped is true when a node requested a safe stop during the run.
	SafeStopped bool
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name     string
	Status   string // "completed" | "skipped" | "failed"
	Duration time.Duration
	Output   any
	Error    error
}

// Errors returns the number of failed nodes.
func (r *Result) Errors() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, nr := range r.NodeResults {
		if nr.Status == StatusFailed {
			n++
		}
	}
	return n
}

// FirstError returns the error of the first failed node in name order, or nil.
func (r *Result) FirstError() error {
	if r == nil {
		return nil
	}
	var name string
	var err error
	for n, nr := range r.NodeResults {
		if nr.Status == StatusFailed && (err == nil || n < name) {
			name, err = n, nr.Error
		}
	}
	return err
}
