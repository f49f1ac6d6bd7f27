package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kbukum/etlkit/component"
)

// Summary prints what the process is made of at startup and how each
// component ended up after the task.
type Summary struct {
	serviceName     string
	version         string
	out             io.Writer
	startupDuration time.Duration
	runDuration     time.Duration
}

// NewSummary creates a summary printer. A nil out writes to stderr.
func NewSummary(serviceName, version string, out io.Writer) *Summary {
	if out == nil {
		out = os.Stderr
	}
	return &Summary{serviceName: serviceName, version: version, out: out}
}

// SetStartupDuration records the time spent starting components.
func (s *Summary) SetStartupDuration(d time.Duration) { s.startupDuration = d }

// SetRunDuration records the total time of the task.
func (s *Summary) SetRunDuration(d time.Duration) { s.runDuration = d }

// DisplayStartup lists every registered component with its self-description.
func (s *Summary) DisplayStartup(registry *component.Registry) {
	fmt.Fprintf(s.out, "\n%s %s started in %.2fs\n", s.serviceName, displayVersion(s.version), s.startupDuration.Seconds())
	if registry == nil {
		return
	}
	all := registry.All()
	for i, c := range all {
		d := describe(c)
		fmt.Fprintf(s.out, "   %s [%s] %s", treePrefix(i, len(all)), d.Type, d.Name)
		if d.Details != "" {
			fmt.Fprintf(s.out, ": %s", d.Details)
		}
		fmt.Fprintln(s.out)
	}
	fmt.Fprintln(s.out)
}

// DisplayReport lists the final health of every component.
func (s *Summary) DisplayReport(ctx context.Context, registry *component.Registry) {
	fmt.Fprintf(s.out, "\n%s finished in %.2fs\n", s.serviceName, s.runDuration.Seconds())
	if registry == nil {
		return
	}
	reports := registry.HealthAll(ctx)
	for i, h := range reports {
		fmt.Fprintf(s.out, "   %s %s %s", treePrefix(i, len(reports)), statusIcon(h.Status), h.Name)
		if h.Message != "" {
			fmt.Fprintf(s.out, " (%s)", h.Message)
		}
		fmt.Fprintln(s.out)
	}
	fmt.Fprintf(s.out, "overall: %s\n\n", component.Overall(reports))
}

func describe(c component.Component) component.Description {
	d := component.Description{Name: c.Name(), Type: "component"}
	if dc, ok := c.(component.Describable); ok {
		d = dc.Describe()
		if d.Name == "" {
			d.Name = c.Name()
		}
	}
	return d
}

func displayVersion(v string) string {
	if v == "" {
		return "(dev)"
	}
	return "v" + v
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✓"
	case component.StatusDegraded:
		return "!"
	default:
		return "✗"
	}
}
