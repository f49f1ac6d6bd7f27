package grouping

import (
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/variables"
)

// Config selects the grouping policy. Size and TimeMillis are strings so they
// can reference variables; they are resolved once when the accumulator is built.
type Config struct {
	// Size flushes after this many rows. A positive size overrides Field and TimeMillis.
	Size string `yaml:"size" mapstructure:"size" validate:"intorvar"`
	// Field starts a new group whenever its value changes.
	Field string `yaml:"field" mapstructure:"field"`
	// TimeMillis flushes once this many milliseconds passed since the group started.
	TimeMillis string `yaml:"time_millis" mapstructure:"time_millis" validate:"intorvar"`
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

// Accumulator buffers rows and asks its policy where group boundaries fall.
// It is not safe for concurrent use.
type Accumulator struct {
	policy Policy
	now    func() time.Time
	group  []row.Row
}

// New resolves cfg against scope and builds an accumulator with the selected policy.
func New(cfg Config, scope *variables.Scope, opts ...Option) (*Accumulator, error) {
	policy, err := PolicyFor(cfg, scope)
	if err != nil {
		return nil, err
	}
	return NewWithPolicy(policy, opts...), nil
}

// NewWithPolicy builds an accumulator around an explicit policy.
func NewWithPolicy(policy Policy, opts ...Option) *Accumulator {
	a := &Accumulator{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.policy.Reset(a.now())
	return a
}

// PolicyFor selects the policy for cfg: size first, then field, then time, else none.
func PolicyFor(cfg Config, scope *variables.Scope) (Policy, error) {
	size, err := resolveInt(scope, "grouping.size", cfg.Size)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		return &BySize{N: size}, nil
	}

	field := strings.TrimSpace(substitute(scope, cfg.Field))
	if field != "" {
		return &ByFieldChange{Field: field}, nil
	}

	millis, err := resolveInt(scope, "grouping.time_millis", cfg.TimeMillis)
	if err != nil {
		return nil, err
	}
	if millis > 0 {
		return &ByElapsedTime{Window: time.Duration(millis) * time.Millisecond}, nil
	}

	return Ungrouped{}, nil
}

func substitute(scope *variables.Scope, s string) string {
	if scope == nil {
		return s
	}
	return scope.Substitute(s)
}

func resolveInt(scope *variables.Scope, setting, raw string) (int, error) {
	text := strings.TrimSpace(substitute(scope, raw))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.Configuration(setting, "not an integer: "+strconv.Quote(text))
	}
	return n, nil
}

// Kind returns the selected policy kind.
func (a *Accumulator) Kind() Kind { return a.policy.Kind() }

// Policy returns the selected policy.
func (a *Accumulator) Policy() Policy { return a.policy }

// Bind resolves schema-dependent policy settings.
func (a *Accumulator) Bind(meta *row.Meta) error {
	return a.policy.Bind(meta)
}

// Offer asks where r falls relative to the current group. It does not append.
func (a *Accumulator) Offer(r row.Row) (Decision, error) {
	return a.policy.Decide(r, len(a.group), a.now())
}

// Append adds r to the current group.
func (a *Accumulator) Append(r row.Row) {
	a.group = append(a.group, r)
	a.policy.Appended(r)
}

// Group returns the rows buffered since the last flush.
func (a *Accumulator) Group() []row.Row { return a.group }

// Len returns the number of buffered rows.
func (a *Accumulator) Len() int { return len(a.group) }

// Last returns the most recently appended row of the current group.
func (a *Accumulator) Last() (row.Row, bool) {
	if len(a.group) == 0 {
		return nil, false
	}
	return a.group[len(a.group)-1], true
}

// Flush hands over the buffered group and starts a new one. The policy is
// reset even when the group is empty.
func (a *Accumulator) Flush() []row.Row {
	g := a.group
	a.group = make([]row.Row, 0, cap(g))
	a.policy.Reset(a.now())
	return g
}
