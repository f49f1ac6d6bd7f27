package grouping

import (
	"time"

	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/row"
)

// Kind names a grouping policy.
type Kind int

const (
	KindNone Kind = iota
	KindBySize
	KindByFieldChange
	KindByElapsedTime
)

func (k Kind) String() string {
	switch k {
	case KindBySize:
		return "by_size"
	case KindByFieldChange:
		return "by_field_change"
	case KindByElapsedTime:
		return "by_elapsed_time"
	default:
		return "none"
	}
}

// Decision tells the caller when to flush relative to appending the offered row.
type Decision int

const (
	// None appends the row and keeps accumulating.
	None Decision = iota
	// FlushBeforeAppend flushes the current group; the row seeds the next one.
	FlushBeforeAppend
	// FlushAfterAppend appends the row, then flushes the group it completes.
	FlushAfterAppend
)

func (d Decision) String() string {
	switch d {
	case FlushBeforeAppend:
		return "flush_before_append"
	case FlushAfterAppend:
		return "flush_after_append"
	default:
		return "none"
	}
}

// Policy decides group boundaries. Exactly one implementation is chosen at
// construction and consulted for every row.
type Policy interface {
	Kind() Kind
	// Bind resolves schema-dependent settings once the input schema is known.
	Bind(meta *row.Meta) error
	// Decide is consulted before r is appended to a group of buffered rows.
	Decide(r row.Row, buffered int, now time.Time) (Decision, error)
	// Appended is called after r joined the current group.
	Appended(r row.Row)
	// Reset is called on every flush, including flushes of an empty group.
	Reset(now time.Time)
}

// BySize flushes after every n-th row.
type BySize struct {
	N int
}

func (p *BySize) Kind() Kind { return KindBySize }
func (p *BySize) Bind(*row.Meta) error { return nil }
func (p *BySize) Appended(row.Row) {}
func (p *BySize) Reset(time.Time) {}

func (p *BySize) Decide(_ row.Row, buffered int, _ time.Time) (Decision, error) {
	if buffered+1 >= p.N {
		return FlushAfterAppend, nil
	}
	return None, nil
}

// ByFieldChange starts a new group whenever the grouping field differs from
// the key of the current group. The key is taken from the first non-nil value
// appended since the last flush.
type ByFieldChange struct {
	Field string

	index  int
	key    any
	hasKey bool
}

func (p *ByFieldChange) Kind() Kind { return KindByFieldChange }

func (p *ByFieldChange) Bind(meta *row.Meta) error {
	idx := meta.IndexOf(p.Field)
	if idx < 0 {
		return errors.UnresolvedField("group field", p.Field)
	}
	p.index = idx
	return nil
}

func (p *ByFieldChange) Decide(r row.Row, _ int, _ time.Time) (Decision, error) {
	if !p.hasKey {
		return None, nil
	}
	v, _ := r.Get(p.index)
	if row.Equal(p.key, v) {
		return None, nil
	}
	if v != nil && !row.SameKind(p.key, v) {
		return None, errors.SchemaDrift(p.Field, p.key, v)
	}
	return FlushBeforeAppend, nil
}

func (p *ByFieldChange) Appended(r row.Row) {
	if p.hasKey {
		return
	}
	if v, ok := r.Get(p.index); ok {
		p.key, p.hasKey = v, true
	}
}

func (p *ByFieldChange) Reset(time.Time) {
	p.key, p.hasKey = nil, false
}

// ByElapsedTime flushes before the first row that arrives once Window has
// passed since the group started.
type ByElapsedTime struct {
	Window time.Duration

	start time.Time
}

func (p *ByElapsedTime) Kind() Kind { return KindByElapsedTime }
func (p *ByElapsedTime) Bind(*row.Meta) error { return nil }
func (p *ByElapsedTime) Appended(row.Row) {}
func (p *ByElapsedTime) Reset(now time.Time) { p.start = now }

func (p *ByElapsedTime) Decide(_ row.Row, _ int, now time.Time) (Decision, error) {
	if now.Sub(p.start) >= p.Window {
		return FlushBeforeAppend, nil
	}
	return None, nil
}

// Ungrouped never flushes; the whole input becomes one group at end of input.
type Ungrouped struct{}

func (Ungrouped) Kind() Kind { return KindNone }
func (Ungrouped) Bind(*row.Meta) error { return nil }
func (Ungrouped) Decide(row.Row, int, time.Time) (Decision, error) { return None, nil }
func (Ungrouped) Appended(row.Row) {}
func (Ungrouped) Reset(time.Time) {}
