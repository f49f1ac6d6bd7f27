package dag

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/variables"
)

// State is the shared execution context of one pipeline run: a thread-safe
// key-value store for passing data between nodes, plus the run's variables,
// log sink, counters, and produced results.
type State struct {
	// Vars is the variable scope of the run. Never nil after NewState.
	Vars *variables.Scope
	// Log receives step log lines. Never nil after NewState.
	Log *logger.Logger

	mu   sync.RWMutex
	data map[string]any

	input      Rowset
	resultMeta *row.Meta
	results    []row.Row
	files      []string

	counters   [counterCount]atomic.Int64
	exitStatus atomic.Int64
	safeStop   atomic.Bool
}

// Rowset is an ordered set of rows sharing one schema.
type Rowset struct {
	Meta *row.Meta
	Rows []row.Row
}

// Clone deep-copies the rowset.
func (rs Rowset) Clone() Rowset {
	return Rowset{Meta: rs.Meta.Clone(), Rows: row.CloneAll(rs.Rows)}
}

// NewState creates a new empty State with its own variable scope and a no-op logger.
func NewState() *State {
	return &State{
		Vars: variables.NewScope(),
		Log:  logger.Nop(),
		data: make(map[string]any),
	}
}

// Get retrieves a value by key. Returns false if the key does not exist.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores a value by key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// SetInput preloads the initial working set. The rows are deep-copied.
func (s *State) SetInput(meta *row.Meta, rows []row.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = Rowset{Meta: meta.Clone(), Rows: row.CloneAll(rows)}
}

// Input returns a copy of the initial working set.
func (s *State) Input() Rowset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input.Clone()
}

// EmitResult appends a row to the run's collected output.
// The first call fixes the result schema.
func (s *State) EmitResult(meta *row.Meta, r row.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultMeta == nil {
		s.resultMeta = meta.Clone()
	}
	s.results = append(s.results, r.Clone())
}

// Results returns the collected output rows.
func (s *State) Results() Rowset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rowset{Meta: s.resultMeta.Clone(), Rows: row.CloneAll(s.results)}
}

// AddFile registers a result file name.
func (s *State) AddFile(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, name)
}

// Files returns the registered result file names in registration order.
func (s *State) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.files...)
}

// Count adds n to the given counter.
func (s *State) Count(c Counter, n int64) {
	s.counters[c].Add(n)
}

// Counters returns a snapshot of all counters.
func (s *State) Counters() Counters {
	return Counters{
		Read:     s.counters[CounterRead].Load(),
		Written:  s.counters[CounterWritten].Load(),
		Input:    s.counters[CounterInput].Load(),
		Output:   s.counters[CounterOutput].Load(),
		Rejected: s.counters[CounterRejected].Load(),
		Updated:  s.counters[CounterUpdated].Load(),
		Deleted:  s.counters[CounterDeleted].Load(),
	}
}

// SetExitStatus records the run's exit status.
func (s *State) SetExitStatus(code int) { s.exitStatus.Store(int64(code)) }

// ExitStatus returns the run's exit status.
func (s *State) ExitStatus() int { return int(s.exitStatus.Load()) }

// RequestSafeStop asks the run to finish the current level and start nothing new.
func (s *State) RequestSafeStop() { s.safeStop.Store(true) }

// SafeStopRequested reports whether a safe stop was requested.
func (s *State) SafeStopRequested() bool { return s.safeStop.Load() }

// Substitute resolves ${VAR} references against the run's variables.
func (s *State) Substitute(text string) string {
	return s.Vars.Substitute(text)
}

// Counter identifies one of the per-run row counters.
type Counter int

const (
	CounterRead Counter = iota
	CounterWritten
	CounterInput
	CounterOutput
	CounterRejected
	CounterUpdated
	CounterDeleted
	counterCount
)

// Counters is a snapshot of the per-run row counters.
type Counters struct {
	Read     int64
	Written  int64
	Input    int64
	Output   int64
	Rejected int64
	Updated  int64
	Deleted  int64
}

// Port is a compile-time typed accessor for State.
// It prevents type mismatches between nodes at compile time.
type Port[T any] struct {
	Key string
}

// RowsPort is where built-in row steps read and write the current working set.
var RowsPort = Port[Rowset]{Key: "rows"}

// ArgsPort holds the positional arguments passed down by the parent run.
var ArgsPort = Port[[]string]{Key: "arguments"}

// Read retrieves a typed value from state using a Port.
// Returns an error if the key is missing or the type doesn't match.
func Read[T any](state *State, port Port[T]) (T, error) {
	var zero T
	raw, ok := state.Get(port.Key)
	if !ok {
		return zero, fmt.Errorf("dag: state key %q not found", port.Key)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("dag: state key %q: expected %T, got %T", port.Key, zero, raw)
	}
	return val, nil
}

// Write stores a typed value into state using a Port.
func Write[T any](state *State, port Port[T], value T) {
	state.Set(port.Key, value)
}
