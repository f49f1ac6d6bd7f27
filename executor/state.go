package executor

// State is the lifecycle position of an Executor.
type State int32

const (
	// Idle: no row seen yet.
	Idle State = iota
	// Accumulating: buffering rows between invocations.
	Accumulating
	// Invoking: a group's nested pipeline is running.
	Invoking
	// Draining: end of input reached, the final group may still run.
	Draining
	// Closed: no more rows are accepted.
	Closed
)

var stateNames = [...]string{"idle", "accumulating", "invoking", "draining", "closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
