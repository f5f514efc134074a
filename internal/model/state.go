package model

// State is a pipeline run state.
// Runs move strictly forward through the states in declaration order and
// end in either StateDone or StateFailed.
type State int

const (
	// StatePending is the state of a run that has not started.
	StatePending State = iota
	// StateFetching is the state while the target page is retrieved.
	StateFetching
	// StateExtracting is the state while stylesheet links are collected.
	StateExtracting
	// StateDownloading is the state while stylesheets are retrieved.
	StateDownloading
	// StatePurging is the state while unused rules are removed.
	StatePurging
	// StateAggregating is the state while purged css is concatenated and measured.
	StateAggregating
	// StateDone is the terminal success state.
	StateDone
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateDownloading:
		return "downloading"
	case StatePurging:
		return "purging"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return unknownStr
	}
}

// IsTerminal reports whether s is StateDone or StateFailed.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanAdvanceTo reports whether a run in state s may move to next.
// StateFailed is reachable from every non-terminal state; otherwise the
// only edge is to a later state.
func (s State) CanAdvanceTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next > s
}

// unknownStr is the string representation for unknown values.
const unknownStr = "unknown"
