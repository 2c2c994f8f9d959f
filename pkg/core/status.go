package core

// State is a run status another action can wait on through runAfter
type State string

const (
	StateAborted   State = "Aborted"
	StateCancelled State = "Cancelled"
	StateFailed    State = "Failed"
	StateFaulted   State = "Faulted"
	StateIgnored   State = "Ignored"
	StatePaused    State = "Paused"
	StateRunning   State = "Running"
	StateSkipped   State = "Skipped"
	StateSucceeded State = "Succeeded"
	StateSuspended State = "Suspended"
	StateTimedOut  State = "TimedOut"
	StateWaiting   State = "Waiting"
)

// IsValid returns true if the state is one Power Automate recognizes
func (s State) IsValid() bool {
	switch s {
	case StateAborted, StateCancelled, StateFailed, StateFaulted, StateIgnored,
		StatePaused, StateRunning, StateSkipped, StateSucceeded, StateSuspended,
		StateTimedOut, StateWaiting:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the state is a final state
func (s State) IsTerminal() bool {
	switch s {
	case StateAborted, StateCancelled, StateFailed, StateFaulted, StateIgnored,
		StateSkipped, StateSucceeded, StateTimedOut:
		return true
	default:
		return false
	}
}

// DefaultStates is what an action waits for when linked without options
func DefaultStates() []State {
	return []State{StateSucceeded}
}

// ForceStates lets an action run whatever the outcome of its predecessor
func ForceStates() []State {
	return []State{StateSucceeded, StateFailed, StateSkipped, StateTimedOut}
}

// FailureStates runs an action only when its predecessor failed
func FailureStates() []State {
	return []State{StateFailed}
}

// ErrorCategory classifies the type of error for better reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryValidation                      // Bad parameters, duplicate names, misplaced actions
	ErrCategoryLookup                          // Unknown action, branch, connector or operation
	ErrCategoryIO                              // Filesystem read or write failure
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryValidation:
		return "validation"
	case ErrCategoryLookup:
		return "lookup"
	case ErrCategoryIO:
		return "io"
	default:
		return "unknown"
	}
}
