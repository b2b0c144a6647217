package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInputPathNotFound means the configured input root does not exist.
	ErrInputPathNotFound = errors.New("input path not found")
	// ErrNoEvaluationResults means the evaluation pass failed without
	// producing any results.
	ErrNoEvaluationResults = errors.New("evaluation produced no results")
	// ErrSendFailed wraps a telemetry delivery failure.
	ErrSendFailed = errors.New("sending results failed")
	// ErrInvalidReport is returned in stop error mode when a report is empty
	// or malformed.
	ErrInvalidReport = errors.New("invalid report")
)

// State is a pipeline run state.
type State int

const (
	StateStart State = iota
	StateLocated
	StateValidated
	StateEvaluated
	StateSent
	StateDone
	StateEarlyExit
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLocated:
		return "located"
	case StateValidated:
		return "validated"
	case StateEvaluated:
		return "evaluated"
	case StateSent:
		return "sent"
	case StateDone:
		return "done"
	case StateEarlyExit:
		return "early-exit"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateEarlyExit || s == StateFailed
}

// Counts summarizes what a run saw.
type Counts struct {
	Files     int
	Valid     int
	Empty     int
	Malformed int
	Globs     int
	Results   int
}

// Result is the outcome of one run.
type Result struct {
	RunID string
	State State
	// Path is every state the run passed through, ending in State.
	Path []State
	// Degraded marks a run that sent partial evaluation results.
	Degraded bool
	Counts   Counts
	Err      error
}

// Success reports whether the run ended without failure.
func (r Result) Success() bool {
	return r.State == StateDone || r.State == StateEarlyExit
}

// Exit codes.
const (
	ExitOK       = 0
	ExitFailed   = 1
	ExitDegraded = 2
	// ExitSetup is used when the run could not be started (bad flags or config).
	ExitSetup = 3
)

// ExitCode maps a run result to a process exit code. Degraded runs exit 0
// unless strictDegraded is set.
func ExitCode(r Result, strictDegraded bool) int {
	switch r.State {
	case StateDone:
		if r.Degraded && strictDegraded {
			return ExitDegraded
		}
		return ExitOK
	case StateEarlyExit:
		return ExitOK
	default:
		return ExitFailed
	}
}
