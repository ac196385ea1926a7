package pipeline

import "fmt"

// State is a session's lifecycle position, per spec §4.6.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateFinalizing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// legalTransitions encodes spec §4.6's state diagram: Idle->Running,
// Running->{Paused,Finalizing,Failed}, Paused->{Running,Finalizing,Failed},
// Finalizing->{Closed,Failed}; Closed and Failed are terminal.
var legalTransitions = map[State]map[State]bool{
	StateIdle:       {StateRunning: true},
	StateRunning:    {StatePaused: true, StateFinalizing: true, StateFailed: true},
	StatePaused:     {StateRunning: true, StateFinalizing: true, StateFailed: true},
	StateFinalizing: {StateClosed: true, StateFailed: true},
	StateClosed:     {},
	StateFailed:     {},
}

// transitionError reports an attempted state change that spec §4.6 doesn't
// permit.
type transitionError struct {
	from, to State
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("pipeline: illegal transition %s -> %s", e.from, e.to)
}

// fsm is the state machine itself, factored out of sessionRuntime so it can be
// unit tested without any pipeline wiring.
type fsm struct {
	state State
}

func newFSM() *fsm { return &fsm{state: StateIdle} }

func (f *fsm) transition(to State) error {
	if allowed, ok := legalTransitions[f.state]; !ok || !allowed[to] {
		return &transitionError{from: f.state, to: to}
	}
	f.state = to
	return nil
}
