package sync

import (
	"fmt"
)

// State is a step of a reconciliation run.
type State string

// Run states.
const (
	StateIdle           State = "idle"
	StateLoadingLocal   State = "loading_local"
	StateFetchingRemote State = "fetching_remote"
	StateCleaning       State = "cleaning"
	StatePlanning       State = "planning"
	StateExecuting      State = "executing"
	StateReported       State = "reported"
	StateFailed         State = "failed"
)

var transitions = map[State][]State{
	StateIdle:           {StateLoadingLocal},
	StateLoadingLocal:   {StateFetchingRemote, StateFailed},
	StateFetchingRemote: {StateCleaning, StateFailed},
	StateCleaning:       {StatePlanning},
	StatePlanning:       {StateExecuting, StateReported},
	StateExecuting:      {StateReported},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateReported || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Machine tracks the states a run passes through.
type Machine struct {
	current State
	path    []State
}

// NewMachine starts a machine in StateIdle.
func NewMachine() *Machine {
	return &Machine{current: StateIdle, path: []State{StateIdle}}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// Path returns every state visited, in order.
func (m *Machine) Path() []State {
	return append([]State(nil), m.path...)
}

// To moves to next. It panics on a transition the run graph does not
// allow, which is always a programming error.
func (m *Machine) To(next State) {
	if !m.current.CanTransition(next) {
		panic(fmt.Sprintf("sync: invalid transition %s -> %s", m.current, next))
	}
	m.current = next
	m.path = append(m.path, next)
}
