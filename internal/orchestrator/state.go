package orchestrator

import (
	"fmt"
	"time"
)

// State is a phase of a run.
type State string

const (
	StatePlanning     State = "planning"
	StateGenerating   State = "generating"
	StateEvaluating   State = "evaluating"
	StateCritiquing   State = "critiquing"
	StateAccepted     State = "accepted"
	StateRetrying     State = "retrying"
	StateExhausted    State = "exhausted"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// transitions lists every legal edge. Anything else is a programming error.
var transitions = map[State][]State{
	StatePlanning:     {StateGenerating, StateAborted},
	StateGenerating:   {StateEvaluating, StateAborted},
	StateEvaluating:   {StateCritiquing, StateRetrying, StateAborted},
	StateCritiquing:   {StateAccepted, StateRetrying, StateAborted},
	StateRetrying:     {StateGenerating, StateExhausted},
	StateAccepted:     {StateGenerating, StateSynthesizing},
	StateExhausted:    {StateAborted},
	StateSynthesizing: {StateDone, StateAborted},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine tracks the current state of one run and reports how long each
// state lasted when it is left.
type machine struct {
	state   State
	entered time.Time
	now     func() time.Time
	history []State
	onLeave func(from, to State, elapsed time.Duration)
}

func newMachine(now func() time.Time, onLeave func(from, to State, elapsed time.Duration)) *machine {
	if now == nil {
		now = time.Now
	}
	return &machine{
		state:   StatePlanning,
		entered: now(),
		now:     now,
		history: []State{StatePlanning},
		onLeave: onLeave,
	}
}

// transition moves to the next state. It panics on an edge missing from the
// transition table.
func (m *machine) transition(to State) {
	if !canTransition(m.state, to) {
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", m.state, to))
	}
	at := m.now()
	if m.onLeave != nil {
		m.onLeave(m.state, to, at.Sub(m.entered))
	}
	m.state = to
	m.entered = at
	m.history = append(m.history, to)
}
