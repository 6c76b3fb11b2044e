// Package truth implements the truth lifecycle state machine (spec
// component 4.J): born -> challenged -> stabilized -> decaying -> dead,
// with rollback and rebirth transitions. Grounded on the teacher's
// internal/validation transition-table idiom (allowed-transitions map
// plus a Validate entry point), adapted from a single flat table to a
// per-KU bounded history of every transition taken.
package truth

import (
	"math"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

// State is a stage in the truth lifecycle.
type State string

const (
	StateBorn        State = "born"
	StateChallenged  State = "challenged"
	StateStabilized  State = "stabilized"
	StateDecaying    State = "decaying"
	StateDead        State = "dead"
	StateRolledBack  State = "rolled_back"
)

// allowedFrom is the documented linear progression plus dead -> born
// rebirth. rolled_back is reachable from any non-dead state and is
// handled separately in Transition, not in this table, since it's a
// universal escape hatch rather than part of the forward progression.
var allowedFrom = map[State][]State{
	StateBorn:       {StateChallenged},
	StateChallenged: {StateStabilized},
	StateStabilized: {StateDecaying},
	StateDecaying:   {StateDead},
	StateDead:       {StateBorn},
	StateRolledBack: {},
}

func isAllowed(from, to State) bool {
	if to == StateRolledBack {
		return from != StateDead
	}
	for _, s := range allowedFrom[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change for a KU.
type Transition struct {
	From   State
	To     State
	Reason string
	Actor  string
	At     time.Time
}

const historyCeiling = 100

type kuState struct {
	current      State
	lastActivity time.Time
	history      []Transition
}

// Engine tracks the truth-lifecycle state of every KU it is told about.
type Engine struct {
	mu    sync.Mutex
	clock clock.Source
	kus   map[string]*kuState
}

// New creates a truth Engine.
func New(clk clock.Source) *Engine {
	return &Engine{clock: clk, kus: make(map[string]*kuState)}
}

func (e *Engine) stateFor(kuID string) *kuState {
	st, ok := e.kus[kuID]
	if !ok {
		st = &kuState{current: StateBorn, lastActivity: e.clock.Now()}
		e.kus[kuID] = st
	}
	return st
}

// Transition moves a KU from its current state to `to`, recording the
// transition in its bounded history.
func (e *Engine) Transition(kuID string, to State, reason, actor string) (State, *apperr.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(kuID)
	if !isAllowed(st.current, to) {
		return st.current, apperr.New(apperr.InvalidTransition, "cannot move KU %s from %s to %s", kuID, st.current, to)
	}

	now := e.clock.Now()
	st.history = append(st.history, Transition{From: st.current, To: to, Reason: reason, Actor: actor, At: now})
	if len(st.history) > historyCeiling {
		st.history = st.history[len(st.history)-historyCeiling:]
	}
	st.current = to
	st.lastActivity = now
	return to, nil
}

// State returns the current truth-lifecycle state of a KU.
func (e *Engine) State(kuID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateFor(kuID).current
}

// History returns the transition history for a KU, oldest first.
func (e *Engine) History(kuID string) []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.kus[kuID]
	if !ok {
		return nil
	}
	return append([]Transition(nil), st.history...)
}

// Stagnation is a flagged non-dead KU whose activity has gone stale.
type Stagnation struct {
	KUID  string
	Age   time.Duration
	Score float64
}

// DetectStagnation flags every non-dead KU whose time since last
// activity exceeds threshold, with score = min(1, age/(10*threshold)).
func (e *Engine) DetectStagnation(threshold time.Duration) []Stagnation {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	var out []Stagnation
	for kuID, st := range e.kus {
		if st.current == StateDead {
			continue
		}
		age := now.Sub(st.lastActivity)
		if age <= threshold {
			continue
		}
		score := math.Min(1, float64(age)/float64(10*threshold))
		out = append(out, Stagnation{KUID: kuID, Age: age, Score: score})
	}
	return out
}
