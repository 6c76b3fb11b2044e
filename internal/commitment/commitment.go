// Package commitment implements commitment tracking and accountability
// (spec component 4.L): a per-actor commitment FSM with breach
// detection, an accountability graph with attribution scoring, and a
// multi-actor rollback coordinator.
package commitment

import (
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

// State is a stage in the commitment lifecycle.
type State string

const (
	StateProposed   State = "proposed"
	StateAccepted   State = "accepted"
	StateInProgress State = "in_progress"
	StateFulfilled  State = "fulfilled"
	StateBreached   State = "breached"
	StateExpired    State = "expired"
	StateWithdrawn  State = "withdrawn"
)

func (s State) terminal() bool {
	switch s {
	case StateFulfilled, StateBreached, StateExpired, StateWithdrawn:
		return true
	}
	return false
}

var allowedFrom = map[State][]State{
	StateProposed:   {StateAccepted, StateWithdrawn},
	StateAccepted:   {StateInProgress, StateWithdrawn},
	StateInProgress: {StateFulfilled, StateBreached, StateExpired, StateWithdrawn},
}

func isAllowed(from, to State) bool {
	for _, s := range allowedFrom[from] {
		if s == to {
			return true
		}
	}
	return false
}

// HistoryEntry records one transition in a commitment's life.
type HistoryEntry struct {
	From     State
	To       State
	Actor    string
	Evidence string
	Reason   string
	At       time.Time
}

// Commitment is a single tracked commitment.
type Commitment struct {
	ID        string
	Actor     string
	Text      string
	Deadline  time.Time // zero means no deadline
	Verifiers []string
	State     State
	History   []HistoryEntry
	CreatedAt time.Time
}

// Store holds every commitment, keyed by id.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	data  map[string]*Commitment
}

// New creates an empty commitment Store.
func New(clk clock.Source) *Store {
	return &Store{clock: clk, data: make(map[string]*Commitment)}
}

// RegisterCommitment creates a new proposed commitment.
func (s *Store) RegisterCommitment(actor, text string, deadline time.Time, verifiers []string) *Commitment {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Commitment{
		ID:        s.clock.NewID("cm"),
		Actor:     actor,
		Text:      text,
		Deadline:  deadline,
		Verifiers: append([]string(nil), verifiers...),
		State:     StateProposed,
		CreatedAt: s.clock.Now(),
	}
	s.data[c.ID] = c
	return c
}

// Get returns a commitment by id.
func (s *Store) Get(id string) (*Commitment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[id]
	return c, ok
}

// Transition moves a commitment to newState if the documented FSM
// allows it, recording a history entry either way it succeeds.
func (s *Store) Transition(id string, newState State, actor, evidence string) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[id]
	if !ok {
		return apperr.NotFoundf("commitment", id)
	}
	if !isAllowed(c.State, newState) {
		return apperr.New(apperr.InvalidTransition, "cannot move commitment %s from %s to %s", id, c.State, newState)
	}
	now := s.clock.Now()
	c.History = append(c.History, HistoryEntry{From: c.State, To: newState, Actor: actor, Evidence: evidence, At: now})
	c.State = newState
	return nil
}

// DetectBreaches scans every commitment with a deadline set where now
// is past the deadline and state is not already terminal, marking it
// breached exactly once (idempotent: already-breached commitments are
// untouched on subsequent calls).
func (s *Store) DetectBreaches() []*Commitment {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()

	var breached []*Commitment
	for _, c := range s.data {
		if c.Deadline.IsZero() || !now.After(c.Deadline) {
			continue
		}
		if c.terminalOrBreachedState() {
			continue
		}
		c.History = append(c.History, HistoryEntry{From: c.State, To: StateBreached, Reason: "deadline_exceeded", At: now})
		c.State = StateBreached
		breached = append(breached, c)
	}
	return breached
}

func (c *Commitment) terminalOrBreachedState() bool {
	return c.State.terminal()
}

// --- Accountability graph ---

// NodeKind enumerates the kinds of accountability-graph nodes.
type NodeKind string

const (
	NodeActor   NodeKind = "actor"
	NodeAction  NodeKind = "action"
	NodeOutcome NodeKind = "outcome"
)

// EdgeType enumerates the relationships tracked between accountability
// nodes.
type EdgeType string

const (
	EdgeDecided    EdgeType = "decided"
	EdgeInfluenced EdgeType = "influenced"
	EdgeExecuted   EdgeType = "executed"
	EdgeApproved   EdgeType = "approved"
	EdgeVetoed     EdgeType = "vetoed"
	EdgeDelegated  EdgeType = "delegated"
	EdgeWitnessed  EdgeType = "witnessed"
)

// Node is one actor/action/outcome node in an accountability graph.
type Node struct {
	ID   string
	Kind NodeKind
}

// Edge is one typed, weighted relationship between two nodes.
type Edge struct {
	From     string
	To       string
	Type     EdgeType
	Weight   float64
	Evidence []string
}

// Graph is one accountability graph; a protocol round or project may
// own several over its lifetime.
type Graph struct {
	Nodes map[string]Node
	Edges []Edge
}

// NewGraph creates an empty accountability Graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]Node)}
}

// AddNode registers a node.
func (g *Graph) AddNode(id string, kind NodeKind) {
	g.Nodes[id] = Node{ID: id, Kind: kind}
}

// AddEdge records a typed, weighted edge.
func (g *Graph) AddEdge(from, to string, typ EdgeType, weight float64, evidence []string) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Type: typ, Weight: weight, Evidence: evidence})
}

// Attribution is one actor's computed share of accountability.
type Attribution struct {
	ActorID  string
	Direct   float64
	Received float64
	Total    float64
	Share    float64
}

// ComputeAttribution computes, for each actor node: direct = sum of
// outgoing edge weights, received = sum of incoming edge weights,
// total = direct + 0.3*received, share = total / sum(totals across
// actors).
func (g *Graph) ComputeAttribution() []Attribution {
	direct := make(map[string]float64)
	received := make(map[string]float64)
	for _, e := range g.Edges {
		direct[e.From] += e.Weight
		received[e.To] += e.Weight
	}

	var actorIDs []string
	for id, n := range g.Nodes {
		if n.Kind == NodeActor {
			actorIDs = append(actorIDs, id)
		}
	}

	totals := make(map[string]float64, len(actorIDs))
	var grandTotal float64
	for _, id := range actorIDs {
		total := direct[id] + 0.3*received[id]
		totals[id] = total
		grandTotal += total
	}

	out := make([]Attribution, 0, len(actorIDs))
	for _, id := range actorIDs {
		share := 0.0
		if grandTotal > 0 {
			share = totals[id] / grandTotal
		}
		out = append(out, Attribution{ActorID: id, Direct: direct[id], Received: received[id], Total: totals[id], Share: share})
	}
	return out
}

// --- Rollback coordination ---

// RollbackStatus is the lifecycle state of a multi-actor rollback.
type RollbackStatus string

const (
	RollbackInitiated RollbackStatus = "initiated"
	RollbackReady     RollbackStatus = "ready"
	RollbackCompleted RollbackStatus = "completed"
)

// RollbackSlotStatus is a single actor's slot state within a rollback.
type RollbackSlotStatus string

const (
	SlotPending     RollbackSlotStatus = "pending"
	SlotCheckpointed RollbackSlotStatus = "checkpointed"
	SlotRolledBack  RollbackSlotStatus = "rolled_back"
)

// Rollback coordinates a rollback across a fixed set of actors, each
// with its own checkpoint slot.
type Rollback struct {
	ID     string
	Status RollbackStatus
	Slots  map[string]*RollbackSlot
}

// RollbackSlot is one actor's checkpoint within a Rollback.
type RollbackSlot struct {
	Actor    string
	Status   RollbackSlotStatus
	Snapshot any
}

// RollbackCoordinator tracks in-flight multi-actor rollbacks.
type RollbackCoordinator struct {
	mu    sync.Mutex
	clock clock.Source
	data  map[string]*Rollback
}

// NewRollbackCoordinator creates an empty RollbackCoordinator.
func NewRollbackCoordinator(clk clock.Source) *RollbackCoordinator {
	return &RollbackCoordinator{clock: clk, data: make(map[string]*Rollback)}
}

// Initiate starts a new rollback across the given actors, each
// starting in a pending slot.
func (rc *RollbackCoordinator) Initiate(actors []string) *Rollback {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	r := &Rollback{ID: rc.clock.NewID("rb"), Status: RollbackInitiated, Slots: make(map[string]*RollbackSlot)}
	for _, a := range actors {
		r.Slots[a] = &RollbackSlot{Actor: a, Status: SlotPending}
	}
	rc.data[r.ID] = r
	return r
}

// Checkpoint records an actor's snapshot; once every actor has
// checkpointed, the rollback becomes ready.
func (rc *RollbackCoordinator) Checkpoint(rollbackID, actor string, snapshot any) *apperr.Error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	r, ok := rc.data[rollbackID]
	if !ok {
		return apperr.NotFoundf("rollback", rollbackID)
	}
	slot, ok := r.Slots[actor]
	if !ok {
		return apperr.NotFoundf("rollback_slot", actor)
	}
	slot.Status = SlotCheckpointed
	slot.Snapshot = snapshot

	allCheckpointed := true
	for _, s := range r.Slots {
		if s.Status == SlotPending {
			allCheckpointed = false
			break
		}
	}
	if allCheckpointed {
		r.Status = RollbackReady
	}
	return nil
}

// Execute marks every actor's slot rolled back and the coordination
// completed. Requires status = ready.
func (rc *RollbackCoordinator) Execute(rollbackID string) *apperr.Error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	r, ok := rc.data[rollbackID]
	if !ok {
		return apperr.NotFoundf("rollback", rollbackID)
	}
	if r.Status != RollbackReady {
		return apperr.New(apperr.WrongProtocolState, "rollback %s is not ready", rollbackID)
	}
	for _, s := range r.Slots {
		s.Status = SlotRolledBack
	}
	r.Status = RollbackCompleted
	return nil
}

// Get returns a rollback by id.
func (rc *RollbackCoordinator) Get(id string) (*Rollback, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	r, ok := rc.data[id]
	return r, ok
}
