// Package project implements the project DAG engine (spec component
// 4.I): a node set with prerequisite edges, cycle rejection via
// internal/graphutil, and checkpoint/rollback.
package project

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/graphutil"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
	ProjectFailed    ProjectStatus = "failed"
)

// NodeStatus is the lifecycle state of a project node.
type NodeStatus string

const (
	NodePending    NodeStatus = "pending"
	NodeReady      NodeStatus = "ready"
	NodeInProgress NodeStatus = "in_progress"
	NodeCompleted  NodeStatus = "completed"
	NodeFailed     NodeStatus = "failed"
	NodeBlocked    NodeStatus = "blocked"
)

// Node is one unit of work within a project's DAG.
type Node struct {
	ID            string
	Prerequisites []string
	Status        NodeStatus
	Result        any
	Index         int // insertion sequence, used by rollback
	CreatedAt     time.Time
}

// Checkpoint is a named snapshot of one node's state at a point in the
// project's insertion sequence.
type Checkpoint struct {
	ID       string
	NodeID   string
	Index    int
	Snapshot any
	At       time.Time
}

// Project owns a node set and the checkpoints taken across it.
type Project struct {
	ID          string
	Status      ProjectStatus
	Nodes       map[string]*Node
	successors  map[string][]string // prerequisite id -> dependent ids
	nextIndex   int
	Checkpoints []Checkpoint
	CreatedAt   time.Time
}

// Store holds every project, keyed by id.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	data  map[string]*Project
}

// New creates an empty project Store.
func New(clk clock.Source) *Store {
	return &Store{clock: clk, data: make(map[string]*Project)}
}

// Create registers a new draft project.
func (s *Store) Create() *Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Project{
		ID:         s.clock.NewID("proj"),
		Status:     ProjectDraft,
		Nodes:      make(map[string]*Node),
		successors: make(map[string][]string),
		CreatedAt:  s.clock.Now(),
	}
	s.data[p.ID] = p
	return p
}

// Get returns a project by id.
func (s *Store) Get(id string) (*Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[id]
	return p, ok
}

func (s *Store) require(projectID string) (*Project, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[projectID]
	if !ok {
		return nil, apperr.NotFoundf("project", projectID)
	}
	return p, nil
}

// AddNode adds a new pending node with the given prerequisites,
// rejecting if any prerequisite is missing or the new edge set would
// create a cycle.
func (s *Store) AddNode(projectID string, prerequisites []string) (Node, *apperr.Error) {
	p, err := s.require(projectID)
	if err != nil {
		return Node{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prereq := range prerequisites {
		if _, ok := p.Nodes[prereq]; !ok {
			return Node{}, apperr.NotFoundf("node", prereq)
		}
	}

	id := s.clock.NewID("node")
	for _, prereq := range prerequisites {
		if graphutil.WouldCreateCycle(p.successors, prereq, id) {
			return Node{}, apperr.New(apperr.CycleDetected, "adding node %s with prerequisite %s would create a cycle", id, prereq)
		}
	}

	n := &Node{
		ID:            id,
		Prerequisites: append([]string(nil), prerequisites...),
		Status:        NodePending,
		Index:         p.nextIndex,
		CreatedAt:     s.clock.Now(),
	}
	p.nextIndex++
	p.Nodes[id] = n
	for _, prereq := range prerequisites {
		p.successors[prereq] = append(p.successors[prereq], id)
	}
	return *n, nil
}

// Start transitions the project draft -> active and every node with
// empty prerequisites pending -> ready.
func (s *Store) Start(projectID string) *apperr.Error {
	p, err := s.require(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Status != ProjectDraft {
		return apperr.New(apperr.InvalidTransition, "project %s is not in draft state", projectID)
	}
	p.Status = ProjectActive
	for _, n := range p.Nodes {
		if n.Status == NodePending && len(n.Prerequisites) == 0 {
			n.Status = NodeReady
		}
	}
	return nil
}

func (p *Project) prereqsCompleted(n *Node) bool {
	for _, prereq := range n.Prerequisites {
		pr, ok := p.Nodes[prereq]
		if !ok || pr.Status != NodeCompleted {
			return false
		}
	}
	return true
}

// ReadyNodes enumerates nodes whose state is pending and every
// prerequisite is completed, transitioning them to ready, and returns
// those newly-ready nodes.
func (s *Store) ReadyNodes(projectID string) ([]Node, *apperr.Error) {
	p, err := s.require(projectID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Node
	var ids []string
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := p.Nodes[id]
		if n.Status == NodePending && p.prereqsCompleted(n) {
			n.Status = NodeReady
			out = append(out, *n)
		}
	}
	return out, nil
}

// Complete transitions a ready or in_progress node to completed,
// flips newly-ready dependents, and completes the project if every
// node is now completed.
func (s *Store) Complete(projectID, nodeID string, result any) *apperr.Error {
	p, err := s.require(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := p.Nodes[nodeID]
	if !ok {
		return apperr.NotFoundf("node", nodeID)
	}
	if n.Status != NodeReady && n.Status != NodeInProgress {
		return apperr.New(apperr.InvalidTransition, "node %s is not ready or in progress", nodeID)
	}
	n.Status = NodeCompleted
	n.Result = result

	for _, depID := range p.successors[nodeID] {
		dep := p.Nodes[depID]
		if dep != nil && dep.Status == NodePending && p.prereqsCompleted(dep) {
			dep.Status = NodeReady
		}
	}

	p.refreshTerminalStatus()
	return nil
}

// refreshTerminalStatus settles the project's terminal state: completed
// when every node is completed, failed when no workable node remains
// but at least one has failed.
func (p *Project) refreshTerminalStatus() {
	allCompleted := true
	anyFailed := false
	anyWorkable := false
	for _, node := range p.Nodes {
		switch node.Status {
		case NodeCompleted:
		case NodeFailed:
			allCompleted = false
			anyFailed = true
		case NodeBlocked:
			allCompleted = false
		default:
			allCompleted = false
			anyWorkable = true
		}
	}
	switch {
	case allCompleted:
		p.Status = ProjectCompleted
	case anyFailed && !anyWorkable:
		p.Status = ProjectFailed
	}
}

// Fail transitions a node to failed and every transitive dependent to
// blocked.
func (s *Store) Fail(projectID, nodeID, reason string) *apperr.Error {
	p, err := s.require(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := p.Nodes[nodeID]
	if !ok {
		return apperr.NotFoundf("node", nodeID)
	}
	n.Status = NodeFailed
	n.Result = reason

	for _, depID := range graphutil.TransitiveDependents(p.successors, nodeID) {
		if dep, ok := p.Nodes[depID]; ok {
			dep.Status = NodeBlocked
		}
	}
	p.refreshTerminalStatus()
	return nil
}

// Pause transitions an active project to paused; node states are left
// untouched.
func (s *Store) Pause(projectID string) *apperr.Error {
	return s.transitionProject(projectID, ProjectActive, ProjectPaused)
}

// Resume transitions a paused project back to active.
func (s *Store) Resume(projectID string) *apperr.Error {
	return s.transitionProject(projectID, ProjectPaused, ProjectActive)
}

func (s *Store) transitionProject(projectID string, from, to ProjectStatus) *apperr.Error {
	p, err := s.require(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Status != from {
		return apperr.New(apperr.InvalidTransition, "project %s is not %s", projectID, from)
	}
	p.Status = to
	return nil
}

// Checkpoint attaches a snapshot to a node, recording that node's own
// insertion index as the rollback boundary.
func (s *Store) Checkpoint(projectID, nodeID string, snapshot any) (Checkpoint, *apperr.Error) {
	p, err := s.require(projectID)
	if err != nil {
		return Checkpoint{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := p.Nodes[nodeID]
	if !ok {
		return Checkpoint{}, apperr.NotFoundf("node", nodeID)
	}
	cp := Checkpoint{
		ID:       s.clock.NewID("cp"),
		NodeID:   nodeID,
		Index:    n.Index,
		Snapshot: snapshot,
		At:       s.clock.Now(),
	}
	p.Checkpoints = append(p.Checkpoints, cp)
	return cp, nil
}

// Rollback reverts every node with index strictly after the checkpoint
// to pending (if it had already started) or leaves it unchanged (if
// still pending), restores the checkpointed node's snapshot, and moves
// the project back to active.
func (s *Store) Rollback(projectID, checkpointID string) *apperr.Error {
	p, err := s.require(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var cp *Checkpoint
	for i := range p.Checkpoints {
		if p.Checkpoints[i].ID == checkpointID {
			cp = &p.Checkpoints[i]
			break
		}
	}
	if cp == nil {
		return apperr.NotFoundf("checkpoint", checkpointID)
	}

	for _, n := range p.Nodes {
		if n.Index > cp.Index && n.Status != NodePending {
			n.Status = NodePending
			n.Result = nil
		}
	}
	if target, ok := p.Nodes[cp.NodeID]; ok {
		target.Result = cp.Snapshot
	}
	p.Status = ProjectActive
	return nil
}
