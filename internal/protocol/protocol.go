// Package protocol implements the coordination protocol engine (spec
// component 4.K): multi-participant rounds, intent alignment, plan
// compatibility, negotiation, and veto. Interlocks live in the sibling
// internal/interlock package, per spec.md's "(separate store)" note.
package protocol

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

const maxParticipantsPerProtocol = 50

// Status is the lifecycle state of a protocol round.
type Status string

const (
	StatusForming  Status = "forming"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusVetoed   Status = "vetoed"
	StatusResolved Status = "resolved"
)

// Intent is one participant's declared goal with supporting evidence.
type Intent struct {
	Participant   string
	Intent        string
	EvidenceBundle []string // evidence ids
	At            time.Time
}

// Effect is a planned change to a named target with a direction (e.g.
// "increase", "decrease", "set").
type Effect struct {
	Target    string
	Direction string
}

// Plan is one participant's submitted plan.
type Plan struct {
	Participant string
	Resources   []string
	Inputs      []string
	Outputs     []string
	Effects     []Effect
	At          time.Time
}

// ConflictKind enumerates the kinds checkPlanCompatibility can report.
type ConflictKind string

const (
	ConflictResource     ConflictKind = "resource"
	ConflictOrdering     ConflictKind = "ordering"
	ConflictDependency   ConflictKind = "dependency"
	ConflictContradiction ConflictKind = "contradiction"
)

// Conflict is one detected incompatibility between two plans.
type Conflict struct {
	Kind      ConflictKind
	A         string // participant
	B         string // participant
	Direction string // populated for dependency conflicts: "a_before_b" or "b_before_a"
	Detail    string
}

// EvidenceItem is one piece of evidence backing a negotiation position.
type EvidenceItem struct {
	BaseConfidence float64
	Replicated     bool
	At             time.Time // used to derive recency relative to Now
}

// Position is one participant's stance in a negotiation, plus the
// evidence backing it.
type Position struct {
	Participant string
	Value       string // structural-equality key: positions with the same Value are grouped together
	Evidence    []EvidenceItem
}

// Negotiation is one open or resolved negotiation round within a
// protocol.
type Negotiation struct {
	ID         string
	Positions  []Position
	Resolved   bool
	Winner     string
	Confidence float64
}

// Protocol is one multi-actor coordination round.
type Protocol struct {
	ID           string
	Mode         string
	Initiator    string
	Status       Status
	Participants []string
	Intents      []Intent
	Plans        map[string]Plan // keyed by participant, latest submission wins
	Negotiations map[string]*Negotiation
	VetoedBy     string
	VetoReason   string
	CreatedAt    time.Time
}

// Store holds every protocol, keyed by id.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	data  map[string]*Protocol
}

// New creates an empty protocol Store.
func New(clk clock.Source) *Store {
	return &Store{clock: clk, data: make(map[string]*Protocol)}
}

// Create starts a new protocol in the forming state with initiator
// already joined; it becomes active once another participant joins.
func (s *Store) Create(mode, initiator string) *Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Protocol{
		ID:           s.clock.NewID("proto"),
		Mode:         mode,
		Initiator:    initiator,
		Status:       StatusForming,
		Participants: []string{initiator},
		Plans:        make(map[string]Plan),
		Negotiations: make(map[string]*Negotiation),
		CreatedAt:    s.clock.Now(),
	}
	s.data[p.ID] = p
	return p
}

// Get returns a protocol by id.
func (s *Store) Get(id string) (*Protocol, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[id]
	return p, ok
}

func (s *Store) require(id string) (*Protocol, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[id]
	if !ok {
		return nil, apperr.NotFoundf("protocol", id)
	}
	return p, nil
}

// Join adds a participant, rejecting once the protocol already holds
// maxParticipantsPerProtocol.
func (s *Store) Join(protocolID, participant string, declaredIntent string) *apperr.Error {
	p, err := s.require(protocolID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p.Participants) >= maxParticipantsPerProtocol {
		return apperr.New(apperr.CapacityReached, "protocol %s already has %d participants", protocolID, maxParticipantsPerProtocol)
	}
	for _, existing := range p.Participants {
		if existing == participant {
			return nil
		}
	}
	p.Participants = append(p.Participants, participant)
	if p.Status == StatusForming {
		p.Status = StatusActive
	}
	if declaredIntent != "" {
		p.Intents = append(p.Intents, Intent{Participant: participant, Intent: declaredIntent, At: s.clock.Now()})
	}
	return nil
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, x := range a {
		setA[x] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, x := range b {
		setB[x] = struct{}{}
	}
	var inter int
	for x := range setA {
		if _, ok := setB[x]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1 // both empty: trivially fully overlapping
	}
	return float64(inter) / float64(union)
}

// Alignment is the result of recomputing intent alignment across a
// protocol's declared intents.
type Alignment struct {
	Mean    float64
	Aligned bool
}

// DeclareIntent appends an intent and recomputes alignment across all
// declared intents in the protocol: mean pairwise Jaccard overlap of
// evidence-id sets, aligned iff mean >= 0.5 and no pair overlaps < 0.2.
func (s *Store) DeclareIntent(protocolID, participant, intent string, evidenceBundle []string) (Alignment, *apperr.Error) {
	p, err := s.require(protocolID)
	if err != nil {
		return Alignment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Intents = append(p.Intents, Intent{Participant: participant, Intent: intent, EvidenceBundle: evidenceBundle, At: s.clock.Now()})

	if len(p.Intents) < 2 {
		return Alignment{Mean: 1, Aligned: true}, nil
	}

	var sum float64
	var pairs int
	aligned := true
	for i := 0; i < len(p.Intents); i++ {
		for j := i + 1; j < len(p.Intents); j++ {
			overlap := jaccard(p.Intents[i].EvidenceBundle, p.Intents[j].EvidenceBundle)
			sum += overlap
			pairs++
			if overlap < 0.2 {
				aligned = false
			}
		}
	}
	mean := sum / float64(pairs)
	if mean < 0.5 {
		aligned = false
	}
	return Alignment{Mean: mean, Aligned: aligned}, nil
}

// SubmitPlan records a participant's plan, replacing any prior
// submission from the same participant.
func (s *Store) SubmitPlan(protocolID string, plan Plan) *apperr.Error {
	p, err := s.require(protocolID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan.At = s.clock.Now()
	p.Plans[plan.Participant] = plan
	return nil
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}

// CheckPlanCompatibility reports every conflict between each pair of
// submitted plans. The protocol is compatible iff the returned slice is
// empty.
func (s *Store) CheckPlanCompatibility(protocolID string) ([]Conflict, *apperr.Error) {
	p, err := s.require(protocolID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var participants []string
	for who := range p.Plans {
		participants = append(participants, who)
	}
	sort.Strings(participants)

	var conflicts []Conflict
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			a := p.Plans[participants[i]]
			b := p.Plans[participants[j]]

			if intersects(a.Resources, b.Resources) {
				conflicts = append(conflicts, Conflict{Kind: ConflictResource, A: a.Participant, B: b.Participant, Detail: "overlapping resources"})
			}

			aToB := intersects(a.Outputs, b.Inputs)
			bToA := intersects(b.Outputs, a.Inputs)
			switch {
			case aToB && bToA:
				conflicts = append(conflicts, Conflict{Kind: ConflictOrdering, A: a.Participant, B: b.Participant, Detail: "circular output/input dependency"})
			case aToB:
				conflicts = append(conflicts, Conflict{Kind: ConflictDependency, A: a.Participant, B: b.Participant, Direction: "a_before_b"})
			case bToA:
				conflicts = append(conflicts, Conflict{Kind: ConflictDependency, A: a.Participant, B: b.Participant, Direction: "b_before_a"})
			}

			for _, ea := range a.Effects {
				for _, eb := range b.Effects {
					if ea.Target == eb.Target && ea.Direction != eb.Direction {
						conflicts = append(conflicts, Conflict{Kind: ConflictContradiction, A: a.Participant, B: b.Participant, Detail: "effect on " + ea.Target})
					}
				}
			}
		}
	}
	return conflicts, nil
}

// evidenceWeight is the mean over items of baseConfidence +
// 0.2*replicated + 0.1*recency, where recency decreases linearly from 1
// to 0 over a year.
func evidenceWeight(now time.Time, items []EvidenceItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	const year = 365 * 24 * time.Hour
	for _, it := range items {
		age := now.Sub(it.At)
		recency := 1 - float64(age)/float64(year)
		if recency < 0 {
			recency = 0
		}
		if recency > 1 {
			recency = 1
		}
		w := it.BaseConfidence
		if it.Replicated {
			w += 0.2
		}
		w += 0.1 * recency
		sum += w
	}
	return sum / float64(len(items))
}

// StartNegotiation opens a new negotiation round within a protocol.
func (s *Store) StartNegotiation(protocolID string) (*Negotiation, *apperr.Error) {
	p, err := s.require(protocolID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &Negotiation{ID: s.clock.NewID("neg")}
	p.Negotiations[n.ID] = n
	return n, nil
}

// SubmitPosition adds a participant's position to an open negotiation.
func (s *Store) SubmitPosition(protocolID, negotiationID string, pos Position) *apperr.Error {
	p, err := s.require(protocolID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := p.Negotiations[negotiationID]
	if !ok {
		return apperr.NotFoundf("negotiation", negotiationID)
	}
	if n.Resolved {
		return apperr.New(apperr.WrongProtocolState, "negotiation %s already resolved", negotiationID)
	}
	n.Positions = append(n.Positions, pos)
	return nil
}

// ResolveNegotiation groups positions by structural equality (the
// Value field), sums evidence weight per group, and declares the
// group with the highest summed weight the winner; confidence is
// winnerWeight / totalWeight.
func (s *Store) ResolveNegotiation(protocolID, negotiationID string) (*Negotiation, *apperr.Error) {
	p, err := s.require(protocolID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := p.Negotiations[negotiationID]
	if !ok {
		return nil, apperr.NotFoundf("negotiation", negotiationID)
	}
	if len(n.Positions) == 0 {
		return nil, apperr.New(apperr.InsufficientData, "negotiation %s has no positions", negotiationID)
	}

	now := s.clock.Now()
	groupWeight := make(map[string]float64)
	var order []string
	seen := make(map[string]bool)
	var total float64
	for _, pos := range n.Positions {
		w := evidenceWeight(now, pos.Evidence)
		if !seen[pos.Value] {
			seen[pos.Value] = true
			order = append(order, pos.Value)
		}
		groupWeight[pos.Value] += w
		total += w
	}

	winner := order[0]
	for _, v := range order {
		if groupWeight[v] > groupWeight[winner] {
			winner = v
		}
	}

	n.Resolved = true
	n.Winner = winner
	if total > 0 {
		n.Confidence = groupWeight[winner] / total
	}
	p.Status = StatusResolved
	return n, nil
}

// Veto marks the protocol vetoed; any participant may call this.
func (s *Store) Veto(protocolID, participant, reason string) *apperr.Error {
	p, err := s.require(protocolID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Status = StatusVetoed
	p.VetoedBy = participant
	p.VetoReason = reason
	return nil
}

// Pause transitions an active protocol to paused.
func (s *Store) Pause(protocolID string) *apperr.Error {
	return s.setStatus(protocolID, StatusActive, StatusPaused)
}

// Resume transitions a paused protocol back to active.
func (s *Store) Resume(protocolID string) *apperr.Error {
	return s.setStatus(protocolID, StatusPaused, StatusActive)
}

func (s *Store) setStatus(protocolID string, from, to Status) *apperr.Error {
	p, err := s.require(protocolID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Status != from {
		return apperr.New(apperr.InvalidTransition, "protocol %s is not %s", protocolID, from)
	}
	p.Status = to
	return nil
}

// PlanPriority is one ranked plan from ArbitratePriority.
type PlanPriority struct {
	Participant string
	Score       float64
}

// ArbitratePriority ranks a protocol's submitted plans by
// 0.5*evidenceWeight + 0.3*urgency + 0.2*reversibility. urgency and
// reversibility are supplied per-participant since plans don't carry
// them intrinsically.
func (s *Store) ArbitratePriority(protocolID string, evidenceByParticipant map[string][]EvidenceItem, urgency, reversibility map[string]float64) ([]PlanPriority, *apperr.Error) {
	p, err := s.require(protocolID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()

	var out []PlanPriority
	for who := range p.Plans {
		score := 0.5*evidenceWeight(now, evidenceByParticipant[who]) + 0.3*urgency[who] + 0.2*reversibility[who]
		out = append(out, PlanPriority{Participant: who, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Participant < out[j].Participant
	})
	return out, nil
}

// Action is a candidate action with named pre/postconditions, used by
// CheckActionCompatibility's pre-execution safety envelope.
type Action struct {
	Name          string
	Resources     []string
	Preconditions map[string]string
	Postconditions map[string]string
}

// ViolationKind enumerates the kinds CheckActionCompatibility reports.
type ViolationKind string

const (
	ViolationResourceExclusion ViolationKind = "resource_exclusion"
	ViolationStateConflict     ViolationKind = "state_conflict"
)

// Violation is one detected pre-execution safety issue between two
// candidate actions.
type Violation struct {
	Kind ViolationKind
	A    string
	B    string
	Detail string
}

// CheckActionCompatibility reports resource_exclusion conflicts
// (overlapping resources) and state_conflict conflicts (both actions
// touch the same variable with incompatible post/pre values) across
// every pair of candidate actions.
func CheckActionCompatibility(actions []Action) []Violation {
	var violations []Violation
	for i := 0; i < len(actions); i++ {
		for j := i + 1; j < len(actions); j++ {
			a, b := actions[i], actions[j]
			if intersects(a.Resources, b.Resources) {
				violations = append(violations, Violation{Kind: ViolationResourceExclusion, A: a.Name, B: b.Name, Detail: "overlapping resources"})
			}
			for variable, postA := range a.Postconditions {
				if preB, ok := b.Preconditions[variable]; ok && preB != postA {
					violations = append(violations, Violation{Kind: ViolationStateConflict, A: a.Name, B: b.Name, Detail: variable})
				}
			}
			for variable, postB := range b.Postconditions {
				if preA, ok := a.Preconditions[variable]; ok && preA != postB {
					violations = append(violations, Violation{Kind: ViolationStateConflict, A: a.Name, B: b.Name, Detail: variable})
				}
			}
		}
	}
	return violations
}
