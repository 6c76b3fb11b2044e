// Package resources implements the environmental resource pools (spec
// component 4.N, resource-pool half): per-type budgets, reserve/
// consume/release, exhaustion alerting, and critical-pressure triage.
package resources

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

// Type enumerates the resource kinds a pool can track.
type Type string

const (
	TypeCompute   Type = "compute"
	TypeMemory    Type = "memory"
	TypeStorage   Type = "storage"
	TypeTime      Type = "time"
	TypeBandwidth Type = "bandwidth"
	TypeAttention Type = "attention"
)

// Severity is an exhaustion alert's urgency.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type usageSample struct {
	at     time.Time
	amount float64
}

// Pool is one resource type's tracked budget.
type Pool struct {
	Type      Type
	Total     float64
	Reserved  float64
	Used      float64
	samples   []usageSample // consumption events, for the 60s rate window
}

// Utilization returns the pool's fraction in use (reserved+used/total).
func (p *Pool) Utilization() float64 {
	if p.Total <= 0 {
		return 0
	}
	return (p.Reserved + p.Used) / p.Total
}

func (p *Pool) available() float64 {
	return p.Total - p.Reserved - p.Used
}

// Store holds every resource pool, keyed by type.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	pools map[Type]*Pool
}

// New creates an empty resource Store.
func New(clk clock.Source) *Store {
	return &Store{clock: clk, pools: make(map[Type]*Pool)}
}

// CreateBudget creates or replaces a pool's total capacity for a
// resource type.
func (s *Store) CreateBudget(t Type, total float64) *Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Pool{Type: t, Total: total}
	s.pools[t] = p
	return p
}

func (s *Store) require(t Type) (*Pool, *apperr.Error) {
	p, ok := s.pools[t]
	if !ok {
		return nil, apperr.NotFoundf("resource_pool", string(t))
	}
	return p, nil
}

// Reserve holds amount against future consumption without yet
// counting it as used.
func (s *Store) Reserve(t Type, amount float64) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.require(t)
	if err != nil {
		return err
	}
	if amount > p.available() {
		return apperr.New(apperr.BudgetExceeded, "resource pool %s cannot reserve %v", t, amount)
	}
	p.Reserved += amount
	return nil
}

// Consume converts a reservation (or fresh capacity) into actual
// usage, recording a usage sample for rate projection.
func (s *Store) Consume(t Type, amount float64) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.require(t)
	if err != nil {
		return err
	}
	fromReserved := amount
	if fromReserved > p.Reserved {
		fromReserved = p.Reserved
	}
	remaining := amount - fromReserved
	if remaining > p.available() {
		return apperr.New(apperr.BudgetExceeded, "resource pool %s cannot consume %v", t, amount)
	}
	p.Reserved -= fromReserved
	p.Used += amount
	now := s.clock.Now()
	p.samples = append(p.samples, usageSample{at: now, amount: amount})
	p.samples = trimSamples(p.samples, now)
	return nil
}

func trimSamples(samples []usageSample, now time.Time) []usageSample {
	cutoff := now.Add(-60 * time.Second)
	out := samples[:0]
	for _, s := range samples {
		if s.at.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Release returns amount of previously-consumed or reserved capacity
// to the pool, consumed first.
func (s *Store) Release(t Type, amount float64) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.require(t)
	if err != nil {
		return err
	}
	fromUsed := amount
	if fromUsed > p.Used {
		fromUsed = p.Used
	}
	p.Used -= fromUsed
	remainder := amount - fromUsed
	if remainder > 0 {
		p.Reserved -= remainder
		if p.Reserved < 0 {
			p.Reserved = 0
		}
	}
	return nil
}

// Alert is an exhaustion warning for one pool.
type Alert struct {
	Type                     Type
	Severity                 Severity
	Utilization              float64
	ProjectedSecondsToExhaust float64
}

func (p *Pool) rate(now time.Time) float64 {
	samples := trimSamples(p.samples, now)
	var total float64
	for _, s := range samples {
		total += s.amount
	}
	return total / 60.0
}

func (p *Pool) projectedSeconds(now time.Time) float64 {
	rate := p.rate(now)
	if rate <= 0 {
		return -1 // no projection available
	}
	return p.available() / rate
}

// Alerts returns an exhaustion alert for every pool currently over
// threshold (utilization > 0.8 or projected seconds-to-exhaustion < 300).
func (s *Store) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()

	var out []Alert
	for _, p := range s.pools {
		util := p.Utilization()
		projected := p.projectedSeconds(now)
		triggered := util > 0.8 || (projected >= 0 && projected < 300)
		if !triggered {
			continue
		}
		var sev Severity
		switch {
		case util > 0.95:
			sev = SeverityCritical
		case util > 0.9:
			sev = SeverityHigh
		default:
			sev = SeverityWarning
		}
		out = append(out, Alert{Type: p.Type, Severity: sev, Utilization: util, ProjectedSecondsToExhaust: projected})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// QoS is a priority class for triage ordering, highest first.
type QoS int

const (
	QoSCritical QoS = iota
	QoSHigh
	QoSNormal
	QoSBackground
)

// Operation is a candidate for triage.
type Operation struct {
	ID               string
	QoS              QoS
	RequiredAmount   float64
	MinimalAmount    float64
	Type             Type
}

// TriageDecision is the outcome for one operation.
type TriageDecision struct {
	ID         string
	Kept       bool
	Resolution float64 // MinimalAmount if kept, 0 if suspended
	Suspended  bool
}

// PerformTriage ranks operations by QoS priority (critical first) and
// greedily admits each at its minimal resolution against the given
// available capacity, suspending whatever doesn't fit.
func PerformTriage(available float64, operations []Operation) []TriageDecision {
	ordered := append([]Operation(nil), operations...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].QoS < ordered[j].QoS })

	out := make([]TriageDecision, 0, len(ordered))
	remaining := available
	for _, op := range ordered {
		if op.MinimalAmount <= remaining {
			remaining -= op.MinimalAmount
			out = append(out, TriageDecision{ID: op.ID, Kept: true, Resolution: op.MinimalAmount})
			continue
		}
		out = append(out, TriageDecision{ID: op.ID, Kept: false, Suspended: true})
	}
	return out
}

// Get returns a pool by resource type.
func (s *Store) Get(t Type) (*Pool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[t]
	return p, ok
}
