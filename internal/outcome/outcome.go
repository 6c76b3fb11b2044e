// Package outcome implements the outcome store and learner (spec
// component 4.F): outcome records, online weight tuning for scheduler
// priority signals, and role-to-work-type affinity learning.
package outcome

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/store"
)

// Signal is the fixed enumeration of outcome signals.
type Signal string

const (
	SignalUserAccepted         Signal = "user_accepted"
	SignalUserRejected         Signal = "user_rejected"
	SignalUserReused           Signal = "user_reused"
	SignalGovernanceApproved   Signal = "governance_approved"
	SignalGovernanceRolledBack Signal = "governance_rolled_back"
	SignalContradictionReduced Signal = "contradiction_reduced"
	SignalDownstreamUsageUp    Signal = "downstream_usage_up"
	SignalErrorReport          Signal = "error_report"
	SignalComplaint            Signal = "complaint"
	SignalKUPromoted           Signal = "ku_promoted"
	SignalKUDeprecated         Signal = "ku_deprecated"
)

// Category buckets a signal as positive, negative, or neutral.
type Category string

const (
	CategoryPositive Category = "positive"
	CategoryNegative Category = "negative"
	CategoryNeutral  Category = "neutral"
)

var categoryOf = map[Signal]Category{
	SignalUserAccepted:         CategoryPositive,
	SignalUserReused:           CategoryPositive,
	SignalGovernanceApproved:   CategoryPositive,
	SignalContradictionReduced: CategoryPositive,
	SignalDownstreamUsageUp:    CategoryPositive,
	SignalKUPromoted:           CategoryPositive,
	SignalUserRejected:         CategoryNegative,
	SignalGovernanceRolledBack: CategoryNegative,
	SignalErrorReport:          CategoryNegative,
	SignalComplaint:            CategoryNegative,
	SignalKUDeprecated:         CategoryNegative,
}

// CategoryOf derives the category for a signal; unknown signals are
// neutral.
func CategoryOf(s Signal) Category {
	if c, ok := categoryOf[s]; ok {
		return c
	}
	return CategoryNeutral
}

// Record is a single recorded outcome.
type Record struct {
	ID            string
	WorkItemID    string
	AllocationID  string
	EmergentID    string
	EmergentRole  string
	WorkType      string
	Signal        Signal
	Category      Category
	SignalValues  map[string]float64 // captured priority-signal snapshot at scheduling time
	At            time.Time
}

// RecordID satisfies store.Identified.
func (r Record) RecordID() string { return r.ID }

const defaultCeiling = 200_000

// Store holds outcome records with indices by workItemId, allocationId,
// emergentId, workType, and signal, per spec.md 4.F.
type Store struct {
	mu   sync.Mutex
	clock clock.Source
	data *store.Bounded[Record]

	weights map[string]float64 // priority signal -> weight
	weightHistory []WeightUpdate
	affinity map[affinityKey]*affinityCounter
}

type affinityKey struct {
	role     string
	workType string
}

type affinityCounter struct {
	success int
	total   int
}

// WeightUpdate is one audit entry appended by runWeightLearning.
type WeightUpdate struct {
	At      time.Time
	Old     map[string]float64
	New     map[string]float64
	Samples int
}

const weightHistoryCeiling = 100
const weightHistoryTrimTo = 50

// New creates an outcome Store with the given starting signal weights.
func New(clk clock.Source, ceiling int, initialWeights map[string]float64) *Store {
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	weights := make(map[string]float64, len(initialWeights))
	for k, v := range initialWeights {
		weights[k] = v
	}
	return &Store{
		clock: clk,
		data: store.New[Record](ceiling,
			store.Index[Record]{Name: "workItem", Extract: func(r Record) (string, bool) { return r.WorkItemID, r.WorkItemID != "" }},
			store.Index[Record]{Name: "allocation", Extract: func(r Record) (string, bool) { return r.AllocationID, r.AllocationID != "" }},
			store.Index[Record]{Name: "emergent", Extract: func(r Record) (string, bool) { return r.EmergentID, r.EmergentID != "" }},
			store.Index[Record]{Name: "workType", Extract: func(r Record) (string, bool) { return r.WorkType, r.WorkType != "" }},
			store.Index[Record]{Name: "signal", Extract: func(r Record) (string, bool) { return string(r.Signal), true }},
		),
		weights:  weights,
		affinity: make(map[affinityKey]*affinityCounter),
	}
}

// Record appends a new outcome and, if role/workType are present,
// updates the affinity counters.
func (s *Store) Record(workItemID, allocationID, emergentID, role, workType string, signal Signal, signalValues map[string]float64) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:           s.clock.NewID("oc"),
		WorkItemID:   workItemID,
		AllocationID: allocationID,
		EmergentID:   emergentID,
		EmergentRole: role,
		WorkType:     workType,
		Signal:       signal,
		Category:     CategoryOf(signal),
		SignalValues: signalValues,
		At:           s.clock.Now(),
	}
	s.data.Put(rec)

	if role != "" && workType != "" {
		key := affinityKey{role: role, workType: workType}
		c, ok := s.affinity[key]
		if !ok {
			c = &affinityCounter{}
			s.affinity[key] = c
		}
		c.total++
		if rec.Category == CategoryPositive {
			c.success++
		}
	}
	return rec
}

// ForWorkItem returns every outcome recorded for a work item.
func (s *Store) ForWorkItem(id string) []Record { return s.byIndex("workItem", id) }

// ForActor returns every outcome recorded for an emergent actor.
func (s *Store) ForActor(emergentID string) []Record { return s.byIndex("emergent", emergentID) }

func (s *Store) byIndex(name, key string) []Record {
	ids := s.data.ByIndex(name, key)
	sort.Strings(ids)
	out := make([]Record, 0, len(ids))
	for _, rid := range ids {
		if r, ok := s.data.Get(rid); ok {
			out = append(out, r)
		}
	}
	return out
}

// Stats reports category counts across every recorded outcome (S2),
// plus a per-signal breakdown for operator visibility.
type Stats struct {
	PositiveCount int
	NegativeCount int
	NeutralCount  int
	Total         int
	SignalCounts  map[string]int
}

// Stats computes aggregate category counts over all outcomes.
func (s *Store) Stats() Stats {
	st := Stats{SignalCounts: make(map[string]int)}
	for _, r := range s.data.List() {
		st.Total++
		st.SignalCounts[string(r.Signal)]++
		switch r.Category {
		case CategoryPositive:
			st.PositiveCount++
		case CategoryNegative:
			st.NegativeCount++
		default:
			st.NeutralCount++
		}
	}
	return st
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// RunWeightLearning implements spec.md 4.F(a). It requires at least
// minSamples recent outcomes (within lookback, if lookback > 0) with
// captured signal values, and returns apperr.InsufficientData otherwise.
func (s *Store) RunWeightLearning(minSamples int, maxAdjustment float64, lookback int) (WeightUpdate, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.data.List()
	var sample []Record
	for _, r := range all {
		if len(r.SignalValues) > 0 {
			sample = append(sample, r)
		}
	}
	if lookback > 0 && len(sample) > lookback {
		sample = sample[len(sample)-lookback:]
	}
	if len(sample) < minSamples {
		return WeightUpdate{}, apperr.New(apperr.InsufficientData, "need at least %d samples, have %d", minSamples, len(sample))
	}

	signalNames := make(map[string]struct{})
	for _, r := range sample {
		for name := range r.SignalValues {
			signalNames[name] = struct{}{}
		}
	}

	oldWeights := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		oldWeights[k] = v
	}

	for name := range signalNames {
		var posSum, negSum float64
		var posN, negN int
		for _, r := range sample {
			v, ok := r.SignalValues[name]
			if !ok {
				continue
			}
			switch r.Category {
			case CategoryPositive:
				posSum += v
				posN++
			case CategoryNegative:
				negSum += v
				negN++
			}
		}
		if posN < 3 || negN < 3 {
			continue
		}
		avgPos := posSum / float64(posN)
		avgNeg := negSum / float64(negN)
		adj := clamp((avgPos-avgNeg)*0.1, -maxAdjustment, maxAdjustment)
		if math.Abs(adj) <= 0.001 {
			continue
		}
		newWeight := round3(clamp(s.weights[name]+adj, -0.5, 0.5))
		s.weights[name] = newWeight
	}

	newWeights := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		newWeights[k] = v
	}

	update := WeightUpdate{At: s.clock.Now(), Old: oldWeights, New: newWeights, Samples: len(sample)}
	s.weightHistory = append(s.weightHistory, update)
	if len(s.weightHistory) > weightHistoryCeiling {
		drop := len(s.weightHistory) - weightHistoryTrimTo
		s.weightHistory = append([]WeightUpdate(nil), s.weightHistory[drop:]...)
	}
	return update, nil
}

// Weights returns a snapshot of the current signal weights.
func (s *Store) Weights() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

// WeightHistory returns the weight-update audit trail, oldest first.
func (s *Store) WeightHistory() []WeightUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WeightUpdate(nil), s.weightHistory...)
}

// Confidence buckets used by assignment recommendations.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func confidenceFor(total int) Confidence {
	switch {
	case total >= 20:
		return ConfidenceHigh
	case total >= 10:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RoleRecommendation is one ranked role for a work type.
type RoleRecommendation struct {
	Role       string
	Rate       float64
	Total      int
	Confidence Confidence
}

// GetAssignmentRecommendations returns, per work type, roles with
// total >= minSamples ranked by success rate descending.
func (s *Store) GetAssignmentRecommendations(minSamples int) map[string][]RoleRecommendation {
	s.mu.Lock()
	defer s.mu.Unlock()

	byWorkType := make(map[string][]RoleRecommendation)
	for key, c := range s.affinity {
		if c.total < minSamples {
			continue
		}
		rate := float64(c.success) / float64(c.total)
		byWorkType[key.workType] = append(byWorkType[key.workType], RoleRecommendation{
			Role: key.role, Rate: rate, Total: c.total, Confidence: confidenceFor(c.total),
		})
	}
	for wt := range byWorkType {
		recs := byWorkType[wt]
		sort.Slice(recs, func(i, j int) bool {
			if recs[i].Rate != recs[j].Rate {
				return recs[i].Rate > recs[j].Rate
			}
			return recs[i].Role < recs[j].Role
		})
		byWorkType[wt] = recs
	}
	return byWorkType
}

// BestRole returns the top-ranked role for workType if it meets
// minSamples and has a success rate >= 0.6, used by the scheduler's
// assign() operation (spec.md 4.G).
func (s *Store) BestRole(workType string, minSamples int) (role string, ok bool) {
	recs := s.GetAssignmentRecommendations(minSamples)[workType]
	if len(recs) == 0 {
		return "", false
	}
	if recs[0].Rate >= 0.6 {
		return recs[0].Role, true
	}
	return "", false
}
