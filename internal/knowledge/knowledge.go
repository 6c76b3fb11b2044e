// Package knowledge implements the knowledge store (spec component 4.C):
// knowledge units (KUs), their quality metrics, and typed edges between
// them. It composes internal/store for the primary map and a tier/domain
// secondary index, matching every other store in the engine; tags get a
// hand-rolled multi-value index since a KU can carry several.
package knowledge

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/store"
)

// Tier classifies a knowledge unit's weight in the system.
type Tier string

const (
	TierShadow  Tier = "shadow"
	TierRegular Tier = "regular"
	TierBase    Tier = "base"
	TierMega    Tier = "mega"
)

func validTier(t Tier) bool {
	switch t {
	case TierShadow, TierRegular, TierBase, TierMega:
		return true
	}
	return false
}

// EdgeType identifies the relationship a KU edge expresses.
type EdgeType string

const (
	EdgeSupports    EdgeType = "supports"
	EdgeRefutes     EdgeType = "refutes"
	EdgeContradicts EdgeType = "contradicts"
)

func validEdgeType(t EdgeType) bool {
	switch t {
	case EdgeSupports, EdgeRefutes, EdgeContradicts:
		return true
	}
	return false
}

// Edge is a typed reference from one KU to another.
type Edge struct {
	Target string
	Type   EdgeType
}

// KU is a knowledge unit.
type KU struct {
	ID        string
	Title     string
	Body      string
	Tier      Tier
	Domain    string
	Tags      []string
	Resonance float64
	Coherence float64
	Stability float64
	CreatedAt time.Time
	UpdatedAt time.Time
	Edges     []Edge
}

// RecordID satisfies store.Identified.
func (k KU) RecordID() string { return k.ID }

// Fields bundles the mutable attributes accepted by Create/UpdateFields.
// Nil pointers (and a nil Tags slice) mean "leave unchanged".
type Fields struct {
	Title     *string
	Body      *string
	Tier      *Tier
	Domain    *string
	Tags      []string
	Resonance *float64
	Coherence *float64
	Stability *float64
}

const defaultCeiling = 100_000

// Store holds knowledge units keyed by id, indexed by tier and domain,
// with a default ceiling of 100,000 per spec.md 4.C. Tag membership is
// tracked in a hand-rolled multi-value index alongside the primitive.
type Store struct {
	mu       sync.Mutex
	clock    clock.Source
	data     *store.Bounded[KU]
	byTag    map[string]map[string]struct{} // tag -> set of KU ids
}

// New creates a knowledge Store. ceiling <= 0 selects the spec default.
func New(clk clock.Source, ceiling int) *Store {
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	return &Store{
		clock: clk,
		data: store.New[KU](ceiling,
			store.Index[KU]{Name: "tier", Extract: func(k KU) (string, bool) { return string(k.Tier), true }},
			store.Index[KU]{Name: "domain", Extract: func(k KU) (string, bool) { return k.Domain, k.Domain != "" }},
		),
		byTag: make(map[string]map[string]struct{}),
	}
}

func qualityInRange(v float64) bool { return v >= 0 && v <= 1 }

func validateFields(tier Tier, body string, resonance, coherence, stability float64) *apperr.Error {
	if !validTier(tier) {
		return apperr.New(apperr.InvalidField, "invalid tier %q", tier)
	}
	if !qualityInRange(resonance) || !qualityInRange(coherence) || !qualityInRange(stability) {
		return apperr.New(apperr.InvariantViolation, "quality fields must be within [0,1]")
	}
	if tier != TierShadow && body == "" {
		return apperr.New(apperr.InvariantViolation, "non-shadow KU requires a non-empty body")
	}
	return nil
}

// Create inserts a new KU. resonance/coherence/stability default to 0
// when unset by the caller.
func (s *Store) Create(title, body string, tier Tier, domain string, tags []string, resonance, coherence, stability float64) (KU, *apperr.Error) {
	if title == "" {
		return KU{}, apperr.New(apperr.InvalidField, "title is required")
	}
	if err := validateFields(tier, body, resonance, coherence, stability); err != nil {
		return KU{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	ku := KU{
		ID:        s.clock.NewID("ku"),
		Title:     title,
		Body:      body,
		Tier:      tier,
		Domain:    domain,
		Tags:      append([]string(nil), tags...),
		Resonance: resonance,
		Coherence: coherence,
		Stability: stability,
		CreatedAt: now,
		UpdatedAt: now,
	}
	evicted := s.data.Put(ku)
	s.indexTags(ku.ID, nil, ku.Tags)
	s.purgeTags(evicted)
	return ku, nil
}

// Get returns a KU by id.
func (s *Store) Get(id string) (KU, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ku, ok := s.data.Get(id)
	if !ok {
		return KU{}, apperr.NotFoundf("ku", id)
	}
	return ku, nil
}

// List returns every live KU in insertion order.
func (s *Store) List() []KU {
	return s.data.List()
}

// ByTier returns ids of KUs with the given tier.
func (s *Store) ByTier(tier Tier) []string { return s.data.ByIndex("tier", string(tier)) }

// ByDomain returns ids of KUs with the given domain.
func (s *Store) ByDomain(domain string) []string { return s.data.ByIndex("domain", domain) }

// ByTag returns ids of KUs carrying the given tag.
func (s *Store) ByTag(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.byTag[tag]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// UpdateFields applies a partial update, re-checking every invariant
// against the resulting record before committing it.
func (s *Store) UpdateFields(id string, f Fields) (KU, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ku, ok := s.data.Get(id)
	if !ok {
		return KU{}, apperr.NotFoundf("ku", id)
	}

	updated := ku
	if f.Title != nil {
		if *f.Title == "" {
			return KU{}, apperr.New(apperr.InvalidField, "title cannot be empty")
		}
		updated.Title = *f.Title
	}
	if f.Body != nil {
		updated.Body = *f.Body
	}
	if f.Tier != nil {
		updated.Tier = *f.Tier
	}
	if f.Domain != nil {
		updated.Domain = *f.Domain
	}
	if f.Tags != nil {
		updated.Tags = append([]string(nil), f.Tags...)
	}
	if f.Resonance != nil {
		updated.Resonance = *f.Resonance
	}
	if f.Coherence != nil {
		updated.Coherence = *f.Coherence
	}
	if f.Stability != nil {
		updated.Stability = *f.Stability
	}

	if err := validateFields(updated.Tier, updated.Body, updated.Resonance, updated.Coherence, updated.Stability); err != nil {
		return KU{}, err
	}

	updated.UpdatedAt = s.clock.Now()
	evicted := s.data.Put(updated)
	s.indexTags(id, ku.Tags, updated.Tags)
	s.purgeTags(evicted)
	return updated, nil
}

// AddEdge attaches a typed edge from src to dst. Self-supports is
// rejected; the destination must exist. Cycles of "supports" edges are
// permitted per spec.md. Re-adding an edge that already exists is a
// no-op, so replayed calls never accumulate duplicate edges.
func (s *Store) AddEdge(src, dst string, edgeType EdgeType) (KU, *apperr.Error) {
	if !validEdgeType(edgeType) {
		return KU{}, apperr.New(apperr.InvalidField, "invalid edge type %q", edgeType)
	}
	if src == dst && edgeType == EdgeSupports {
		return KU{}, apperr.New(apperr.InvariantViolation, "a KU cannot support itself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ku, ok := s.data.Get(src)
	if !ok {
		return KU{}, apperr.NotFoundf("ku", src)
	}
	if _, ok := s.data.Get(dst); !ok {
		return KU{}, apperr.NotFoundf("ku", dst)
	}
	for _, e := range ku.Edges {
		if e.Target == dst && e.Type == edgeType {
			return ku, nil
		}
	}

	ku.Edges = append(ku.Edges, Edge{Target: dst, Type: edgeType})
	ku.UpdatedAt = s.clock.Now()
	s.data.Put(ku)
	return ku, nil
}

// EdgesOfType returns every (source, edge) pair across all KUs whose
// edge type matches, optionally filtered to edges arriving at target.
func (s *Store) EdgesOfType(edgeType EdgeType, target string) []struct {
	Source string
	Edge   Edge
} {
	var out []struct {
		Source string
		Edge   Edge
	}
	for _, ku := range s.data.List() {
		for _, e := range ku.Edges {
			if e.Type != edgeType {
				continue
			}
			if target != "" && e.Target != target {
				continue
			}
			out = append(out, struct {
				Source string
				Edge   Edge
			}{Source: ku.ID, Edge: e})
		}
	}
	return out
}

func (s *Store) indexTags(id string, oldTags, newTags []string) {
	for _, t := range oldTags {
		if bucket, ok := s.byTag[t]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(s.byTag, t)
			}
		}
	}
	for _, t := range newTags {
		bucket, ok := s.byTag[t]
		if !ok {
			bucket = make(map[string]struct{})
			s.byTag[t] = bucket
		}
		bucket[id] = struct{}{}
	}
}

func (s *Store) purgeTags(evictedIDs []string) {
	if len(evictedIDs) == 0 {
		return
	}
	evicted := make(map[string]struct{}, len(evictedIDs))
	for _, id := range evictedIDs {
		evicted[id] = struct{}{}
	}
	for tag, bucket := range s.byTag {
		for id := range evicted {
			delete(bucket, id)
		}
		if len(bucket) == 0 {
			delete(s.byTag, tag)
		}
	}
}
