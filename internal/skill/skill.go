// Package skill implements the skill store (spec component 4.H):
// reasoning templates, macro playbooks, and test bundles with an
// applied-usage maturity machine, context-based matching, and
// distillation of recurring role sequences into new templates.
package skill

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/store"
)

// Kind is the fixed enumeration of skill kinds.
type Kind string

const (
	KindReasoningTemplate Kind = "reasoning_template"
	KindMacroPlaybook     Kind = "macro_playbook"
	KindTestBundle        Kind = "test_bundle"
)

// Maturity is the applied-usage lifecycle stage of a skill.
type Maturity string

const (
	MaturityCandidate  Maturity = "candidate"
	MaturityTested     Maturity = "tested"
	MaturityProven     Maturity = "proven"
	MaturityCanonical  Maturity = "canonical"
	MaturityDeprecated Maturity = "deprecated"
)

func (m Maturity) bonus() int {
	switch m {
	case MaturityCanonical:
		return 3
	case MaturityProven:
		return 2
	case MaturityTested:
		return 1
	default:
		return 0
	}
}

// Skill is one stored reasoning template, macro playbook, or test
// bundle.
type Skill struct {
	ID           string
	Kind         Kind
	Domain       string // "*" matches any domain
	Role         string // "*" matches any role
	WorkType     string // empty matches any work type
	Steps        []string
	SequenceTag  string // distillation dedup key
	Maturity     Maturity
	AppliedCount int
	SuccessCount int
	DeprecatedReason string
	CreatedAt    time.Time
}

// RecordID satisfies store.Identified.
func (s Skill) RecordID() string { return s.ID }

func (s Skill) successRate() float64 {
	if s.AppliedCount == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.AppliedCount)
}

const defaultCeiling = 50_000

// Store holds skills with indices by kind, domain, role, workType.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	data  *store.Bounded[Skill]
}

// New creates a skill Store.
func New(clk clock.Source, ceiling int) *Store {
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	return &Store{
		clock: clk,
		data: store.New[Skill](ceiling,
			store.Index[Skill]{Name: "kind", Extract: func(s Skill) (string, bool) { return string(s.Kind), true }},
			store.Index[Skill]{Name: "domain", Extract: func(s Skill) (string, bool) { return s.Domain, s.Domain != "" }},
			store.Index[Skill]{Name: "role", Extract: func(s Skill) (string, bool) { return s.Role, s.Role != "" }},
			store.Index[Skill]{Name: "workType", Extract: func(s Skill) (string, bool) { return s.WorkType, s.WorkType != "" }},
		),
	}
}

// Create registers a new candidate skill.
func (s *Store) Create(kind Kind, domain, role, workType string, steps []string, sequenceTag string) Skill {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk := Skill{
		ID:          s.clock.NewID("sk"),
		Kind:        kind,
		Domain:      domain,
		Role:        role,
		WorkType:    workType,
		Steps:       append([]string(nil), steps...),
		SequenceTag: sequenceTag,
		Maturity:    MaturityCandidate,
		CreatedAt:   s.clock.Now(),
	}
	s.data.Put(sk)
	return sk
}

// Get returns a skill by id.
func (s *Store) Get(id string) (Skill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Get(id)
}

// RecordApplication records one application of a skill and advances its
// maturity per the applied-usage machine:
//   - candidate -> tested: on the first successful application.
//   - tested -> proven: applied >= 5 times with success rate >= 0.6.
//   - any non-deprecated -> deprecated: applied >= 10 times with success
//     rate < 0.3.
func (s *Store) RecordApplication(id string, success bool) (Skill, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.data.Get(id)
	if !ok {
		return Skill{}, apperr.NotFoundf("skill", id)
	}
	sk.AppliedCount++
	if success {
		sk.SuccessCount++
	}

	if sk.Maturity == MaturityCandidate && success {
		sk.Maturity = MaturityTested
	}
	if sk.Maturity == MaturityTested && sk.AppliedCount >= 5 && sk.successRate() >= 0.6 {
		sk.Maturity = MaturityProven
	}
	if sk.Maturity != MaturityDeprecated && sk.Maturity != MaturityCanonical &&
		sk.AppliedCount >= 10 && sk.successRate() < 0.3 {
		sk.Maturity = MaturityDeprecated
		sk.DeprecatedReason = "auto_deprecated_low_success_rate"
	}

	s.data.Put(sk)
	return sk, nil
}

// Promote sets a skill's maturity to canonical. This is the only path
// that reaches canonical; it is an explicit governance action, never an
// automatic transition.
func (s *Store) Promote(id string) (Skill, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.data.Get(id)
	if !ok {
		return Skill{}, apperr.NotFoundf("skill", id)
	}
	sk.Maturity = MaturityCanonical
	s.data.Put(sk)
	return sk, nil
}

// Deprecate manually retires a skill, e.g. by explicit governance
// action rather than the automatic low-success-rate path.
func (s *Store) Deprecate(id, reason string) (Skill, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.data.Get(id)
	if !ok {
		return Skill{}, apperr.NotFoundf("skill", id)
	}
	sk.Maturity = MaturityDeprecated
	sk.DeprecatedReason = reason
	s.data.Put(sk)
	return sk, nil
}

// Context is the caller's situation used to score candidate skills.
type Context struct {
	Domain   string
	Role     string
	WorkType string
}

// Match is one scored skill from findMatchingSkills.
type Match struct {
	Skill       Skill
	Score       int
	SuccessRate float64
}

// FindMatchingSkills scores every non-deprecated skill against ctx and
// returns entries with score > 1, sorted by score descending (ties
// broken by id for determinism).
func (s *Store) FindMatchingSkills(ctx Context) []Match {
	s.mu.Lock()
	all := s.data.List()
	s.mu.Unlock()

	var out []Match
	for _, sk := range all {
		if sk.Maturity == MaturityDeprecated {
			continue
		}
		score := 0
		if sk.WorkType != "" && sk.WorkType == ctx.WorkType {
			score += 3
		} else if sk.WorkType == "" {
			score += 1
		}
		if sk.Domain == ctx.Domain || sk.Domain == "*" {
			score += 2
		}
		if sk.Role == ctx.Role || sk.Role == "*" {
			score += 1
		}
		score += sk.Maturity.bonus()
		if score > 1 {
			out = append(out, Match{Skill: sk, Score: score, SuccessRate: sk.successRate()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Skill.ID < out[j].Skill.ID
	})
	return out
}

// Sequence is one observed role-sequence pattern, as supplied by the
// caller (the engine tracks occurrence counts from protocol/project
// history; this package only distills them into skills).
type Sequence struct {
	Tag         string
	Steps       []string
	Domain      string
	Role        string
	Occurrences int
}

// Distill creates a reasoning_template from every sequence whose
// occurrence count meets minOccurrences, skipping any sequence whose
// tag is already carried by an existing skill.
func (s *Store) Distill(sequences []Sequence, minOccurrences int) []Skill {
	s.mu.Lock()
	existingTags := make(map[string]struct{})
	for _, sk := range s.data.List() {
		if sk.SequenceTag != "" {
			existingTags[sk.SequenceTag] = struct{}{}
		}
	}
	s.mu.Unlock()

	var created []Skill
	for _, seq := range sequences {
		if seq.Occurrences < minOccurrences {
			continue
		}
		if _, ok := existingTags[seq.Tag]; ok {
			continue
		}
		created = append(created, s.Create(KindReasoningTemplate, seq.Domain, seq.Role, "", seq.Steps, seq.Tag))
		existingTags[seq.Tag] = struct{}{}
	}
	return created
}

// ByKind returns every skill of the given kind.
func (s *Store) ByKind(kind Kind) []Skill {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.data.ByIndex("kind", string(kind))
	sort.Strings(ids)
	out := make([]Skill, 0, len(ids))
	for _, id := range ids {
		if sk, ok := s.data.Get(id); ok {
			out = append(out, sk)
		}
	}
	return out
}
