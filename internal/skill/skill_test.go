package skill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/clock"
)

func newTestStore() *Store {
	return New(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond), 0)
}

func TestRecordApplication_CandidateBecomesTestedOnFirstSuccess(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindReasoningTemplate, "physics", "researcher", "synthesis", []string{"a", "b"}, "")
	got, err := s.RecordApplication(sk.ID, true)
	require.Nil(t, err)
	assert.Equal(t, MaturityTested, got.Maturity)
}

func TestRecordApplication_CandidateStaysCandidateOnFailure(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindReasoningTemplate, "physics", "researcher", "synthesis", nil, "")
	got, _ := s.RecordApplication(sk.ID, false)
	assert.Equal(t, MaturityCandidate, got.Maturity)
}

func TestRecordApplication_TestedBecomesProvenAtThreshold(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindReasoningTemplate, "d", "r", "wt", nil, "")
	var got Skill
	for i := 0; i < 5; i++ {
		got, _ = s.RecordApplication(sk.ID, true)
	}
	assert.Equal(t, MaturityProven, got.Maturity)
	assert.Equal(t, 5, got.AppliedCount)
}

func TestRecordApplication_AutoDeprecatesOnLowSuccessRate(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindReasoningTemplate, "d", "r", "wt", nil, "")
	var got Skill
	for i := 0; i < 10; i++ {
		got, _ = s.RecordApplication(sk.ID, i < 2) // 2/10 = 0.2 success rate
	}
	assert.Equal(t, MaturityDeprecated, got.Maturity)
	assert.Equal(t, "auto_deprecated_low_success_rate", got.DeprecatedReason)
}

func TestRecordApplication_CanonicalNeverAutoDeprecates(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindReasoningTemplate, "d", "r", "wt", nil, "")
	sk, _ = s.Promote(sk.ID)
	var got Skill
	for i := 0; i < 10; i++ {
		got, _ = s.RecordApplication(sk.ID, false)
	}
	assert.Equal(t, MaturityCanonical, got.Maturity)
}

func TestFindMatchingSkills_ScoresAndFilters(t *testing.T) {
	s := newTestStore()
	exact := s.Create(KindReasoningTemplate, "physics", "researcher", "synthesis", nil, "")
	wildcard := s.Create(KindReasoningTemplate, "*", "*", "synthesis", nil, "")
	irrelevant := s.Create(KindReasoningTemplate, "chem", "editor", "review", nil, "")
	_ = irrelevant

	matches := s.FindMatchingSkills(Context{Domain: "physics", Role: "researcher", WorkType: "synthesis"})
	require.Len(t, matches, 2)
	assert.Equal(t, exact.ID, matches[0].Skill.ID)
	assert.Equal(t, wildcard.ID, matches[1].Skill.ID)
}

func TestFindMatchingSkills_ExcludesDeprecated(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindReasoningTemplate, "physics", "researcher", "synthesis", nil, "")
	for i := 0; i < 10; i++ {
		sk, _ = s.RecordApplication(sk.ID, false)
	}
	require.Equal(t, MaturityDeprecated, sk.Maturity)

	matches := s.FindMatchingSkills(Context{Domain: "physics", Role: "researcher", WorkType: "synthesis"})
	assert.Empty(t, matches)
}

func TestFindMatchingSkills_MaturityAddsScoreBonus(t *testing.T) {
	s := newTestStore()
	low := s.Create(KindReasoningTemplate, "d", "r", "", nil, "")
	high := s.Create(KindReasoningTemplate, "d", "r", "", nil, "")
	high, _ = s.RecordApplication(high.ID, true)
	for i := 0; i < 4; i++ {
		high, _ = s.RecordApplication(high.ID, true)
	}
	require.Equal(t, MaturityProven, high.Maturity)

	matches := s.FindMatchingSkills(Context{Domain: "d", Role: "r"})
	require.Len(t, matches, 2)
	assert.Equal(t, high.ID, matches[0].Skill.ID)
	assert.Equal(t, low.ID, matches[1].Skill.ID)
}

func TestDistill_SkipsBelowMinOccurrencesAndExistingTags(t *testing.T) {
	s := newTestStore()
	s.Create(KindReasoningTemplate, "d", "r", "", []string{"x"}, "seq-existing")

	seqs := []Sequence{
		{Tag: "seq-new", Steps: []string{"a", "b"}, Domain: "d", Role: "r", Occurrences: 5},
		{Tag: "seq-rare", Steps: []string{"c"}, Domain: "d", Role: "r", Occurrences: 1},
		{Tag: "seq-existing", Steps: []string{"x"}, Domain: "d", Role: "r", Occurrences: 5},
	}
	created := s.Distill(seqs, 3)
	require.Len(t, created, 1)
	assert.Equal(t, "seq-new", created[0].SequenceTag)
	assert.Equal(t, KindReasoningTemplate, created[0].Kind)
}

func TestDeprecate_SetsMaturityAndReason(t *testing.T) {
	s := newTestStore()
	sk := s.Create(KindMacroPlaybook, "physics", "researcher", "synthesis", []string{"a"}, "")
	got, err := s.Deprecate(sk.ID, "superseded_by_better_playbook")
	require.Nil(t, err)
	assert.Equal(t, MaturityDeprecated, got.Maturity)
	assert.Equal(t, "superseded_by_better_playbook", got.DeprecatedReason)
}

func TestByKind_FiltersCorrectly(t *testing.T) {
	s := newTestStore()
	s.Create(KindReasoningTemplate, "d", "r", "", nil, "")
	s.Create(KindMacroPlaybook, "d", "r", "", nil, "")
	assert.Len(t, s.ByKind(KindReasoningTemplate), 1)
	assert.Len(t, s.ByKind(KindMacroPlaybook), 1)
	assert.Len(t, s.ByKind(KindTestBundle), 0)
}
