package constitution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/apperr"
)

func TestNew_SeedsTenImmutableRules(t *testing.T) {
	e := New()
	rules := e.List()
	require.Len(t, rules, 10)
	for _, r := range rules {
		assert.Equal(t, TierImmutable, r.Tier)
		assert.True(t, r.Active)
	}
	assert.Equal(t, "IMM-001", rules[0].ID)
	assert.Equal(t, "IMM-010", rules[9].ID)
}

func TestCheckRules_BlocksEmergentGovernanceDecision(t *testing.T) {
	e := New()
	res := e.CheckRules(Action{
		Action:    "finalize_decision",
		ActorType: "emergent",
		Tags:      []string{"emergent", "governance", "decision"},
	})
	assert.False(t, res.Allowed)
	require.NotEmpty(t, res.Violations)
	assert.Equal(t, "IMM-001", res.Violations[0].RuleID)
}

func TestCheckRules_AllowsUnrelatedAction(t *testing.T) {
	e := New()
	res := e.CheckRules(Action{Action: "log_note", Tags: []string{"logging"}})
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Violations)
}

func TestCheckRules_PartialTagMatchDoesNotApply(t *testing.T) {
	e := New()
	res := e.CheckRules(Action{Action: "decide", Tags: []string{"emergent", "decision"}})
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Violations)
}

func TestAddRule_RejectsImmutableTier(t *testing.T) {
	e := New()
	_, err := e.AddRule(TierImmutable, "x", "", "", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CannotAddImmutable, err.Code)
}

func TestAddRule_AssignsSequentialIDsPerTier(t *testing.T) {
	e := New()
	r1, err := e.AddRule(TierConstitutional, "rule one", "", "cat", []string{"a"})
	require.Nil(t, err)
	assert.Equal(t, "CON-001", r1.ID)

	r2, err := e.AddRule(TierPolicy, "rule two", "", "cat", []string{"b"})
	require.Nil(t, err)
	assert.Equal(t, "POL-001", r2.ID)

	r3, err := e.AddRule(TierConstitutional, "rule three", "", "cat", []string{"c"})
	require.Nil(t, err)
	assert.Equal(t, "CON-002", r3.ID)
}

func TestAmendRule_RejectsImmutable(t *testing.T) {
	e := New()
	_, err := e.AmendRule("IMM-001", "new text", Votes{For: 10, Against: 0}, "")
	require.Error(t, err)
	assert.Equal(t, apperr.RuleNotAmendable, err.Code)
}

func TestAmendRule_NotFound(t *testing.T) {
	e := New()
	_, err := e.AmendRule("CON-999", "new text", Votes{For: 10, Against: 0}, "")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, err.Code)
}

func TestAmendRule_ConstitutionalRequiresSupermajority(t *testing.T) {
	e := New()
	r, _ := e.AddRule(TierConstitutional, "original", "", "cat", []string{"x"})

	res, err := e.AmendRule(r.ID, "amended", Votes{For: 6, Against: 4}, "close vote")
	require.Nil(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.Amended)
	got, _ := e.Get(r.ID)
	assert.Equal(t, "original", got.Statement)

	res, err = e.AmendRule(r.ID, "amended", Votes{For: 7, Against: 3}, "supermajority")
	require.Nil(t, err)
	assert.True(t, res.Amended)
	got, _ = e.Get(r.ID)
	assert.Equal(t, "amended", got.Statement)
}

func TestAmendRule_PolicyRequiresSimpleMajority(t *testing.T) {
	e := New()
	r, _ := e.AddRule(TierPolicy, "original", "", "cat", []string{"x"})

	res, err := e.AmendRule(r.ID, "amended", Votes{For: 1, Against: 1}, "")
	require.Nil(t, err)
	assert.False(t, res.Amended)

	res, err = e.AmendRule(r.ID, "amended", Votes{For: 2, Against: 1}, "")
	require.Nil(t, err)
	assert.True(t, res.Amended)
}

func TestAmendRule_RequiresAtLeastOneVote(t *testing.T) {
	e := New()
	r, _ := e.AddRule(TierPolicy, "original", "", "cat", []string{"x"})
	res, err := e.AmendRule(r.ID, "amended", Votes{For: 0, Against: 0}, "")
	require.Nil(t, err)
	assert.False(t, res.Amended)
}

func TestDeactivateRule_RejectsImmutable(t *testing.T) {
	e := New()
	err := e.DeactivateRule("IMM-001")
	require.Error(t, err)
	assert.Equal(t, apperr.CannotDeactivateImm, err.Code)
}

func TestDeactivateRule_PolicyRuleStopsApplying(t *testing.T) {
	e := New()
	r, _ := e.AddRule(TierPolicy, "no weekend deploys", "", "cat", []string{"deploy", "weekend"})

	res := e.CheckRules(Action{Tags: []string{"deploy", "weekend"}})
	require.Len(t, res.Violations, 1)
	assert.Equal(t, r.ID, res.Violations[0].RuleID)

	require.Nil(t, e.DeactivateRule(r.ID))
	res = e.CheckRules(Action{Tags: []string{"deploy", "weekend"}})
	assert.Empty(t, res.Violations)
}

func TestCheckRules_PolicyViolationReportedButDoesNotBlock(t *testing.T) {
	e := New()
	e.AddRule(TierPolicy, "avoid large batch changes", "", "cat", []string{"batch"})

	res := e.CheckRules(Action{Tags: []string{"batch"}})
	assert.True(t, res.Allowed)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, TierPolicy, res.Violations[0].Tier)
}

func TestHistory_RecordsAddAmendAndDeactivate(t *testing.T) {
	e := New()
	r, _ := e.AddRule(TierPolicy, "avoid large batch changes", "", "cat", []string{"batch"})
	_, err := e.AmendRule(r.ID, "avoid batch changes over 50 items", Votes{For: 2, Against: 1}, "tightened after incident")
	require.Nil(t, err)
	require.Nil(t, e.DeactivateRule(r.ID))

	hist := e.History(r.ID)
	require.Len(t, hist, 3)
	assert.Equal(t, "added", hist[0].Event)
	assert.Equal(t, "amended", hist[1].Event)
	assert.Equal(t, "deactivated", hist[2].Event)
}
