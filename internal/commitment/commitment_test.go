package commitment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

func newTestStore() (*Store, *clock.Fake) {
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	return New(c), c
}

func TestRegisterCommitment_StartsProposed(t *testing.T) {
	s, _ := newTestStore()
	c := s.RegisterCommitment("alice", "ship the report", time.Time{}, []string{"bob"})
	assert.Equal(t, StateProposed, c.State)
}

func TestTransition_FollowsDocumentedFSM(t *testing.T) {
	s, _ := newTestStore()
	c := s.RegisterCommitment("alice", "x", time.Time{}, nil)
	require.Nil(t, s.Transition(c.ID, StateAccepted, "alice", ""))
	require.Nil(t, s.Transition(c.ID, StateInProgress, "alice", ""))
	require.Nil(t, s.Transition(c.ID, StateFulfilled, "alice", "proof"))

	got, _ := s.Get(c.ID)
	assert.Equal(t, StateFulfilled, got.State)
	assert.Len(t, got.History, 3)
}

func TestTransition_RejectsSkippingStages(t *testing.T) {
	s, _ := newTestStore()
	c := s.RegisterCommitment("alice", "x", time.Time{}, nil)
	err := s.Transition(c.ID, StateFulfilled, "alice", "")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidTransition, err.Code)
}

func TestTransition_WithdrawnFromAnyNonTerminalState(t *testing.T) {
	s, _ := newTestStore()
	c := s.RegisterCommitment("alice", "x", time.Time{}, nil)
	require.Nil(t, s.Transition(c.ID, StateWithdrawn, "alice", ""))

	accepted := s.RegisterCommitment("alice", "y", time.Time{}, nil)
	require.Nil(t, s.Transition(accepted.ID, StateAccepted, "alice", ""))
	require.Nil(t, s.Transition(accepted.ID, StateWithdrawn, "alice", ""))

	inProgress := s.RegisterCommitment("alice", "z", time.Time{}, nil)
	require.Nil(t, s.Transition(inProgress.ID, StateAccepted, "alice", ""))
	require.Nil(t, s.Transition(inProgress.ID, StateInProgress, "alice", ""))
	require.Nil(t, s.Transition(inProgress.ID, StateWithdrawn, "alice", ""))
}

func TestDetectBreaches_MarksPastDeadlineExactlyOnce(t *testing.T) {
	s, c := newTestStore()
	deadline := c.Now().Add(time.Hour)
	cm := s.RegisterCommitment("alice", "x", deadline, nil)
	_ = s.Transition(cm.ID, StateAccepted, "alice", "")

	c.Advance(2 * time.Hour)
	breached := s.DetectBreaches()
	require.Len(t, breached, 1)
	assert.Equal(t, StateBreached, breached[0].State)

	// idempotent: a second scan finds nothing new
	breached2 := s.DetectBreaches()
	assert.Empty(t, breached2)
}

func TestDetectBreaches_IgnoresTerminalCommitments(t *testing.T) {
	s, c := newTestStore()
	deadline := c.Now().Add(time.Hour)
	cm := s.RegisterCommitment("alice", "x", deadline, nil)
	require.Nil(t, s.Transition(cm.ID, StateWithdrawn, "alice", ""))

	c.Advance(2 * time.Hour)
	breached := s.DetectBreaches()
	assert.Empty(t, breached)
}

func TestComputeAttribution_WeightsDirectAndReceived(t *testing.T) {
	g := NewGraph()
	g.AddNode("alice", NodeActor)
	g.AddNode("bob", NodeActor)
	g.AddNode("action1", NodeAction)

	g.AddEdge("alice", "action1", EdgeExecuted, 1.0, nil)
	g.AddEdge("bob", "alice", EdgeInfluenced, 0.5, nil)

	attributions := g.ComputeAttribution()
	byActor := make(map[string]Attribution)
	for _, a := range attributions {
		byActor[a.ActorID] = a
	}

	alice := byActor["alice"]
	assert.Equal(t, 1.0, alice.Direct)
	assert.Equal(t, 0.5, alice.Received)
	assert.InDelta(t, 1.15, alice.Total, 1e-9) // 1.0 + 0.3*0.5

	bob := byActor["bob"]
	assert.Equal(t, 0.5, bob.Direct)
	assert.Equal(t, 0.0, bob.Received)

	var totalShare float64
	for _, a := range attributions {
		totalShare += a.Share
	}
	assert.InDelta(t, 1.0, totalShare, 1e-9)
}

func TestRollbackCoordinator_ReadyOnlyWhenAllCheckpointed(t *testing.T) {
	rc := NewRollbackCoordinator(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	r := rc.Initiate([]string{"alice", "bob"})
	assert.Equal(t, RollbackInitiated, r.Status)

	require.Nil(t, rc.Checkpoint(r.ID, "alice", "snap-a"))
	got, _ := rc.Get(r.ID)
	assert.Equal(t, RollbackInitiated, got.Status)

	require.Nil(t, rc.Checkpoint(r.ID, "bob", "snap-b"))
	got, _ = rc.Get(r.ID)
	assert.Equal(t, RollbackReady, got.Status)
}

func TestRollbackCoordinator_ExecuteRequiresReady(t *testing.T) {
	rc := NewRollbackCoordinator(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	r := rc.Initiate([]string{"alice"})
	err := rc.Execute(r.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.WrongProtocolState, err.Code)

	require.Nil(t, rc.Checkpoint(r.ID, "alice", "snap"))
	require.Nil(t, rc.Execute(r.ID))
	got, _ := rc.Get(r.ID)
	assert.Equal(t, RollbackCompleted, got.Status)
	assert.Equal(t, SlotRolledBack, got.Slots["alice"].Status)
}
