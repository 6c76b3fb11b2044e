package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

func newTestStore() *Store {
	return New(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond))
}

func TestAddNode_RejectsMissingPrerequisite(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	_, err := s.AddNode(p.ID, []string{"nope"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, err.Code)
}

func TestAddNode_AllowsDiamondDependency(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	root, _ := s.AddNode(p.ID, nil)
	left, _ := s.AddNode(p.ID, []string{root.ID})
	right, _ := s.AddNode(p.ID, []string{root.ID})
	join, err := s.AddNode(p.ID, []string{left.ID, right.ID})
	require.Nil(t, err)
	assert.Len(t, join.Prerequisites, 2)
}

func TestStart_ActivatesProjectAndReadiesRootNodes(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	root, _ := s.AddNode(p.ID, nil)
	dependent, _ := s.AddNode(p.ID, []string{root.ID})

	require.Nil(t, s.Start(p.ID))
	got, _ := s.Get(p.ID)
	assert.Equal(t, ProjectActive, got.Status)
	assert.Equal(t, NodeReady, got.Nodes[root.ID].Status)
	assert.Equal(t, NodePending, got.Nodes[dependent.ID].Status)
}

func TestComplete_ReadiesDependentsAndCompletesProject(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	root, _ := s.AddNode(p.ID, nil)
	dependent, _ := s.AddNode(p.ID, []string{root.ID})
	require.Nil(t, s.Start(p.ID))

	require.Nil(t, s.Complete(p.ID, root.ID, "ok"))
	got, _ := s.Get(p.ID)
	assert.Equal(t, NodeReady, got.Nodes[dependent.ID].Status)
	assert.Equal(t, ProjectActive, got.Status)

	require.Nil(t, s.Complete(p.ID, dependent.ID, "ok"))
	got, _ = s.Get(p.ID)
	assert.Equal(t, ProjectCompleted, got.Status)
}

func TestComplete_RejectsNodeNotReadyOrInProgress(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	root, _ := s.AddNode(p.ID, nil)
	err := s.Complete(p.ID, root.ID, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidTransition, err.Code)
}

func TestFail_BlocksTransitiveDependents(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	root, _ := s.AddNode(p.ID, nil)
	mid, _ := s.AddNode(p.ID, []string{root.ID})
	leaf, _ := s.AddNode(p.ID, []string{mid.ID})
	require.Nil(t, s.Start(p.ID))

	require.Nil(t, s.Fail(p.ID, root.ID, "broke"))
	got, _ := s.Get(p.ID)
	assert.Equal(t, NodeFailed, got.Nodes[root.ID].Status)
	assert.Equal(t, NodeBlocked, got.Nodes[mid.ID].Status)
	assert.Equal(t, NodeBlocked, got.Nodes[leaf.ID].Status)
}

func TestPauseResume_RoundTrips(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	require.Nil(t, s.Start(p.ID))
	require.Nil(t, s.Pause(p.ID))
	got, _ := s.Get(p.ID)
	assert.Equal(t, ProjectPaused, got.Status)

	require.Nil(t, s.Resume(p.ID))
	got, _ = s.Get(p.ID)
	assert.Equal(t, ProjectActive, got.Status)
}

func TestCheckpointRollback_RevertsStartedNodesAfterIndex(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	a, _ := s.AddNode(p.ID, nil)
	require.Nil(t, s.Start(p.ID))

	cp, err := s.Checkpoint(p.ID, a.ID, map[string]string{"state": "v1"})
	require.Nil(t, err)

	b, _ := s.AddNode(p.ID, nil)
	// b is added pending after Start; ReadyNodes moves it to ready.
	_, err = s.ReadyNodes(p.ID)
	require.Nil(t, err)
	require.Nil(t, s.Complete(p.ID, b.ID, "done"))

	got, _ := s.Get(p.ID)
	assert.Equal(t, NodeCompleted, got.Nodes[b.ID].Status)

	require.Nil(t, s.Rollback(p.ID, cp.ID))
	got, _ = s.Get(p.ID)
	assert.Equal(t, NodePending, got.Nodes[b.ID].Status)
	assert.Equal(t, ProjectActive, got.Status)
}

func TestReadyNodes_FindsNothingOnceCompleteHasReadiedDependents(t *testing.T) {
	s := newTestStore()
	p := s.Create()
	root, _ := s.AddNode(p.ID, nil)
	dependent, _ := s.AddNode(p.ID, []string{root.ID})
	require.Nil(t, s.Start(p.ID))
	require.Nil(t, s.Complete(p.ID, root.ID, nil))

	ready, err := s.ReadyNodes(p.ID)
	require.Nil(t, err)
	// dependent was already flipped to ready by Complete; ReadyNodes
	// should find nothing new left in pending.
	assert.Len(t, ready, 0)
	got, _ := s.Get(p.ID)
	assert.Equal(t, NodeReady, got.Nodes[dependent.ID].Status)
}
