package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

func newTestStore() (*Store, *clock.Fake) {
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)
	return New(c), c
}

func TestConsumeBudget_DeductsAndAudits(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 5, 0, []string{"read"})

	require.Nil(t, s.ConsumeBudget(sb.ID, 4))
	got, _ := s.Get(sb.ID)
	assert.Equal(t, 4.0, got.Used)
	assert.Equal(t, 6.0, got.Remaining())
	assert.Equal(t, "budget_consumed", got.Audit[len(got.Audit)-1].Event)
}

func TestConsumeBudget_RejectsOverBudget(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 5, 0, nil)

	err := s.ConsumeBudget(sb.ID, 11)
	require.Error(t, err)
	assert.Equal(t, apperr.BudgetExceeded, err.Code)
	got, _ := s.Get(sb.ID)
	assert.Equal(t, "budget_exceeded", got.Audit[len(got.Audit)-1].Event)
}

func TestConsumeBudget_RejectsWhenNotActive(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 5, 0, nil)
	require.Nil(t, s.Kill(sb.ID, "manual"))

	err := s.ConsumeBudget(sb.ID, 1)
	require.Error(t, err)
	assert.Equal(t, apperr.WrongProtocolState, err.Code)
}

func TestCheckPermission_WildcardAndExactMatch(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 5, 0, []string{"read"})

	ok, err := s.CheckPermission(sb.ID, "read")
	require.Nil(t, err)
	assert.True(t, ok)

	ok, _ = s.CheckPermission(sb.ID, "write")
	assert.False(t, ok)
	got, _ := s.Get(sb.ID)
	assert.Equal(t, "permission_denied", got.Audit[len(got.Audit)-1].Event)

	wild := s.CreateAgent("bob", 10, 5, 0, []string{"*"})
	ok, _ = s.CheckPermission(wild.ID, "anything")
	assert.True(t, ok)
}

func TestWriteMemory_EvictsOldestOnCapWithoutCountingUpdates(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 0, nil)

	require.Nil(t, s.WriteMemory(sb.ID, "a", 1))
	require.Nil(t, s.WriteMemory(sb.ID, "b", 2))
	// updating an existing key shouldn't evict anything
	require.Nil(t, s.WriteMemory(sb.ID, "a", 10))
	got, _ := s.Get(sb.ID)
	assert.Len(t, got.Memory, 2)
	assert.Equal(t, 10, got.Memory["a"])

	require.Nil(t, s.WriteMemory(sb.ID, "c", 3))
	got, _ = s.Get(sb.ID)
	assert.Len(t, got.Memory, 2)
	_, hasA := got.Memory["a"]
	assert.False(t, hasA)
	assert.Equal(t, 3, got.Memory["c"])
}

func TestReadMemory_MissingKey(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 0, nil)
	_, ok, err := s.ReadMemory(sb.ID, "missing")
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestSuspendResume_BlocksBudgetWhileSuspended(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 0, nil)

	require.Nil(t, s.Suspend(sb.ID, "resource_pressure"))
	err := s.ConsumeBudget(sb.ID, 1)
	require.Error(t, err)
	assert.Equal(t, apperr.WrongProtocolState, err.Code)

	require.Nil(t, s.Resume(sb.ID))
	require.Nil(t, s.ConsumeBudget(sb.ID, 1))
}

func TestResume_RejectsKilledSandbox(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 0, nil)
	require.Nil(t, s.Kill(sb.ID, "manual"))
	require.Error(t, s.Resume(sb.ID))
}

func TestKill_SetsStatusAndAudits(t *testing.T) {
	s, _ := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 0, nil)
	require.Nil(t, s.Kill(sb.ID, "operator_request"))
	got, _ := s.Get(sb.ID)
	assert.Equal(t, StatusKilled, got.Status)
	assert.Equal(t, "operator_request", got.KillReason)
}

func TestEnforceTimeLimit_AutoKillsPastLimit(t *testing.T) {
	s, c := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 100, nil)

	killed, err := s.EnforceTimeLimit(sb.ID)
	require.Nil(t, err)
	assert.False(t, killed)

	c.Advance(200 * time.Millisecond)
	killed, err = s.EnforceTimeLimit(sb.ID)
	require.Nil(t, err)
	assert.True(t, killed)
	got, _ := s.Get(sb.ID)
	assert.Equal(t, StatusKilled, got.Status)
	assert.Equal(t, "execution_time_exceeded", got.KillReason)
}

func TestEnforceTimeLimit_NoopWithoutLimit(t *testing.T) {
	s, c := newTestStore()
	sb := s.CreateAgent("alice", 10, 2, 0, nil)
	c.Advance(time.Hour)
	killed, err := s.EnforceTimeLimit(sb.ID)
	require.Nil(t, err)
	assert.False(t, killed)
}
