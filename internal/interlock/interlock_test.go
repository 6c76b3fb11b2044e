package interlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/clock"
)

func newTestStore() (*Store, *clock.Fake) {
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)
	return New(c), c
}

func TestMutex_SecondAcquirerQueuesThenPromotesOnRelease(t *testing.T) {
	s, _ := newTestStore()
	l := s.CreateMutex()

	ok, err := s.Acquire(l.ID, "a", "")
	require.Nil(t, err)
	assert.True(t, ok)

	ok, _ = s.Acquire(l.ID, "b", "")
	assert.False(t, ok)

	waiters, _ := s.Waiters(l.ID)
	assert.Equal(t, []string{"b"}, waiters)

	require.Nil(t, s.Release(l.ID, "a"))
	holders, _ := s.Holders(l.ID)
	assert.Equal(t, []string{"b"}, holders)
}

func TestOrdered_AdmitsSmallestKeyFirst(t *testing.T) {
	s, _ := newTestStore()
	l := s.CreateOrdered()

	ok, _ := s.Acquire(l.ID, "late", "5")
	assert.True(t, ok) // first caller always admitted regardless of key

	ok2, _ := s.Acquire(l.ID, "early", "1")
	assert.False(t, ok2) // queued behind the current holder

	require.Nil(t, s.Release(l.ID, "late"))
	holders, _ := s.Holders(l.ID)
	assert.Equal(t, []string{"early"}, holders)
}

func TestBarrier_AcquiredOnceNDistinctArrive(t *testing.T) {
	s, _ := newTestStore()
	l := s.CreateBarrier(3)

	ok, _ := s.Acquire(l.ID, "a", "")
	assert.False(t, ok)
	ok, _ = s.Acquire(l.ID, "b", "")
	assert.False(t, ok)
	ok, _ = s.Acquire(l.ID, "c", "")
	assert.True(t, ok)

	// same round: all return true thereafter, including repeats
	ok, _ = s.Acquire(l.ID, "a", "")
	assert.True(t, ok)
}

func TestGate_BlocksUntilApprovedThenPromotesWaiters(t *testing.T) {
	s, _ := newTestStore()
	l := s.CreateGate(2, "approver1")

	ok, _ := s.Acquire(l.ID, "a", "")
	assert.False(t, ok)

	require.Nil(t, s.ApproveGate(l.ID, "approver1"))

	holders, _ := s.Holders(l.ID)
	assert.Equal(t, []string{"a"}, holders)

	ok, _ = s.Acquire(l.ID, "b", "")
	assert.True(t, ok)
}

func TestGate_RejectsApprovalFromWrongActor(t *testing.T) {
	s, _ := newTestStore()
	l := s.CreateGate(1, "approver1")
	err := s.ApproveGate(l.ID, "intruder")
	require.Error(t, err)
}

func TestTimeout_AutoReleasesOldestHolderPastDuration(t *testing.T) {
	s, c := newTestStore()
	l := s.CreateTimeout(1, 10*time.Millisecond)

	ok, _ := s.Acquire(l.ID, "a", "")
	assert.True(t, ok)

	ok, _ = s.Acquire(l.ID, "b", "")
	assert.False(t, ok)

	c.Advance(20 * time.Millisecond)
	ok, _ = s.Acquire(l.ID, "b", "")
	assert.True(t, ok)
}
