package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

func newTestStore() *Store {
	return New(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond), 0)
}

func TestAttach_RejectsInvalidType(t *testing.T) {
	s := newTestStore()
	_, err := s.Attach("ku_1", Type("bogus"), DirSupports, 0.5, nil, "src")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidEvidenceType, err.Code)
}

func TestAttach_RejectsInvalidDirection(t *testing.T) {
	s := newTestStore()
	_, err := s.Attach("ku_1", TypeCitation, Direction("sideways"), 0.5, nil, "src")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidDirection, err.Code)
}

func TestDeriveStatus_Unverified(t *testing.T) {
	assert.Equal(t, StatusUnverified, DeriveStatus(nil, "", false))
}

func TestDeriveStatus_Believed(t *testing.T) {
	ev := []Record{{Direction: DirSupports, Strength: 0.6, Type: TypeSourceLink}}
	assert.Equal(t, StatusBelieved, DeriveStatus(ev, "", false))
}

func TestDeriveStatus_TestedThenVerified(t *testing.T) {
	tested := []Record{{Direction: DirSupports, Strength: 0.5, Type: TypeTestResult, Data: map[string]any{"result": "pass"}}}
	assert.Equal(t, StatusTested, DeriveStatus(tested, "", false))

	verified := append(tested, Record{Direction: DirSupports, Strength: 0.3, Type: TypeCrossReference})
	assert.Equal(t, StatusVerified, DeriveStatus(verified, "", false))
}

func TestDeriveStatus_Disputed(t *testing.T) {
	ev := []Record{
		{Direction: DirSupports, Strength: 0.5, Type: TypeSourceLink},
		{Direction: DirRefutes, Strength: 0.4, Type: TypeSourceLink},
	}
	assert.Equal(t, StatusDisputed, DeriveStatus(ev, "", false))
}

func TestDeriveStatus_NotDisputedWhenFarApart(t *testing.T) {
	ev := []Record{
		{Direction: DirSupports, Strength: 0.9, Type: TypeSourceLink},
		{Direction: DirRefutes, Strength: 0.1, Type: TypeSourceLink},
	}
	assert.Equal(t, StatusBelieved, DeriveStatus(ev, "", false))
}

func TestDeriveStatus_StickyWinsOverEvidence(t *testing.T) {
	ev := []Record{{Direction: DirSupports, Strength: 0.9, Type: TypeSourceLink}}
	assert.Equal(t, StatusDeprecated, DeriveStatus(ev, StatusDeprecated, true))
}

func TestDeriveStatus_IdempotentUnderReplay(t *testing.T) {
	ev := []Record{
		{Direction: DirSupports, Strength: 0.2, Type: TypeTestResult, Data: map[string]any{"result": "pass"}},
		{Direction: DirRefutes, Strength: 0.1, Type: TypeSourceLink},
	}
	first := DeriveStatus(ev, "", false)
	second := DeriveStatus(append([]Record(nil), ev...), "", false)
	assert.Equal(t, first, second)
}

func TestStore_DeprecateIsSticky(t *testing.T) {
	s := newTestStore()
	_, _ = s.Attach("ku_1", TypeSourceLink, DirSupports, 0.9, nil, "src")
	s.Deprecate("ku_1", "superseded", "ku_2")
	assert.Equal(t, StatusDeprecated, s.Status("ku_1"))
	assert.Equal(t, 1, s.MaintenanceHistoryLen("ku_1"))
}

func TestEvidenceFor_OnlyReturnsOwnTarget(t *testing.T) {
	s := newTestStore()
	_, _ = s.Attach("ku_1", TypeSourceLink, DirSupports, 0.5, nil, "src")
	_, _ = s.Attach("ku_2", TypeSourceLink, DirSupports, 0.5, nil, "src")
	assert.Len(t, s.EvidenceFor("ku_1"), 1)
}
