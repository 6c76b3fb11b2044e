package resources

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

func TestReserveThenConsume_DrainsReservationFirst(t *testing.T) {
	s, _ := newTestStore()
	s.CreateBudget(TypeCompute, 100)

	require.Nil(t, s.Reserve(TypeCompute, 40))
	require.Nil(t, s.Consume(TypeCompute, 40))

	p, _ := s.Get(TypeCompute)
	assert.Equal(t, 0.0, p.Reserved)
	assert.Equal(t, 40.0, p.Used)
}

func TestReserve_RejectsOverAvailable(t *testing.T) {
	s, _ := newTestStore()
	s.CreateBudget(TypeCompute, 10)
	err := s.Reserve(TypeCompute, 11)
	require.Error(t, err)
	assert.Equal(t, apperr.BudgetExceeded, err.Code)
}

func TestRelease_ReturnsUsedCapacity(t *testing.T) {
	s, _ := newTestStore()
	s.CreateBudget(TypeMemory, 10)
	require.Nil(t, s.Consume(TypeMemory, 6))
	require.Nil(t, s.Release(TypeMemory, 4))

	p, _ := s.Get(TypeMemory)
	assert.Equal(t, 2.0, p.Used)
	assert.Equal(t, 8.0, p.available())
}

func TestAlerts_TriggersOnUtilizationOver80Percent(t *testing.T) {
	s, _ := newTestStore()
	s.CreateBudget(TypeStorage, 100)
	require.Nil(t, s.Consume(TypeStorage, 85))

	alerts := s.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, TypeStorage, alerts[0].Type)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
}

func TestAlerts_SeverityEscalatesWithUtilization(t *testing.T) {
	s, _ := newTestStore()
	s.CreateBudget(TypeCompute, 100)
	require.Nil(t, s.Consume(TypeCompute, 96))

	alerts := s.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestAlerts_NoAlertBelowThresholds(t *testing.T) {
	s, _ := newTestStore()
	s.CreateBudget(TypeAttention, 100)
	require.Nil(t, s.Consume(TypeAttention, 10))

	assert.Empty(t, s.Alerts())
}

func TestAlerts_TriggersOnProjectedExhaustionEvenBelow80Percent(t *testing.T) {
	s, c := newTestStore()
	s.CreateBudget(TypeBandwidth, 1000)
	// consuming half in one burst implies, at that rate, exhaustion of the
	// remaining half in ~60s -- well under the 300s threshold, even though
	// utilization itself (0.5) stays under the 0.8 trigger
	require.Nil(t, s.Consume(TypeBandwidth, 500))
	c.Advance(time.Second)

	alerts := s.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, TypeBandwidth, alerts[0].Type)
}

func TestPerformTriage_KeepsCriticalFirstAndSuspendsRest(t *testing.T) {
	ops := []Operation{
		{ID: "background-job", QoS: QoSBackground, MinimalAmount: 5},
		{ID: "critical-alert", QoS: QoSCritical, MinimalAmount: 10},
		{ID: "normal-task", QoS: QoSNormal, MinimalAmount: 10},
	}
	decisions := PerformTriage(20, ops)

	byID := make(map[string]TriageDecision)
	for _, d := range decisions {
		byID[d.ID] = d
	}
	assert.True(t, byID["critical-alert"].Kept)
	assert.True(t, byID["normal-task"].Kept)
	assert.True(t, byID["background-job"].Suspended)
}
