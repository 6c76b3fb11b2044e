package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/config"
	"github.com/emergent-company/epistemic-core/internal/macro"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)
	return New(cfg, nil, clk)
}

func TestNew_RegistersEveryDomain(t *testing.T) {
	e := newTestEngine(t)
	domains := e.Macro.Domains()
	for _, want := range []string{
		"ku", "evidence", "verification", "outcome", "scheduler", "skill",
		"project", "truth", "protocol", "interlock", "commitment",
		"constitution", "sandbox", "resources",
	} {
		assert.Contains(t, domains, want)
	}
}

func TestEngine_KUCreateRoundTripsThroughMacroTable(t *testing.T) {
	e := newTestEngine(t)
	res := e.Macro.Invoke(context.Background(), "ku", "create", macro.Context{Actor: "tester"}, map[string]any{
		"title": "t", "body": "b", "tier": "regular", "domain": "d",
		"resonance": 0.5, "coherence": 0.5, "stability": 0.5,
	})
	require.True(t, res.OK)
	assert.NotEmpty(t, res.Data["id"])
}

func TestEngine_ConstitutionSeededAndBlocksImmutableScenario(t *testing.T) {
	e := newTestEngine(t)
	res := e.Macro.Invoke(context.Background(), "constitution", "checkRules", macro.Context{}, map[string]any{
		"action":    "commit",
		"actorType": "emergent",
		"tags":      []any{"emergent", "governance", "decision"},
	})
	require.True(t, res.OK)
	assert.Equal(t, false, res.Data["allowed"])
}

func TestEngine_RegistersFourMaintenanceJobs(t *testing.T) {
	e := newTestEngine(t)
	stats := e.CronStats()
	require.Len(t, stats, 4)
	names := make([]string, 0, len(stats))
	for _, st := range stats {
		names = append(names, st.Name)
	}
	assert.ElementsMatch(t, []string{
		"weight_learning", "stagnation_detection", "breach_detection", "resource_pressure_check",
	}, names)
}

func TestEngine_StartStopWithCronDisabledIsNoop(t *testing.T) {
	e := newTestEngine(t)
	e.Cfg.Cron.Enabled = false
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	e.Stop()
	cancel()
}
