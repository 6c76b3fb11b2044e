// Package engine owns the one instance of every domain store the
// process runs (spec §9: "the process owns exactly one instance,
// constructed at start and passed via context" — no global mutable
// state), wires them into the macro-registration table (spec §6), and
// drives the background maintenance scheduler (SPEC_FULL.md §6).
//
// Grounded on the teacher's main.go construction order (config load ->
// logger -> collaborators -> tool registry -> scheduler), generalized
// from the teacher's single Emergent-client dependency to this
// engine's fourteen in-process stores.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/commitment"
	"github.com/emergent-company/epistemic-core/internal/config"
	"github.com/emergent-company/epistemic-core/internal/constitution"
	"github.com/emergent-company/epistemic-core/internal/cron"
	"github.com/emergent-company/epistemic-core/internal/evidence"
	"github.com/emergent-company/epistemic-core/internal/interlock"
	"github.com/emergent-company/epistemic-core/internal/knowledge"
	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/outcome"
	"github.com/emergent-company/epistemic-core/internal/project"
	"github.com/emergent-company/epistemic-core/internal/protocol"
	"github.com/emergent-company/epistemic-core/internal/resources"
	"github.com/emergent-company/epistemic-core/internal/sandbox"
	"github.com/emergent-company/epistemic-core/internal/skill"
	"github.com/emergent-company/epistemic-core/internal/tools"
	"github.com/emergent-company/epistemic-core/internal/truth"
	"github.com/emergent-company/epistemic-core/internal/verification"
	"github.com/emergent-company/epistemic-core/internal/workqueue"
)

// defaultSignalWeights seeds the scheduler's priority-signal weights
// (spec §4.G: "Priority = Σ weights · signals"). spec.md names the
// seven signals but leaves starting values to the implementation;
// positive weights on the six benefit signals (impact and
// contradictionPressure highest) with effort weighted negative (it is
// a cost, not a benefit) is the open-question decision recorded in
// DESIGN.md.
func defaultSignalWeights() map[string]float64 {
	return map[string]float64{
		"impact":                0.2,
		"risk":                  0.15,
		"uncertainty":           0.1,
		"novelty":               0.1,
		"contradictionPressure": 0.2,
		"governancePressure":    0.15,
		"effort":                -0.1,
	}
}

// Engine bundles one instance of every core store plus the macro
// table that dispatches to them and the cron scheduler that drives
// their background maintenance.
type Engine struct {
	Clock clock.Source
	Cfg   *config.Config

	KU           *knowledge.Store
	Evidence     *evidence.Store
	Verification *verification.Engine
	Outcome      *outcome.Store
	Scheduler    *workqueue.Queue
	Skill        *skill.Store
	Project      *project.Store
	Truth        *truth.Engine
	Protocol     *protocol.Store
	Interlock    *interlock.Store
	Commitment   *commitment.Store
	Constitution *constitution.Engine
	Sandbox      *sandbox.Store
	Resources    *resources.Store

	Macro *macro.Table
	cron  *cron.Scheduler
}

// New constructs every store from cfg, registers all macro operations,
// and builds (but does not start) the maintenance scheduler.
func New(cfg *config.Config, logger *slog.Logger, clk clock.Source) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	e := &Engine{
		Clock:        clk,
		Cfg:          cfg,
		KU:           knowledge.New(clk, cfg.Store.KUCeiling),
		Evidence:     evidence.New(clk, cfg.Store.EvidenceCeiling),
		Outcome:      outcome.New(clk, cfg.Store.OutcomeCeiling, defaultSignalWeights()),
		Skill:        skill.New(clk, cfg.Store.SkillCeiling),
		Project:      project.New(clk),
		Truth:        truth.New(clk),
		Protocol:     protocol.New(clk),
		Interlock:    interlock.New(clk),
		Commitment:   commitment.New(clk),
		Constitution: constitution.New(),
		Sandbox:      sandbox.New(clk),
		Resources:    resources.New(clk),
	}
	e.Verification = verification.New(clk, e.Evidence, cfg.Store.VerificationHistory)
	e.Scheduler = workqueue.New(clk, defaultSignalWeights(), e.Outcome)

	e.Macro = macro.New()
	tools.RegisterAll(e.Macro, tools.Deps{
		KU:           e.KU,
		Evidence:     e.Evidence,
		Verification: e.Verification,
		Outcome:      e.Outcome,
		Scheduler:    e.Scheduler,
		Skill:        e.Skill,
		Project:      e.Project,
		Truth:        e.Truth,
		Protocol:     e.Protocol,
		Interlock:    e.Interlock,
		Commitment:   e.Commitment,
		Constitution: e.Constitution,
		Sandbox:      e.Sandbox,
		Resources:    e.Resources,
	})

	e.cron = buildCron(e, cfg, logger)
	return e
}

// buildCron wires the four maintenance jobs (SPEC_FULL.md §6) at the
// intervals config.Cron specifies. A zero or negative interval leaves
// that job unscheduled (cron.Scheduler.AddJob's contract).
func buildCron(e *Engine, cfg *config.Config, logger *slog.Logger) *cron.Scheduler {
	s := cron.New(logger.With("component", "cron"), e.Clock)
	s.AddJob(&cron.WeightLearningJob{
		Outcomes:      e.Outcome,
		Queue:         e.Scheduler,
		Logger:        logger,
		MinSamples:    cfg.Scheduler.MinSamples,
		MaxAdjustment: cfg.Scheduler.MaxAdjustment,
		Lookback:      cfg.Scheduler.Lookback,
	}, time.Duration(cfg.Cron.WeightLearningMinutes)*time.Minute)
	s.AddJob(&cron.StagnationJob{
		Truth:     e.Truth,
		Logger:    logger,
		Threshold: time.Duration(cfg.Cron.StagnationMinutes) * time.Minute,
	}, time.Duration(cfg.Cron.StagnationMinutes)*time.Minute)
	s.AddJob(&cron.BreachJob{
		Commitments: e.Commitment,
		Logger:      logger,
	}, time.Duration(cfg.Cron.BreachMinutes)*time.Minute)
	s.AddJob(&cron.TriageJob{
		Resources: e.Resources,
		Logger:    logger,
	}, time.Duration(cfg.Cron.TriageMinutes)*time.Minute)
	return s
}

// Start launches the maintenance scheduler if cron is enabled in
// config. It is a no-op otherwise, matching spec §7's requirement that
// background learners never run unrequested side effects.
func (e *Engine) Start(ctx context.Context) {
	if e.Cfg.Cron.Enabled {
		e.cron.Start(ctx)
	}
}

// Stop halts the maintenance scheduler. Safe to call even if Start was
// never called or cron was disabled.
func (e *Engine) Stop() {
	e.cron.Stop()
}

// CronStats returns the maintenance jobs' run records, for operator
// introspection alongside outcome.Stats and the sandbox audit trails.
func (e *Engine) CronStats() []cron.JobStats {
	return e.cron.Stats()
}
