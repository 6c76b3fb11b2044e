package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/commitment"
	"github.com/emergent-company/epistemic-core/internal/outcome"
	"github.com/emergent-company/epistemic-core/internal/resources"
	"github.com/emergent-company/epistemic-core/internal/truth"
	"github.com/emergent-company/epistemic-core/internal/workqueue"
)

// WeightLearningJob periodically runs the outcome learner (spec
// §4.F) and re-scores the scheduler's queue with the adjusted
// weights, so the feedback loop runs without an external caller.
type WeightLearningJob struct {
	Outcomes      *outcome.Store
	Queue         *workqueue.Queue
	Logger        *slog.Logger
	MinSamples    int
	MaxAdjustment float64
	Lookback      int
}

func (j *WeightLearningJob) Name() string { return "weight_learning" }

func (j *WeightLearningJob) Run(ctx context.Context) error {
	update, appErr := j.Outcomes.RunWeightLearning(j.MinSamples, j.MaxAdjustment, j.Lookback)
	if appErr != nil {
		if appErr.Code == apperr.InsufficientData {
			j.Logger.Debug("weight learning skipped", "reason", appErr.Code)
			return nil
		}
		return appErr
	}
	j.Queue.Rescore(update.New)
	j.Logger.Info("weight learning applied", "samples", update.Samples)
	return nil
}

// StagnationJob periodically flags non-dead knowledge units that
// haven't seen lifecycle activity in a while (spec §4.J
// detectStagnation). It only logs: acting on stagnant KUs is an
// external governance decision, out of scope for the core.
type StagnationJob struct {
	Truth     *truth.Engine
	Logger    *slog.Logger
	Threshold time.Duration
}

func (j *StagnationJob) Name() string { return "stagnation_detection" }

func (j *StagnationJob) Run(ctx context.Context) error {
	flags := j.Truth.DetectStagnation(j.Threshold)
	if len(flags) > 0 {
		j.Logger.Warn("stagnant knowledge units detected", "count", len(flags))
	}
	return nil
}

// BreachJob periodically scans commitments for missed deadlines
// (spec §4.L detectBreaches), transitioning each to breached.
type BreachJob struct {
	Commitments *commitment.Store
	Logger      *slog.Logger
}

func (j *BreachJob) Name() string { return "breach_detection" }

func (j *BreachJob) Run(ctx context.Context) error {
	breached := j.Commitments.DetectBreaches()
	if len(breached) > 0 {
		j.Logger.Warn("commitments breached", "count", len(breached))
	}
	return nil
}

// TriageJob periodically checks environmental resource pools for
// exhaustion pressure (spec §4.N) and logs any alert at or above
// warning severity. Triage itself (suspending operations) is invoked
// by callers with a live operation set; this job only surfaces the
// pressure signal.
type TriageJob struct {
	Resources *resources.Store
	Logger    *slog.Logger
}

func (j *TriageJob) Name() string { return "resource_pressure_check" }

func (j *TriageJob) Run(ctx context.Context) error {
	alerts := j.Resources.Alerts()
	for _, a := range alerts {
		j.Logger.Warn("resource pressure alert",
			"resource", a.Type, "severity", a.Severity, "utilization", a.Utilization)
	}
	return nil
}
