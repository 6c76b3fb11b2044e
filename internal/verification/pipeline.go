package verification

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/evidence"
	"github.com/emergent-company/epistemic-core/internal/knowledge"
	"github.com/emergent-company/epistemic-core/internal/store"
)

// Check is one configured check within a Pipeline.
type Check struct {
	Name     string
	Type     CheckType
	Config   Env
	Severity Severity
	Enabled  bool
}

// Pipeline is a named, domain-filtered, ordered list of checks.
type Pipeline struct {
	ID         string
	Name       string
	Domain     string // empty matches every domain
	Checks     []Check
}

func (p Pipeline) matches(domain string) bool {
	return p.Domain == "" || p.Domain == domain
}

// CheckOutcome records one executed check's result within a Run.
type CheckOutcome struct {
	CheckName string
	Type      CheckType
	Severity  Severity
	Result    CheckResult
}

// RunResult is the aggregate outcome of running a pipeline against a KU.
type RunResult string

const (
	RunPass    RunResult = "pass"
	RunFail    RunResult = "fail"
	RunWarning RunResult = "warning"
)

// Run is one execution of a pipeline against a KU, retained in the
// engine's append-only run history.
type Run struct {
	ID         string
	PipelineID string
	KUID       string
	Result     RunResult
	Outcomes   []CheckOutcome
	EvidenceID string
	At         time.Time
}

// RecordID satisfies store.Identified.
func (r Run) RecordID() string { return r.ID }

const defaultRunHistoryCeiling = 5_000

// Engine holds pipeline definitions and the run history.
type Engine struct {
	mu        sync.Mutex
	clock     clock.Source
	pipelines map[string]Pipeline
	order     []string
	runs      *store.Bounded[Run]
	evidence  *evidence.Store
}

// New creates a verification Engine bound to an evidence store, so
// every run can attach its resulting test_result evidence.
func New(clk clock.Source, ev *evidence.Store, runHistoryCeiling int) *Engine {
	if runHistoryCeiling <= 0 {
		runHistoryCeiling = defaultRunHistoryCeiling
	}
	return &Engine{
		clock:     clk,
		pipelines: make(map[string]Pipeline),
		runs: store.New[Run](runHistoryCeiling,
			store.Index[Run]{Name: "ku", Extract: func(r Run) (string, bool) { return r.KUID, true }},
		),
		evidence: ev,
	}
}

// CreatePipeline registers a new pipeline definition.
func (e *Engine) CreatePipeline(name, domain string, checks []Check) Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := Pipeline{ID: e.clock.NewID("pl"), Name: name, Domain: domain, Checks: checks}
	e.pipelines[p.ID] = p
	e.order = append(e.order, p.ID)
	return p
}

// ListPipelines returns every registered pipeline in registration order.
func (e *Engine) ListPipelines() []Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Pipeline, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.pipelines[id])
	}
	return out
}

// RunPipeline executes one named pipeline against ku and attaches
// resulting evidence. See runLocked for the algorithm.
func (e *Engine) RunPipeline(pipelineID string, ku knowledge.KU, env Env) (Run, *apperr.Error) {
	e.mu.Lock()
	p, ok := e.pipelines[pipelineID]
	e.mu.Unlock()
	if !ok {
		return Run{}, apperr.NotFoundf("pipeline", pipelineID)
	}
	return e.runLocked(p, ku, env), nil
}

// VerifyKU runs every pipeline whose domain filter matches ku.Domain.
func (e *Engine) VerifyKU(ku knowledge.KU, env Env) []Run {
	e.mu.Lock()
	var matching []Pipeline
	for _, id := range e.order {
		p := e.pipelines[id]
		if p.matches(ku.Domain) {
			matching = append(matching, p)
		}
	}
	e.mu.Unlock()

	out := make([]Run, 0, len(matching))
	for _, p := range matching {
		out = append(out, e.runLocked(p, ku, env))
	}
	return out
}

// runLocked executes the checks of p in order, computes the aggregate
// run result, attaches a test_result evidence record, and appends to
// run history. Run result = fail if any fail, warning if any warning
// but no fail, pass otherwise.
func (e *Engine) runLocked(p Pipeline, ku knowledge.KU, env Env) Run {
	if env.Now.IsZero() {
		env.Now = e.clock.Now()
	}

	var outcomes []CheckOutcome
	total, passCount := 0, 0
	anyFail, anyWarning := false, false

	for _, c := range p.Checks {
		if !c.Enabled {
			continue
		}
		total++
		fn, ok := Registry[c.Type]
		var result CheckResult
		if !ok {
			result = CheckResult{Result: ResultError, Message: "unknown check type"}
		} else {
			// Per-check config carries the check's own settings; the
			// run-level env supplies the ambient instant and edge index.
			cfg := c.Config
			cfg.Now = env.Now
			if cfg.IncomingEdges == nil {
				cfg.IncomingEdges = env.IncomingEdges
			}
			result = fn(ku, cfg)
		}
		switch result.Result {
		case ResultPass:
			passCount++
		case ResultFail:
			anyFail = true
		case ResultWarning:
			anyWarning = true
		case ResultError:
			anyFail = true
		}
		outcomes = append(outcomes, CheckOutcome{CheckName: c.Name, Type: c.Type, Severity: c.Severity, Result: result})
	}

	var result RunResult
	switch {
	case anyFail:
		result = RunFail
	case anyWarning:
		result = RunWarning
	default:
		result = RunPass
	}

	strength := 0.0
	if total > 0 {
		strength = float64(passCount) / float64(total)
	}
	direction := evidence.DirNeutral
	switch result {
	case RunPass:
		direction = evidence.DirSupports
	case RunFail:
		direction = evidence.DirRefutes
	}

	var evidenceID string
	if e.evidence != nil {
		rec, err := e.evidence.Attach(ku.ID, evidence.TypeTestResult, direction, strength, map[string]any{
			"result":      string(result),
			"pipeline_id": p.ID,
			"pass_count":  passCount,
			"total":       total,
		}, "verification:"+p.Name)
		if err == nil {
			evidenceID = rec.ID
		}
	}

	run := Run{
		ID:         e.clock.NewID("vr"),
		PipelineID: p.ID,
		KUID:       ku.ID,
		Result:     result,
		Outcomes:   outcomes,
		EvidenceID: evidenceID,
		At:         env.Now,
	}

	e.mu.Lock()
	e.runs.Put(run)
	e.mu.Unlock()

	return run
}

// History returns every run recorded for kuID, oldest first. Because
// the run store trims on a FIFO basis and purges an evicted run from its
// index at eviction (internal/store's contract), this never returns a
// stale id.
func (e *Engine) History(kuID string) []Run {
	ids := e.runs.ByIndex("ku", kuID)
	sort.Strings(ids)
	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		if r, ok := e.runs.Get(id); ok {
			out = append(out, r)
		}
	}
	return out
}
