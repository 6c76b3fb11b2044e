package tools

import (
	"context"
	"time"

	"github.com/emergent-company/epistemic-core/internal/knowledge"
	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/verification"
)

func parseChecks(raw []any) []verification.Check {
	out := make([]verification.Check, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, verification.Check{
			Name:     str(m, "name"),
			Type:     verification.CheckType(str(m, "type")),
			Config:   parseEnv(nestedMap(m, "config")),
			Severity: verification.Severity(str(m, "severity")),
			Enabled:  boolean(m, "enabled"),
		})
	}
	return out
}

// parseEnv leaves Env.Now zero; the engine fills it from its own clock
// so check results stay deterministic under an injected clock.
func parseEnv(m map[string]any) verification.Env {
	if m == nil {
		return verification.Env{}
	}
	rangeFields := make(map[string][2]float64)
	for k, v := range nestedMap(m, "rangeFields") {
		if pair, ok := v.([]any); ok && len(pair) == 2 {
			lo, _ := pair[0].(float64)
			hi, _ := pair[1].(float64)
			rangeFields[k] = [2]float64{lo, hi}
		}
	}
	return verification.Env{
		RequiredFields: strSlice(m, "requiredFields"),
		RangeFields:    rangeFields,
		ExpectedFields: strSlice(m, "expectedFields"),
		MinCitations:   integer(m, "minCitations"),
		MaxAge:         time.Duration(integer(m, "maxAgeMs")) * time.Millisecond,
		MinCrossRefs:   integer(m, "minCrossRefs"),
	}
}

func runToMap(r verification.Run) map[string]any {
	outcomes := make([]map[string]any, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		outcomes = append(outcomes, map[string]any{
			"checkName": o.CheckName, "type": string(o.Type), "severity": string(o.Severity),
			"result": string(o.Result.Result), "message": o.Result.Message,
		})
	}
	return map[string]any{
		"id": r.ID, "pipelineId": r.PipelineID, "kuId": r.KUID, "result": string(r.Result),
		"outcomes": outcomes, "evidenceId": r.EvidenceID,
	}
}

func registerVerification(tbl *macro.Table, e *verification.Engine, kus *knowledge.Store) {
	withEdges := func(env verification.Env) verification.Env {
		env.IncomingEdges = func(kuID string, edgeType knowledge.EdgeType) int {
			return len(kus.EdgesOfType(edgeType, kuID))
		}
		return env
	}

	tbl.Register("verification", "createPipeline", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		raw, _ := in["checks"].([]any)
		p := e.CreatePipeline(str(in, "name"), str(in, "domain"), parseChecks(raw))
		return macro.Ok(map[string]any{"id": p.ID, "name": p.Name, "domain": p.Domain})
	})

	tbl.Register("verification", "listPipelines", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		ps := e.ListPipelines()
		out := make([]map[string]any, 0, len(ps))
		for _, p := range ps {
			out = append(out, map[string]any{"id": p.ID, "name": p.Name, "domain": p.Domain})
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("verification", "runPipeline", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		ku, kerr := kus.Get(str(in, "kuId"))
		if kerr != nil {
			return macro.Err(string(kerr.Code))
		}
		run, err := e.RunPipeline(str(in, "pipelineId"), ku, withEdges(parseEnv(nestedMap(in, "env"))))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(runToMap(run))
	})

	tbl.Register("verification", "verifyKU", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		ku, kerr := kus.Get(str(in, "kuId"))
		if kerr != nil {
			return macro.Err(string(kerr.Code))
		}
		runs := e.VerifyKU(ku, withEdges(parseEnv(nestedMap(in, "env"))))
		out := make([]map[string]any, 0, len(runs))
		for _, r := range runs {
			out = append(out, runToMap(r))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("verification", "history", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		runs := e.History(str(in, "kuId"))
		out := make([]map[string]any, 0, len(runs))
		for _, r := range runs {
			out = append(out, runToMap(r))
		}
		return macro.Ok(map[string]any{"items": out})
	})
}
