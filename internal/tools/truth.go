package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/truth"
)

func transitionToMap(t truth.Transition) map[string]any {
	return map[string]any{
		"from": string(t.From), "to": string(t.To), "reason": t.Reason, "actor": t.Actor, "at": t.At,
	}
}

func registerTruth(tbl *macro.Table, e *truth.Engine) {
	tbl.Register("truth", "birth", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		st := e.State(str(in, "kuId"))
		return macro.Ok(map[string]any{"state": string(st)})
	})

	tbl.Register("truth", "transition", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		st, err := e.Transition(str(in, "kuId"), truth.State(str(in, "to")), str(in, "reason"), str(in, "actor"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"state": string(st)})
	})

	tbl.Register("truth", "detectStagnation", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		thresholdMs := int64(num(in, "thresholdMs"))
		stagnant := e.DetectStagnation(msToDuration(thresholdMs))
		out := make([]map[string]any, 0, len(stagnant))
		for _, s := range stagnant {
			out = append(out, map[string]any{"kuId": s.KUID, "ageMs": s.Age.Milliseconds(), "score": s.Score})
		}
		return macro.Ok(map[string]any{"items": out})
	})
}
