package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/evidence"
	"github.com/emergent-company/epistemic-core/internal/macro"
)

func evidenceToMap(r evidence.Record) map[string]any {
	return map[string]any{
		"id": r.ID, "target": r.Target, "type": string(r.Type), "direction": string(r.Direction),
		"strength": r.Strength, "data": r.Data, "source": r.Source,
	}
}

func registerEvidence(tbl *macro.Table, s *evidence.Store) {
	tbl.Register("evidence", "attach", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		rec, err := s.Attach(str(in, "target"), evidence.Type(str(in, "type")), evidence.Direction(str(in, "direction")),
			num(in, "strength"), nestedMap(in, "data"), str(in, "source"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(evidenceToMap(rec))
	})

	tbl.Register("evidence", "forKU", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		recs := s.EvidenceFor(str(in, "kuId"))
		out := make([]map[string]any, 0, len(recs))
		for _, r := range recs {
			out = append(out, evidenceToMap(r))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("evidence", "status", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		return macro.Ok(map[string]any{"status": string(s.Status(str(in, "kuId")))})
	})

	tbl.Register("evidence", "deprecate", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		s.Deprecate(str(in, "kuId"), str(in, "reason"), str(in, "successorId"))
		return macro.Ok(nil)
	})

	tbl.Register("evidence", "retract", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		s.Retract(str(in, "kuId"), str(in, "reason"), str(in, "evidenceId"))
		return macro.Ok(nil)
	})
}
