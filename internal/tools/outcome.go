package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/outcome"
)

func recordToMap(r outcome.Record) map[string]any {
	return map[string]any{
		"id": r.ID, "workItemId": r.WorkItemID, "allocationId": r.AllocationID, "emergentId": r.EmergentID,
		"role": r.EmergentRole, "workType": r.WorkType, "signal": string(r.Signal), "category": string(r.Category),
	}
}

func registerOutcome(tbl *macro.Table, s *outcome.Store) {
	tbl.Register("outcome", "record", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		rec := s.Record(str(in, "workItemId"), str(in, "allocationId"), str(in, "emergentId"), str(in, "role"),
			str(in, "workType"), outcome.Signal(str(in, "signal")), floatMap(in, "signalValues"))
		return macro.Ok(recordToMap(rec))
	})

	tbl.Register("outcome", "forWorkItem", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		recs := s.ForWorkItem(str(in, "workItemId"))
		out := make([]map[string]any, 0, len(recs))
		for _, r := range recs {
			out = append(out, recordToMap(r))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("outcome", "forActor", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		recs := s.ForActor(str(in, "emergentId"))
		out := make([]map[string]any, 0, len(recs))
		for _, r := range recs {
			out = append(out, recordToMap(r))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("outcome", "stats", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		st := s.Stats()
		return macro.Ok(map[string]any{
			"positive": st.PositiveCount, "negative": st.NegativeCount, "neutral": st.NeutralCount,
			"total": st.Total, "signalCounts": st.SignalCounts,
		})
	})

	tbl.Register("outcome", "runLearning", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		update, err := s.RunWeightLearning(integer(in, "minSamples"), num(in, "maxAdjustment"), integer(in, "lookback"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"old": update.Old, "new": update.New, "samples": update.Samples})
	})

	tbl.Register("outcome", "recommendations", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		recs := s.GetAssignmentRecommendations(integer(in, "minSamples"))
		out := make(map[string]any, len(recs))
		for workType, roles := range recs {
			items := make([]map[string]any, 0, len(roles))
			for _, r := range roles {
				items = append(items, map[string]any{"role": r.Role, "rate": r.Rate, "total": r.Total, "confidence": string(r.Confidence)})
			}
			out[workType] = items
		}
		return macro.Ok(map[string]any{"recommendations": out})
	})
}
