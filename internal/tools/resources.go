package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/resources"
)

func poolToMap(p *resources.Pool) map[string]any {
	return map[string]any{
		"type": string(p.Type), "total": p.Total, "reserved": p.Reserved, "used": p.Used,
		"utilization": p.Utilization(),
	}
}

func parseOperations(raw []any) []resources.Operation {
	out := make([]resources.Operation, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, resources.Operation{
			ID: str(m, "id"), QoS: resources.QoS(integer(m, "qos")),
			RequiredAmount: num(m, "requiredAmount"), MinimalAmount: num(m, "minimalAmount"),
			Type: resources.Type(str(m, "resourceType")),
		})
	}
	return out
}

func registerResources(tbl *macro.Table, s *resources.Store) {
	tbl.Register("resources", "createBudget", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		p := s.CreateBudget(resources.Type(str(in, "resourceType")), num(in, "total"))
		return macro.Ok(poolToMap(p))
	})

	tbl.Register("resources", "reserve", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Reserve(resources.Type(str(in, "resourceType")), num(in, "amount")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("resources", "consume", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Consume(resources.Type(str(in, "resourceType")), num(in, "amount")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("resources", "release", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Release(resources.Type(str(in, "resourceType")), num(in, "amount")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("resources", "alerts", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		alerts := s.Alerts()
		out := make([]map[string]any, 0, len(alerts))
		for _, a := range alerts {
			out = append(out, map[string]any{
				"type": string(a.Type), "severity": string(a.Severity), "utilization": a.Utilization,
				"projectedSecondsToExhaust": a.ProjectedSecondsToExhaust,
			})
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("resources", "triage", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		raw, _ := in["operations"].([]any)
		decisions := resources.PerformTriage(num(in, "available"), parseOperations(raw))
		out := make([]map[string]any, 0, len(decisions))
		for _, d := range decisions {
			out = append(out, map[string]any{"id": d.ID, "kept": d.Kept, "resolution": d.Resolution, "suspended": d.Suspended})
		}
		return macro.Ok(map[string]any{"items": out})
	})
}
