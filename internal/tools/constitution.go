package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/constitution"
	"github.com/emergent-company/epistemic-core/internal/macro"
)

func ruleToMap(r constitution.Rule) map[string]any {
	return map[string]any{
		"id": r.ID, "tier": string(r.Tier), "statement": r.Statement, "description": r.Description,
		"category": r.Category, "tags": r.Tags, "active": r.Active,
	}
}

func registerConstitution(tbl *macro.Table, e *constitution.Engine) {
	tbl.Register("constitution", "addRule", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		r, err := e.AddRule(constitution.Tier(str(in, "tier")), str(in, "statement"), str(in, "description"), str(in, "category"), strSlice(in, "tags"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(ruleToMap(r))
	})

	tbl.Register("constitution", "amendRule", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		votes := constitution.Votes{For: integer(nestedMap(in, "votes"), "for"), Against: integer(nestedMap(in, "votes"), "against")}
		res, err := e.AmendRule(str(in, "id"), str(in, "newStatement"), votes, str(in, "reason"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"ok": res.OK, "amended": res.Amended})
	})

	tbl.Register("constitution", "deactivateRule", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := e.DeactivateRule(str(in, "id")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("constitution", "checkRules", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		res := e.CheckRules(constitution.Action{Action: str(in, "action"), ActorType: str(in, "actorType"), Tags: strSlice(in, "tags")})
		violations := make([]map[string]any, 0, len(res.Violations))
		for _, v := range res.Violations {
			violations = append(violations, map[string]any{"ruleId": v.RuleID, "tier": string(v.Tier), "statement": v.Statement})
		}
		return macro.Ok(map[string]any{"allowed": res.Allowed, "violations": violations})
	})

	tbl.Register("constitution", "listRules", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		rules := e.List()
		out := make([]map[string]any, 0, len(rules))
		for _, r := range rules {
			out = append(out, ruleToMap(r))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("constitution", "history", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		hist := e.History(str(in, "ruleId"))
		out := make([]map[string]any, 0, len(hist))
		for _, h := range hist {
			out = append(out, map[string]any{"ruleId": h.RuleID, "event": h.Event, "detail": h.Detail})
		}
		return macro.Ok(map[string]any{"items": out})
	})
}
