package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/skill"
)

func skillToMap(sk skill.Skill) map[string]any {
	return map[string]any{
		"id": sk.ID, "kind": string(sk.Kind), "domain": sk.Domain, "role": sk.Role, "workType": sk.WorkType,
		"steps": sk.Steps, "maturity": string(sk.Maturity), "appliedCount": sk.AppliedCount,
		"successCount": sk.SuccessCount, "deprecatedReason": sk.DeprecatedReason,
	}
}

func registerSkill(tbl *macro.Table, s *skill.Store) {
	create := func(kind skill.Kind) macro.Handler {
		return func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
			sk := s.Create(kind, str(in, "domain"), str(in, "role"), str(in, "workType"), strSlice(in, "steps"), str(in, "sequenceTag"))
			return macro.Ok(skillToMap(sk))
		}
	}
	tbl.Register("skill", "createTemplate", true, create(skill.KindReasoningTemplate))
	tbl.Register("skill", "createPlaybook", true, create(skill.KindMacroPlaybook))
	tbl.Register("skill", "createBundle", true, create(skill.KindTestBundle))

	tbl.Register("skill", "apply", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		sk, err := s.RecordApplication(str(in, "id"), boolean(in, "success"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(skillToMap(sk))
	})

	tbl.Register("skill", "match", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		matches := s.FindMatchingSkills(skill.Context{Domain: str(in, "domain"), Role: str(in, "role"), WorkType: str(in, "workType")})
		out := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			entry := skillToMap(m.Skill)
			entry["score"] = m.Score
			entry["successRate"] = m.SuccessRate
			out = append(out, entry)
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("skill", "distill", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		raw, _ := in["sequences"].([]any)
		seqs := make([]skill.Sequence, 0, len(raw))
		for _, v := range raw {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			seqs = append(seqs, skill.Sequence{
				Tag: str(m, "tag"), Steps: strSlice(m, "steps"), Domain: str(m, "domain"),
				Role: str(m, "role"), Occurrences: integer(m, "occurrences"),
			})
		}
		created := s.Distill(seqs, integer(in, "minOccurrences"))
		out := make([]map[string]any, 0, len(created))
		for _, sk := range created {
			out = append(out, skillToMap(sk))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("skill", "deprecate", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		sk, err := s.Deprecate(str(in, "id"), str(in, "reason"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(skillToMap(sk))
	})
}
