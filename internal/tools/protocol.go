package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/protocol"
)

func protocolToMap(p *protocol.Protocol) map[string]any {
	return map[string]any{
		"id": p.ID, "mode": p.Mode, "initiator": p.Initiator, "status": string(p.Status),
		"participants": p.Participants, "vetoedBy": p.VetoedBy, "vetoReason": p.VetoReason,
	}
}

func parseEvidenceItems(raw []any) []protocol.EvidenceItem {
	out := make([]protocol.EvidenceItem, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, protocol.EvidenceItem{
			BaseConfidence: num(m, "baseConfidence"),
			Replicated:     boolean(m, "replicated"),
			At:             timeFrom(m, "at"),
		})
	}
	return out
}

func parseEffects(raw []any) []protocol.Effect {
	out := make([]protocol.Effect, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, protocol.Effect{Target: str(m, "target"), Direction: str(m, "direction")})
	}
	return out
}

func registerProtocol(tbl *macro.Table, s *protocol.Store) {
	tbl.Register("protocol", "create", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		p := s.Create(str(in, "mode"), str(in, "initiator"))
		return macro.Ok(protocolToMap(p))
	})

	tbl.Register("protocol", "join", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Join(str(in, "protocolId"), str(in, "participant"), str(in, "declaredIntent")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("protocol", "declareIntent", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		align, err := s.DeclareIntent(str(in, "protocolId"), str(in, "participant"), str(in, "intent"), strSlice(in, "evidenceBundle"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"mean": align.Mean, "aligned": align.Aligned})
	})

	tbl.Register("protocol", "submitPlan", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		plan := protocol.Plan{
			Participant: str(in, "participant"),
			Resources:   strSlice(in, "resources"),
			Inputs:      strSlice(in, "inputs"),
			Outputs:     strSlice(in, "outputs"),
		}
		if raw, ok := in["effects"].([]any); ok {
			plan.Effects = parseEffects(raw)
		}
		if err := s.SubmitPlan(str(in, "protocolId"), plan); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("protocol", "checkCompatibility", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		conflicts, err := s.CheckPlanCompatibility(str(in, "protocolId"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		out := make([]map[string]any, 0, len(conflicts))
		for _, c := range conflicts {
			out = append(out, map[string]any{
				"kind": string(c.Kind), "a": c.A, "b": c.B, "direction": c.Direction, "detail": c.Detail,
			})
		}
		return macro.Ok(map[string]any{"conflicts": out, "compatible": len(out) == 0})
	})

	tbl.Register("protocol", "startNegotiation", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		n, err := s.StartNegotiation(str(in, "protocolId"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"id": n.ID})
	})

	tbl.Register("protocol", "submitPosition", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		pos := protocol.Position{Participant: str(in, "participant"), Value: str(in, "value")}
		if raw, ok := in["evidence"].([]any); ok {
			pos.Evidence = parseEvidenceItems(raw)
		}
		if err := s.SubmitPosition(str(in, "protocolId"), str(in, "negotiationId"), pos); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("protocol", "resolve", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		n, err := s.ResolveNegotiation(str(in, "protocolId"), str(in, "negotiationId"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"id": n.ID, "winner": n.Winner, "confidence": n.Confidence, "resolved": n.Resolved})
	})

	tbl.Register("protocol", "veto", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Veto(str(in, "protocolId"), str(in, "participant"), str(in, "reason")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("protocol", "pause", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Pause(str(in, "protocolId")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("protocol", "resume", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Resume(str(in, "protocolId")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})
}
