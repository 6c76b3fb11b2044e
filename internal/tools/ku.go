package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/knowledge"
	"github.com/emergent-company/epistemic-core/internal/macro"
)

func edgeToMap(e knowledge.Edge) map[string]any {
	return map[string]any{"target": e.Target, "type": string(e.Type)}
}

func kuToMap(k knowledge.KU) map[string]any {
	edges := make([]map[string]any, 0, len(k.Edges))
	for _, e := range k.Edges {
		edges = append(edges, edgeToMap(e))
	}
	return map[string]any{
		"id": k.ID, "title": k.Title, "body": k.Body, "tier": string(k.Tier),
		"domain": k.Domain, "tags": k.Tags, "resonance": k.Resonance,
		"coherence": k.Coherence, "stability": k.Stability, "edges": edges,
	}
}

func registerKU(tbl *macro.Table, s *knowledge.Store) {
	tbl.Register("ku", "create", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		ku, err := s.Create(str(in, "title"), str(in, "body"), knowledge.Tier(str(in, "tier")), str(in, "domain"),
			strSlice(in, "tags"), num(in, "resonance"), num(in, "coherence"), num(in, "stability"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(kuToMap(ku))
	})

	tbl.Register("ku", "get", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		ku, err := s.Get(str(in, "id"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(kuToMap(ku))
	})

	tbl.Register("ku", "list", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		all := s.List()
		out := make([]map[string]any, 0, len(all))
		for _, ku := range all {
			out = append(out, kuToMap(ku))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("ku", "addEdge", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		ku, err := s.AddEdge(str(in, "src"), str(in, "dst"), knowledge.EdgeType(str(in, "type")))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(kuToMap(ku))
	})
}
