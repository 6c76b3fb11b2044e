package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/commitment"
	"github.com/emergent-company/epistemic-core/internal/macro"
)

func commitmentToMap(c *commitment.Commitment) map[string]any {
	m := map[string]any{
		"id": c.ID, "actor": c.Actor, "text": c.Text, "verifiers": c.Verifiers, "state": string(c.State),
	}
	if !c.Deadline.IsZero() {
		m["deadline"] = c.Deadline.UnixMilli()
	}
	return m
}

func registerCommitment(tbl *macro.Table, s *commitment.Store) {
	tbl.Register("commitment", "register", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		var deadline = timeFrom(in, "deadline")
		c := s.RegisterCommitment(str(in, "actor"), str(in, "text"), deadline, strSlice(in, "verifiers"))
		return macro.Ok(commitmentToMap(c))
	})

	tbl.Register("commitment", "transition", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Transition(str(in, "id"), commitment.State(str(in, "to")), str(in, "actor"), str(in, "evidence")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("commitment", "detectBreaches", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		breached := s.DetectBreaches()
		out := make([]map[string]any, 0, len(breached))
		for _, c := range breached {
			out = append(out, commitmentToMap(c))
		}
		return macro.Ok(map[string]any{"items": out})
	})
}
