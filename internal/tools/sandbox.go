package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/sandbox"
)

func sandboxToMap(sb *sandbox.Sandbox) map[string]any {
	return map[string]any{
		"id": sb.ID, "owner": sb.Owner, "status": string(sb.Status), "total": sb.Total, "used": sb.Used,
		"remaining": sb.Remaining(), "permissions": sb.Permissions, "killReason": sb.KillReason,
	}
}

func registerSandbox(tbl *macro.Table, s *sandbox.Store) {
	create := func(fn func(owner string, budget float64, maxMemItems int, maxExecutionTimeMs int64, permissions []string) *sandbox.Sandbox) macro.Handler {
		return func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
			sb := fn(str(in, "owner"), num(in, "budget"), integer(in, "maxMemoryItems"), int64(num(in, "maxExecutionTimeMs")), strSlice(in, "permissions"))
			return macro.Ok(sandboxToMap(sb))
		}
	}
	tbl.Register("sandbox", "createAgent", true, create(s.CreateAgent))
	tbl.Register("sandbox", "createApp", true, create(s.CreateApp))

	tbl.Register("sandbox", "consumeBudget", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.ConsumeBudget(str(in, "id"), num(in, "cost")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("sandbox", "checkPermission", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		ok, err := s.CheckPermission(str(in, "id"), str(in, "permission"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"allowed": ok})
	})

	tbl.Register("sandbox", "writeMemory", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.WriteMemory(str(in, "id"), str(in, "key"), in["value"]); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("sandbox", "readMemory", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		val, ok, err := s.ReadMemory(str(in, "id"), str(in, "key"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"value": val, "found": ok})
	})

	tbl.Register("sandbox", "suspend", false, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Suspend(str(in, "id"), str(in, "reason")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("sandbox", "resume", false, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Resume(str(in, "id")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("sandbox", "kill", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Kill(str(in, "id"), str(in, "reason")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})
}
