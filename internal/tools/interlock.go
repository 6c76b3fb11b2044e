package tools

import (
	"context"
	"time"

	"github.com/emergent-company/epistemic-core/internal/interlock"
	"github.com/emergent-company/epistemic-core/internal/macro"
)

func lockToMap(l *interlock.Lock) map[string]any {
	return map[string]any{"id": l.ID, "kind": string(l.Kind)}
}

func registerInterlock(tbl *macro.Table, s *interlock.Store) {
	tbl.Register("interlock", "create", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		var l *interlock.Lock
		switch str(in, "kind") {
		case string(interlock.KindMutex):
			l = s.CreateMutex()
		case string(interlock.KindOrdered):
			l = s.CreateOrdered()
		case string(interlock.KindBarrier):
			l = s.CreateBarrier(integer(in, "n"))
		case string(interlock.KindGate):
			l = s.CreateGate(integer(in, "maxHolders"), str(in, "approver"))
		case string(interlock.KindTimeout):
			l = s.CreateTimeout(integer(in, "maxHolders"), time.Duration(integer(in, "holdTimeoutMs"))*time.Millisecond)
		default:
			return macro.Err("invalid_field")
		}
		return macro.Ok(lockToMap(l))
	})

	tbl.Register("interlock", "acquire", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		acquired, err := s.Acquire(str(in, "lockId"), str(in, "actor"), str(in, "sequenceKey"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"acquired": acquired})
	})

	tbl.Register("interlock", "release", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Release(str(in, "lockId"), str(in, "actor")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("interlock", "approveGate", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.ApproveGate(str(in, "lockId"), str(in, "approver")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})
}
