package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/workqueue"
)

func itemToMap(it workqueue.Item) map[string]any {
	return map[string]any{
		"id": it.ID, "workType": it.WorkType, "fingerprint": it.Fingerprint, "defaultRole": it.DefaultRole,
		"priority": it.Priority, "status": string(it.Status), "failReason": it.FailReason,
	}
}

func registerScheduler(tbl *macro.Table, q *workqueue.Queue) {
	tbl.Register("scheduler", "enqueue", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		it, err := q.Enqueue(str(in, "workType"), str(in, "fingerprint"), str(in, "defaultRole"), floatMap(in, "signals"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(itemToMap(it))
	})

	tbl.Register("scheduler", "pop", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		it, ok := q.Pop()
		if !ok {
			return macro.Ok(map[string]any{"item": nil})
		}
		return macro.Ok(map[string]any{"item": itemToMap(it)})
	})

	tbl.Register("scheduler", "complete", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := q.Complete(str(in, "id")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("scheduler", "fail", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := q.Fail(str(in, "id"), str(in, "reason")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("scheduler", "status", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		it, ok := q.Get(str(in, "id"))
		if !ok {
			return macro.Err("not_found")
		}
		return macro.Ok(itemToMap(it))
	})

	tbl.Register("scheduler", "rescore", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		q.Rescore(floatMap(in, "weights"))
		return macro.Ok(nil)
	})
}
