package tools

import (
	"context"

	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/project"
)

func nodeToMap(n project.Node) map[string]any {
	return map[string]any{
		"id": n.ID, "prerequisites": n.Prerequisites, "status": string(n.Status),
		"result": n.Result, "index": n.Index,
	}
}

func projectToMap(p *project.Project) map[string]any {
	nodes := make(map[string]any, len(p.Nodes))
	for id, n := range p.Nodes {
		nodes[id] = nodeToMap(*n)
	}
	return map[string]any{"id": p.ID, "status": string(p.Status), "nodes": nodes}
}

func registerProject(tbl *macro.Table, s *project.Store) {
	tbl.Register("project", "create", true, func(_ context.Context, _ macro.Context, _ map[string]any) macro.Result {
		p := s.Create()
		return macro.Ok(projectToMap(p))
	})

	tbl.Register("project", "addNode", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		n, err := s.AddNode(str(in, "projectId"), strSlice(in, "prerequisites"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nodeToMap(n))
	})

	tbl.Register("project", "start", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Start(str(in, "projectId")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("project", "ready", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		nodes, err := s.ReadyNodes(str(in, "projectId"))
		if err != nil {
			return macro.Err(string(err.Code))
		}
		out := make([]map[string]any, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, nodeToMap(n))
		}
		return macro.Ok(map[string]any{"items": out})
	})

	tbl.Register("project", "complete", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Complete(str(in, "projectId"), str(in, "nodeId"), in["result"]); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("project", "fail", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Fail(str(in, "projectId"), str(in, "nodeId"), str(in, "reason")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("project", "pause", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Pause(str(in, "projectId")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("project", "resume", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Resume(str(in, "projectId")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})

	tbl.Register("project", "checkpoint", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		cp, err := s.Checkpoint(str(in, "projectId"), str(in, "nodeId"), in["snapshot"])
		if err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(map[string]any{"id": cp.ID, "nodeId": cp.NodeID, "index": cp.Index})
	})

	tbl.Register("project", "rollback", true, func(_ context.Context, _ macro.Context, in map[string]any) macro.Result {
		if err := s.Rollback(str(in, "projectId"), str(in, "checkpointId")); err != nil {
			return macro.Err(string(err.Code))
		}
		return macro.Ok(nil)
	})
}
