// Package tools wires every domain store into the macro-registration
// table (spec §6), replacing the teacher's internal/mcp per-tool JSON
// schema + Execute handlers with a flatter, transport-free mapping
// from (domain, name) to a closure over that domain's store. Grounded
// on internal/mcp's Tool.Execute(ctx, params) -> result contract,
// generalized from per-tool JSON-RPC types to the shared macro.Result
// record shape.
package tools

import "time"

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func integer(m map[string]any, key string) int {
	return int(num(m, key))
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func strSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		if s, ok := m[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// timeFrom reads a unix-millisecond timestamp. Wire payloads carry time
// as epoch milliseconds rather than RFC3339, consistent with the
// duration fields elsewhere in this package (e.g. maxAgeMs).
func timeFrom(m map[string]any, key string) time.Time {
	ms := int64(num(m, key))
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nestedMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func floatMap(m map[string]any, key string) map[string]float64 {
	raw := nestedMap(m, key)
	if raw == nil {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		}
	}
	return out
}
