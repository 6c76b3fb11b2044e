// Package verification implements the verification pipeline engine
// (spec component 4.E): deterministic, composable checks over a
// knowledge unit that emit evidence. Each CheckType is a pure function
// in this file, held in Registry, grounded on internal/guards' Severity/Result shape — the
// engine's pass/fail/warning/skip/error generalizes the teacher's
// HARD_BLOCK/SOFT_BLOCK/WARNING/SUGGESTION ladder.
package verification

import (
	"strings"
	"time"

	"github.com/emergent-company/epistemic-core/internal/knowledge"
)

// CheckType enumerates the kinds of checks a pipeline can run.
type CheckType string

const (
	CheckConsistency      CheckType = "consistency"
	CheckSchema           CheckType = "schema"
	CheckContradictionScan CheckType = "contradiction_scan"
	CheckCitation         CheckType = "citation"
	CheckCompleteness     CheckType = "completeness"
	CheckRange            CheckType = "range"
	CheckFreshness        CheckType = "freshness"
	CheckCrossReference   CheckType = "cross_reference"
)

// Severity is the configured importance of a single check within a
// pipeline; it does not change the run-result algorithm (fail beats
// warning beats pass) but is surfaced for operator triage.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ResultKind is the outcome of one check.
type ResultKind string

const (
	ResultPass    ResultKind = "pass"
	ResultFail    ResultKind = "fail"
	ResultWarning ResultKind = "warning"
	ResultSkip    ResultKind = "skip"
	ResultError   ResultKind = "error"
)

// CheckResult is what a check function returns.
type CheckResult struct {
	Result  ResultKind
	Message string
	Details map[string]any
}

// Env carries the data a check needs beyond the KU itself: the current
// instant and a lookup of edges across all KUs (for contradiction_scan
// and cross_reference, which need to see edges targeting the KU, not
// just edges it owns).
type Env struct {
	Now              time.Time
	IncomingEdges    func(kuID string, edgeType knowledge.EdgeType) int
	RequiredFields   []string                  // for schema
	RangeFields      map[string][2]float64     // for range: field -> [min,max]
	ExpectedFields   []string                  // for completeness
	MinCitations     int                       // for citation
	MaxAge           time.Duration             // for freshness
	MinCrossRefs     int                       // for cross_reference
}

// CheckFunc is the pure function contract every CheckType implements.
type CheckFunc func(ku knowledge.KU, env Env) CheckResult

// Registry maps a CheckType to its implementation.
var Registry = map[CheckType]CheckFunc{
	CheckConsistency:       runConsistency,
	CheckSchema:            runSchema,
	CheckContradictionScan: runContradictionScan,
	CheckCitation:          runCitation,
	CheckCompleteness:      runCompleteness,
	CheckRange:             runRange,
	CheckFreshness:         runFreshness,
	CheckCrossReference:    runCrossReference,
}

func pass(msg string) CheckResult { return CheckResult{Result: ResultPass, Message: msg} }
func fail(msg string, details map[string]any) CheckResult {
	return CheckResult{Result: ResultFail, Message: msg, Details: details}
}
func warn(msg string, details map[string]any) CheckResult {
	return CheckResult{Result: ResultWarning, Message: msg, Details: details}
}

// runConsistency: quality fields in [0,1]; title non-empty; body
// non-empty if tier != shadow; timestamp parses (always true here since
// CreatedAt is a time.Time, but we still validate it's non-zero).
func runConsistency(ku knowledge.KU, _ Env) CheckResult {
	var problems []string
	inRange := func(v float64) bool { return v >= 0 && v <= 1 }
	if !inRange(ku.Resonance) {
		problems = append(problems, "resonance out of range")
	}
	if !inRange(ku.Coherence) {
		problems = append(problems, "coherence out of range")
	}
	if !inRange(ku.Stability) {
		problems = append(problems, "stability out of range")
	}
	if ku.Title == "" {
		problems = append(problems, "title is empty")
	}
	if ku.Tier != knowledge.TierShadow && ku.Body == "" {
		problems = append(problems, "body is empty for non-shadow tier")
	}
	if ku.CreatedAt.IsZero() {
		problems = append(problems, "created timestamp missing")
	}
	if len(problems) > 0 {
		return fail(strings.Join(problems, "; "), map[string]any{"problems": problems})
	}
	return pass("consistent")
}

// runSchema: every field in env.RequiredFields is present with a
// non-zero value kind.
func runSchema(ku knowledge.KU, env Env) CheckResult {
	values := fieldValues(ku)
	var missing []string
	for _, f := range env.RequiredFields {
		v, ok := values[f]
		if !ok || isZeroValue(v) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fail("missing required fields", map[string]any{"missing": missing})
	}
	return pass("schema satisfied")
}

// runRange: numeric fields within configured [min,max]; defaults to
// resonance/coherence/stability in [0,1] when env.RangeFields is empty.
func runRange(ku knowledge.KU, env Env) CheckResult {
	ranges := env.RangeFields
	if len(ranges) == 0 {
		ranges = map[string][2]float64{
			"resonance": {0, 1},
			"coherence": {0, 1},
			"stability": {0, 1},
		}
	}
	values := fieldValues(ku)
	var violations []string
	for field, bounds := range ranges {
		v, ok := values[field].(float64)
		if !ok {
			continue
		}
		if v < bounds[0] || v > bounds[1] {
			violations = append(violations, field)
		}
	}
	if len(violations) > 0 {
		return fail("fields out of configured range", map[string]any{"fields": violations})
	}
	return pass("within range")
}

// runCompleteness: listed expected fields are non-empty (strings
// trimmed, arrays non-empty).
func runCompleteness(ku knowledge.KU, env Env) CheckResult {
	values := fieldValues(ku)
	var incomplete []string
	for _, f := range env.ExpectedFields {
		v, ok := values[f]
		if !ok {
			incomplete = append(incomplete, f)
			continue
		}
		switch x := v.(type) {
		case string:
			if strings.TrimSpace(x) == "" {
				incomplete = append(incomplete, f)
			}
		case []string:
			if len(x) == 0 {
				incomplete = append(incomplete, f)
			}
		}
	}
	if len(incomplete) > 0 {
		return warn("incomplete fields", map[string]any{"incomplete": incomplete})
	}
	return pass("complete")
}

// runCitation counts URL-like substrings and bracketed citation markers
// in the body, comparing against env.MinCitations.
func runCitation(ku knowledge.KU, env Env) CheckResult {
	count := countURLs(ku.Body) + countBracketed(ku.Body)
	min := env.MinCitations
	if min <= 0 {
		min = 1
	}
	if count < min {
		return warn("insufficient citations", map[string]any{"count": count, "min": min})
	}
	return pass("citations sufficient")
}

func countURLs(body string) int {
	n := 0
	for _, scheme := range []string{"http://", "https://"} {
		idx := 0
		for {
			i := strings.Index(body[idx:], scheme)
			if i < 0 {
				break
			}
			n++
			idx += i + len(scheme)
		}
	}
	return n
}

func countBracketed(body string) int {
	n := 0
	depth := 0
	for _, r := range body {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				n++
				depth--
			}
		}
	}
	return n
}

// runFreshness: (now - updatedAt) <= configured max age.
func runFreshness(ku knowledge.KU, env Env) CheckResult {
	maxAge := env.MaxAge
	if maxAge <= 0 {
		maxAge = 90 * 24 * time.Hour
	}
	age := env.Now.Sub(ku.UpdatedAt)
	if age > maxAge {
		return warn("stale", map[string]any{"age_seconds": age.Seconds(), "max_age_seconds": maxAge.Seconds()})
	}
	return pass("fresh")
}

// runContradictionScan queries the edge index for "contradicts" edges
// touching the KU; fails if any exist.
func runContradictionScan(ku knowledge.KU, env Env) CheckResult {
	if env.IncomingEdges == nil {
		return CheckResult{Result: ResultSkip, Message: "no edge index configured"}
	}
	n := env.IncomingEdges(ku.ID, knowledge.EdgeContradicts)
	for _, e := range ku.Edges {
		if e.Type == knowledge.EdgeContradicts {
			n++
		}
	}
	if n > 0 {
		return fail("contradicting edges present", map[string]any{"count": n})
	}
	return pass("no contradictions")
}

// runCrossReference counts "supports" edges arriving at the KU; warns
// if fewer than env.MinCrossRefs.
func runCrossReference(ku knowledge.KU, env Env) CheckResult {
	if env.IncomingEdges == nil {
		return CheckResult{Result: ResultSkip, Message: "no edge index configured"}
	}
	n := env.IncomingEdges(ku.ID, knowledge.EdgeSupports)
	min := env.MinCrossRefs
	if min <= 0 {
		min = 1
	}
	if n < min {
		return warn("too few supporting cross references", map[string]any{"count": n, "min": min})
	}
	return pass("sufficient cross references")
}

func fieldValues(ku knowledge.KU) map[string]any {
	return map[string]any{
		"title":     ku.Title,
		"body":      ku.Body,
		"tier":      string(ku.Tier),
		"domain":    ku.Domain,
		"tags":      ku.Tags,
		"resonance": ku.Resonance,
		"coherence": ku.Coherence,
		"stability": ku.Stability,
	}
}

func isZeroValue(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case float64:
		return false // 0.0 is a legitimate quality value, not "missing"
	}
	return v == nil
}
