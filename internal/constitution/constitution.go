// Package constitution implements the tiered constitutional rule
// engine (spec component 4.M). Grounded on the teacher's
// internal/tools/constitution required/forbidden-pattern
// violation-reporting shape ({allowed, violations: [...]})  —
// generalized here from pattern-compliance checking on a change's
// entities to tier-gated rule checking on an action's tags.
package constitution

import (
	"fmt"
	"sync"

	"github.com/emergent-company/epistemic-core/internal/apperr"
)

// Tier is a rule's amendment tier.
type Tier string

const (
	TierImmutable     Tier = "immutable"
	TierConstitutional Tier = "constitutional"
	TierPolicy        Tier = "policy"
)

// Rule is one constitutional rule.
type Rule struct {
	ID          string
	Tier        Tier
	Statement   string
	Description string
	Category    string
	Tags        []string
	Active      bool
}

// Votes is a tally used to decide whether an amendment passes.
type Votes struct {
	For     int
	Against int
}

func (v Votes) total() int { return v.For + v.Against }

func (t Tier) meetsThreshold(v Votes) bool {
	if v.total() < 1 {
		return false
	}
	switch t {
	case TierConstitutional:
		return float64(v.For) >= (2.0/3.0)*float64(v.total())
	case TierPolicy:
		return v.For > v.Against
	default:
		return false
	}
}

// HistoryEntry records one governance action taken against a rule:
// its addition, an applied amendment, or a deactivation.
type HistoryEntry struct {
	RuleID string
	Event  string // "added", "amended", "deactivated"
	Detail string
}

// Engine holds every rule, keyed by id, with per-tier id counters.
type Engine struct {
	mu      sync.Mutex
	rules   map[string]*Rule
	order   []string
	counter map[Tier]int
	history []HistoryEntry
}

var tierPrefix = map[Tier]string{
	TierImmutable:      "IMM",
	TierConstitutional: "CON",
	TierPolicy:         "POL",
}

// New creates an Engine seeded with the fixed immutable rule set.
func New() *Engine {
	e := &Engine{
		rules:   make(map[string]*Rule),
		counter: make(map[Tier]int),
	}
	e.seedImmutableRules()
	return e
}

func (e *Engine) nextID(tier Tier) string {
	e.counter[tier]++
	return fmt.Sprintf("%s-%03d", tierPrefix[tier], e.counter[tier])
}

func (e *Engine) addSeed(statement, description, category string, tags []string) {
	id := e.nextID(TierImmutable)
	r := &Rule{ID: id, Tier: TierImmutable, Statement: statement, Description: description, Category: category, Tags: tags, Active: true}
	e.rules[id] = r
	e.order = append(e.order, id)
}

// seedImmutableRules installs the fixed 10 immutable rules. Statements
// are deliberately generic (they are opaque to callers); one rule
// specifically blocks any action simultaneously tagged emergent,
// governance, and decision, per the engine's required seed.
func (e *Engine) seedImmutableRules() {
	e.addSeed(
		"No actor may unilaterally finalize a governance decision that affects the emergent collective without recorded deliberation.",
		"blocks unreviewed emergent governance decisions",
		"governance", []string{"emergent", "governance", "decision"},
	)
	e.addSeed("No actor may alter its own constitutional standing.", "self-amendment ban", "governance", []string{"self_amend"})
	e.addSeed("No actor may destroy another actor's commitments without due process.", "commitment integrity", "accountability", []string{"commitment", "destructive"})
	e.addSeed("No actor may falsify evidence records.", "evidence integrity", "evidence", []string{"evidence", "falsification"})
	e.addSeed("No actor may bypass the verification pipeline for tiers above shadow.", "verification bypass ban", "verification", []string{"verification", "bypass"})
	e.addSeed("No actor may exceed its sandbox resource budget without an explicit grant.", "resource discipline", "sandbox", []string{"sandbox", "budget"})
	e.addSeed("No actor may impersonate another actor in a coordination protocol.", "identity integrity", "protocol", []string{"protocol", "impersonation"})
	e.addSeed("No actor may suppress a dissenting veto record.", "veto integrity", "protocol", []string{"protocol", "veto", "suppression"})
	e.addSeed("No actor may retroactively alter append-only history.", "history immutability", "storage", []string{"history", "tamper"})
	e.addSeed("No actor may deactivate or amend an immutable rule.", "immutable rule protection", "governance", []string{"governance", "immutable"})
}

// AddRule registers a new constitutional or policy rule. Immutable
// rules can never be added through this operation.
func (e *Engine) AddRule(tier Tier, statement, description, category string, tags []string) (Rule, *apperr.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tier == TierImmutable {
		return Rule{}, apperr.New(apperr.CannotAddImmutable, "cannot add rules at the immutable tier")
	}
	id := e.nextID(tier)
	r := &Rule{ID: id, Tier: tier, Statement: statement, Description: description, Category: category, Tags: tags, Active: true}
	e.rules[id] = r
	e.order = append(e.order, id)
	e.history = append(e.history, HistoryEntry{RuleID: id, Event: "added", Detail: statement})
	return *r, nil
}

// Get returns a rule by id.
func (e *Engine) Get(id string) (Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// List returns every rule in registration order.
func (e *Engine) List() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.rules[id])
	}
	return out
}

// AmendResult is the outcome of an AmendRule call.
type AmendResult struct {
	OK      bool
	Amended bool
}

// AmendRule applies a proposed amendment if the rule's tier threshold
// is met. A threshold miss is not an error: it returns {OK: true,
// Amended: false}. A missing or non-amendable (immutable) rule is an
// error.
func (e *Engine) AmendRule(id, newStatement string, votes Votes, reason string) (AmendResult, *apperr.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return AmendResult{}, apperr.NotFoundf("rule", id)
	}
	if r.Tier == TierImmutable {
		return AmendResult{}, apperr.New(apperr.RuleNotAmendable, "rule %s is immutable and cannot be amended", id)
	}
	if !r.Tier.meetsThreshold(votes) {
		return AmendResult{OK: true, Amended: false}, nil
	}
	r.Statement = newStatement
	e.history = append(e.history, HistoryEntry{RuleID: id, Event: "amended", Detail: reason})
	return AmendResult{OK: true, Amended: true}, nil
}

// DeactivateRule deactivates a constitutional or policy rule. Immutable
// rules can never be deactivated.
func (e *Engine) DeactivateRule(id string) *apperr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return apperr.NotFoundf("rule", id)
	}
	if r.Tier == TierImmutable {
		return apperr.New(apperr.CannotDeactivateImm, "rule %s is immutable and cannot be deactivated", id)
	}
	r.Active = false
	e.history = append(e.history, HistoryEntry{RuleID: id, Event: "deactivated"})
	return nil
}

// History returns every governance action recorded against ruleID, in
// the order taken. An empty ruleID returns the full engine history.
func (e *Engine) History(ruleID string) []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ruleID == "" {
		return append([]HistoryEntry(nil), e.history...)
	}
	var out []HistoryEntry
	for _, h := range e.history {
		if h.RuleID == ruleID {
			out = append(out, h)
		}
	}
	return out
}

// Action is the thing a checkRules call evaluates.
type Action struct {
	Action    string
	ActorType string
	Tags      []string
}

func hasAllTags(actionTags, ruleTags []string) bool {
	if len(ruleTags) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(actionTags))
	for _, t := range actionTags {
		set[t] = struct{}{}
	}
	for _, t := range ruleTags {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Violation is one applying rule surfaced by CheckRules.
type Violation struct {
	RuleID    string
	Tier      Tier
	Statement string
}

// CheckResult is the outcome of CheckRules.
type CheckResult struct {
	Allowed    bool
	Violations []Violation
}

// CheckRules evaluates action against every active rule whose tag
// predicate matches (every rule tag present in the action's tags).
// Matching immutable or constitutional rules block the action;
// matching policy rules are reported but don't block.
func (e *Engine) CheckRules(action Action) CheckResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var violations []Violation
	allowed := true
	for _, id := range e.order {
		r := e.rules[id]
		if !r.Active {
			continue
		}
		if !hasAllTags(action.Tags, r.Tags) {
			continue
		}
		violations = append(violations, Violation{RuleID: r.ID, Tier: r.Tier, Statement: r.Statement})
		if r.Tier == TierImmutable || r.Tier == TierConstitutional {
			allowed = false
		}
	}
	return CheckResult{Allowed: allowed, Violations: violations}
}
