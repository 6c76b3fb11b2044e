// Package sandbox implements per-actor execution sandboxes (spec
// component 4.N, sandbox half): budget, scoped memory, permissions,
// audit trail, and kill switches.
package sandbox

import (
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

// Status is a sandbox's lifecycle status.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusKilled    Status = "killed"
)

// AuditEntry is one recorded sandbox event.
type AuditEntry struct {
	Event   string
	Detail  string
	At      time.Time
}

const auditCeiling = 200

// Sandbox is a single actor's (or app's) execution scope.
type Sandbox struct {
	ID          string
	Owner       string
	Status      Status
	Total       float64
	Used        float64
	Memory      map[string]any
	memOrder    []string // FIFO order of keys, for eviction
	maxMemItems int
	Permissions []string
	Audit       []AuditEntry
	KillReason  string
	CreatedAt   time.Time
	maxExecMs   int64
}

// Remaining is the sandbox's unspent budget.
func (sb *Sandbox) Remaining() float64 { return sb.Total - sb.Used }

// Store holds every sandbox, keyed by id.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	data  map[string]*Sandbox
}

// New creates an empty sandbox Store.
func New(clk clock.Source) *Store {
	return &Store{clock: clk, data: make(map[string]*Sandbox)}
}

// CreateAgent creates a sandbox scoped to an autonomous actor.
func (s *Store) CreateAgent(owner string, budget float64, maxMemItems int, maxExecutionTimeMs int64, permissions []string) *Sandbox {
	return s.create("sb", owner, budget, maxMemItems, maxExecutionTimeMs, permissions)
}

// CreateApp creates a sandbox scoped to an application integration.
func (s *Store) CreateApp(owner string, budget float64, maxMemItems int, maxExecutionTimeMs int64, permissions []string) *Sandbox {
	return s.create("app", owner, budget, maxMemItems, maxExecutionTimeMs, permissions)
}

func (s *Store) create(prefix, owner string, budget float64, maxMemItems int, maxExecutionTimeMs int64, permissions []string) *Sandbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb := &Sandbox{
		ID:          s.clock.NewID(prefix),
		Owner:       owner,
		Status:      StatusActive,
		Total:       budget,
		Memory:      make(map[string]any),
		maxMemItems: maxMemItems,
		Permissions: append([]string(nil), permissions...),
		CreatedAt:   s.clock.Now(),
		maxExecMs:   maxExecutionTimeMs,
	}
	s.data[sb.ID] = sb
	return sb
}

// Get returns a sandbox by id.
func (s *Store) Get(id string) (*Sandbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	return sb, ok
}

func (sb *Sandbox) audit(now time.Time, event, detail string) {
	sb.Audit = append(sb.Audit, AuditEntry{Event: event, Detail: detail, At: now})
	if len(sb.Audit) > auditCeiling {
		sb.Audit = append([]AuditEntry(nil), sb.Audit[len(sb.Audit)-auditCeiling/2:]...)
	}
}

// ConsumeBudget deducts cost from a sandbox's remaining budget.
func (s *Store) ConsumeBudget(id string, cost float64) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return apperr.NotFoundf("sandbox", id)
	}
	now := s.clock.Now()
	if sb.Status != StatusActive {
		sb.audit(now, "budget_exceeded", "sandbox not active")
		return apperr.New(apperr.WrongProtocolState, "sandbox %s is not active", id)
	}
	if sb.Used+cost > sb.Total {
		sb.audit(now, "budget_exceeded", "cost would exceed total")
		return apperr.New(apperr.BudgetExceeded, "sandbox %s budget exceeded", id)
	}
	sb.Used += cost
	sb.audit(now, "budget_consumed", "")
	return nil
}

// CheckPermission reports whether p is granted, auditing a denial.
func (s *Store) CheckPermission(id, p string) (bool, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return false, apperr.NotFoundf("sandbox", id)
	}
	now := s.clock.Now()
	for _, perm := range sb.Permissions {
		if perm == "*" || perm == p {
			return true, nil
		}
	}
	sb.audit(now, "permission_denied", p)
	return false, nil
}

// WriteMemory writes key=value into scoped memory, respecting
// maxMemoryItems with FIFO eviction. Updating an already-present key
// does not count toward the cap.
func (s *Store) WriteMemory(id, key string, value any) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return apperr.NotFoundf("sandbox", id)
	}
	if _, exists := sb.Memory[key]; exists {
		sb.Memory[key] = value
		return nil
	}
	if sb.maxMemItems > 0 && len(sb.memOrder) >= sb.maxMemItems {
		oldest := sb.memOrder[0]
		sb.memOrder = sb.memOrder[1:]
		delete(sb.Memory, oldest)
	}
	sb.Memory[key] = value
	sb.memOrder = append(sb.memOrder, key)
	return nil
}

// ReadMemory reads key from scoped memory.
func (s *Store) ReadMemory(id, key string) (any, bool, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return nil, false, apperr.NotFoundf("sandbox", id)
	}
	v, ok := sb.Memory[key]
	return v, ok, nil
}

// Suspend pauses an active sandbox; budget spends are refused until it
// is resumed. Scoped memory stays readable and writable while suspended.
func (s *Store) Suspend(id, reason string) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return apperr.NotFoundf("sandbox", id)
	}
	if sb.Status != StatusActive {
		return apperr.New(apperr.WrongProtocolState, "sandbox %s is not active", id)
	}
	sb.Status = StatusSuspended
	sb.audit(s.clock.Now(), "suspended", reason)
	return nil
}

// Resume reactivates a suspended sandbox. Killed sandboxes stay killed.
func (s *Store) Resume(id string) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return apperr.NotFoundf("sandbox", id)
	}
	if sb.Status != StatusSuspended {
		return apperr.New(apperr.WrongProtocolState, "sandbox %s is not suspended", id)
	}
	sb.Status = StatusActive
	sb.audit(s.clock.Now(), "resumed", "")
	return nil
}

// Kill terminates a sandbox.
func (s *Store) Kill(id, reason string) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return apperr.NotFoundf("sandbox", id)
	}
	now := s.clock.Now()
	sb.Status = StatusKilled
	sb.KillReason = reason
	sb.audit(now, "killed", reason)
	return nil
}

// EnforceTimeLimit auto-kills the sandbox if it has run past
// maxExecutionTimeMs since creation.
func (s *Store) EnforceTimeLimit(id string) (bool, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.data[id]
	if !ok {
		return false, apperr.NotFoundf("sandbox", id)
	}
	if sb.Status != StatusActive || sb.maxExecMs <= 0 {
		return false, nil
	}
	now := s.clock.Now()
	elapsed := now.Sub(sb.CreatedAt).Milliseconds()
	if elapsed <= sb.maxExecMs {
		return false, nil
	}
	sb.Status = StatusKilled
	sb.KillReason = "execution_time_exceeded"
	sb.audit(now, "killed", sb.KillReason)
	return true, nil
}
