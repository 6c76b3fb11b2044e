// Package interlock implements the protocol coordination primitives
// from spec component 4.K: mutex, ordered, barrier, gate, and timeout
// locks, held in their own store separate from internal/protocol.
package interlock

import (
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
)

// Kind enumerates the interlock flavors.
type Kind string

const (
	KindMutex   Kind = "mutex"
	KindOrdered Kind = "ordered"
	KindBarrier Kind = "barrier"
	KindGate    Kind = "gate"
	KindTimeout Kind = "timeout"
)

type holder struct {
	actor     string
	acquiredAt time.Time
}

// Lock is one interlock instance. Its behavior is dispatched on Kind;
// fields not relevant to a given kind are left zero.
type Lock struct {
	ID          string
	Kind        Kind
	MaxHolders  int
	holders     []holder
	waiters     []string // FIFO queue of blocked actor ids (mutex/ordered/timeout)
	arrivals    map[string]bool // barrier: distinct actors that have arrived this round
	barrierSize int
	approver    string // gate: actor id allowed to approve; empty means anyone
	approved    bool   // gate
	orderSeq    []string // ordered: sequence key of each waiter, parallel to waiters
	holdTimeout time.Duration // timeout kind
}

// Store holds every interlock, keyed by id.
type Store struct {
	mu    sync.Mutex
	clock clock.Source
	data  map[string]*Lock
}

// New creates an empty interlock Store.
func New(clk clock.Source) *Store {
	return &Store{clock: clk, data: make(map[string]*Lock)}
}

// CreateMutex creates a mutex interlock (maxHolders=1, FIFO queue).
func (s *Store) CreateMutex() *Lock {
	return s.create(&Lock{Kind: KindMutex, MaxHolders: 1})
}

// CreateOrdered creates an ordered interlock admitting callers only in
// nondecreasing sequence-key order.
func (s *Store) CreateOrdered() *Lock {
	return s.create(&Lock{Kind: KindOrdered, MaxHolders: 1})
}

// CreateBarrier creates a barrier requiring n distinct arrivals.
func (s *Store) CreateBarrier(n int) *Lock {
	return s.create(&Lock{Kind: KindBarrier, barrierSize: n, arrivals: make(map[string]bool)})
}

// CreateGate creates a gate interlock; approver may be empty to allow
// any actor to approve.
func (s *Store) CreateGate(maxHolders int, approver string) *Lock {
	return s.create(&Lock{Kind: KindGate, MaxHolders: maxHolders, approver: approver})
}

// CreateTimeout creates a timeout interlock: behaves as a bounded
// mutex, but the oldest holder is auto-released once its hold exceeds
// d.
func (s *Store) CreateTimeout(maxHolders int, d time.Duration) *Lock {
	return s.create(&Lock{Kind: KindTimeout, MaxHolders: maxHolders, holdTimeout: d})
}

func (s *Store) create(l *Lock) *Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.clock.NewID("lk")
	s.data[l.ID] = l
	return l
}

func (s *Store) require(id string) (*Lock, *apperr.Error) {
	l, ok := s.data[id]
	if !ok {
		return nil, apperr.NotFoundf("interlock", id)
	}
	return l, nil
}

func removeFromSlice(xs []string, v string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (l *Lock) isHolder(actor string) bool {
	for _, h := range l.holders {
		if h.actor == actor {
			return true
		}
	}
	return false
}

func (l *Lock) promote(actor string, at time.Time) {
	l.holders = append(l.holders, holder{actor: actor, acquiredAt: at})
	l.waiters = removeFromSlice(l.waiters, actor)
}

// Acquire attempts to grant the interlock to actor. Returns whether the
// actor now holds it (true) or is queued/blocked (false). Kind-specific
// semantics apply; for ordered locks, sequenceKey must be supplied.
func (s *Store) Acquire(lockID, actor, sequenceKey string) (bool, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.require(lockID)
	if err != nil {
		return false, err
	}
	now := s.clock.Now()

	switch l.Kind {
	case KindMutex, KindGate:
		if l.isHolder(actor) {
			return true, nil
		}
		if l.Kind == KindGate && !l.approved {
			if !containsStr(l.waiters, actor) {
				l.waiters = append(l.waiters, actor)
			}
			return false, nil
		}
		if len(l.holders) < max(l.MaxHolders, 1) {
			l.promote(actor, now)
			return true, nil
		}
		if !containsStr(l.waiters, actor) {
			l.waiters = append(l.waiters, actor)
		}
		return false, nil

	case KindTimeout:
		s.reapTimeouts(l, now)
		if l.isHolder(actor) {
			return true, nil
		}
		if len(l.holders) < max(l.MaxHolders, 1) {
			l.promote(actor, now)
			return true, nil
		}
		if !containsStr(l.waiters, actor) {
			l.waiters = append(l.waiters, actor)
		}
		return false, nil

	case KindOrdered:
		if l.isHolder(actor) {
			return true, nil
		}
		if !containsStr(l.waiters, actor) {
			l.waiters = append(l.waiters, actor)
			l.orderSeq = append(l.orderSeq, sequenceKey)
		}
		// admitted only if this actor's key is the minimum among waiters
		minIdx := 0
		for i, k := range l.orderSeq {
			if k < l.orderSeq[minIdx] {
				minIdx = i
			}
		}
		if l.waiters[minIdx] == actor && len(l.holders) < max(l.MaxHolders, 1) {
			l.promote(actor, now)
			l.orderSeq = removeSeqAt(l.orderSeq, minIdx)
			return true, nil
		}
		return false, nil

	case KindBarrier:
		l.arrivals[actor] = true
		return len(l.arrivals) >= l.barrierSize, nil
	}
	return false, apperr.New(apperr.InvalidField, "unknown interlock kind %s", l.Kind)
}

func removeSeqAt(xs []string, idx int) []string {
	return append(xs[:idx], xs[idx+1:]...)
}

func containsStr(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (s *Store) reapTimeouts(l *Lock, now time.Time) {
	if l.holdTimeout <= 0 {
		return
	}
	for len(l.holders) > 0 {
		oldest := l.holders[0]
		if now.Sub(oldest.acquiredAt) <= l.holdTimeout {
			break
		}
		l.holders = l.holders[1:]
		if len(l.waiters) > 0 {
			next := l.waiters[0]
			l.promote(next, now)
		}
	}
}

// Release drops actor's hold on the interlock. For mutex/ordered/
// timeout, this auto-promotes the next eligible waiter.
func (s *Store) Release(lockID, actor string) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.require(lockID)
	if err != nil {
		return err
	}
	for i, h := range l.holders {
		if h.actor == actor {
			l.holders = append(l.holders[:i], l.holders[i+1:]...)
			break
		}
	}
	now := s.clock.Now()
	switch l.Kind {
	case KindMutex, KindGate, KindTimeout:
		if len(l.waiters) > 0 && len(l.holders) < max(l.MaxHolders, 1) {
			if l.Kind == KindGate && !l.approved {
				break
			}
			next := l.waiters[0]
			l.promote(next, now)
		}
	case KindOrdered:
		if len(l.waiters) > 0 && len(l.orderSeq) > 0 {
			minIdx := 0
			for i, k := range l.orderSeq {
				if k < l.orderSeq[minIdx] {
					minIdx = i
				}
			}
			next := l.waiters[minIdx]
			l.promote(next, now)
			l.orderSeq = removeSeqAt(l.orderSeq, minIdx)
		}
	}
	return nil
}

// ApproveGate approves a gate, promoting waiters up to maxHolders.
func (s *Store) ApproveGate(lockID, approver string) *apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.require(lockID)
	if err != nil {
		return err
	}
	if l.Kind != KindGate {
		return apperr.New(apperr.InvalidField, "interlock %s is not a gate", lockID)
	}
	if l.approver != "" && l.approver != approver {
		return apperr.New(apperr.PermissionDenied, "only %s may approve this gate", l.approver)
	}
	l.approved = true
	now := s.clock.Now()
	for len(l.waiters) > 0 && len(l.holders) < max(l.MaxHolders, 1) {
		next := l.waiters[0]
		l.promote(next, now)
	}
	return nil
}

// Holders returns the current holders of an interlock, in acquisition
// order.
func (s *Store) Holders(lockID string) ([]string, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.require(lockID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l.holders))
	for i, h := range l.holders {
		out[i] = h.actor
	}
	return out, nil
}

// Waiters returns the current FIFO wait queue.
func (s *Store) Waiters(lockID string) ([]string, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.require(lockID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), l.waiters...), nil
}

// Arrivals returns the sorted set of distinct actors who have arrived
// at a barrier so far.
func (s *Store) Arrivals(lockID string) ([]string, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.require(lockID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(l.arrivals))
	for a := range l.arrivals {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}
