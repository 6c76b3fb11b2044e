// Package evidence implements the evidence store (spec component 4.D):
// evidence records attached to knowledge units, and the pure status
// derivation algorithm. Evidence is owned by this store; KUs hold no
// direct pointers, so every lookup goes through a target->evidence
// index, exactly as spec.md requires.
package evidence

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/apperr"
	"github.com/emergent-company/epistemic-core/internal/clock"
	"github.com/emergent-company/epistemic-core/internal/store"
)

// Type identifies the kind of evidence attached to a KU.
type Type string

const (
	TypeSourceLink     Type = "source_link"
	TypeTestResult     Type = "test_result"
	TypeCrossReference Type = "cross_reference"
	TypeCitation       Type = "citation"
	TypeReplication    Type = "replication"
	TypeUserFeedback   Type = "user_feedback"
)

func validType(t Type) bool {
	switch t {
	case TypeSourceLink, TypeTestResult, TypeCrossReference, TypeCitation, TypeReplication, TypeUserFeedback:
		return true
	}
	return false
}

// Direction is the stance the evidence takes toward its target.
type Direction string

const (
	DirSupports Direction = "supports"
	DirRefutes  Direction = "refutes"
	DirNeutral  Direction = "neutral"
)

func validDirection(d Direction) bool {
	switch d {
	case DirSupports, DirRefutes, DirNeutral:
		return true
	}
	return false
}

// Status is the derived epistemic classification of a KU.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusBelieved   Status = "believed"
	StatusTested     Status = "tested"
	StatusVerified   Status = "verified"
	StatusDisputed   Status = "disputed"
	StatusDeprecated Status = "deprecated"
	StatusRetracted  Status = "retracted"
)

// Record is a single evidence attachment.
type Record struct {
	ID        string
	Target    string
	Type      Type
	Direction Direction
	Strength  float64
	Data      map[string]any
	Source    string
	CreatedAt time.Time
}

// RecordID satisfies store.Identified.
func (r Record) RecordID() string { return r.ID }

// maintenanceEntry is one sticky-status change (deprecate/retract) in a
// KU's maintenance history.
type maintenanceEntry struct {
	Status      Status
	Reason      string
	SuccessorID string
	EvidenceID  string
	At          time.Time
}

const defaultCeiling = 500_000

// Store holds evidence records, indexed by target KU, plus the sticky
// maintenance status set by deprecate/retract.
type Store struct {
	clock   clock.Source
	data    *store.Bounded[Record]

	mu      sync.Mutex // guards sticky and history
	sticky  map[string]Status
	history map[string][]maintenanceEntry
}

// New creates an evidence Store. ceiling <= 0 selects a generous default.
func New(clk clock.Source, ceiling int) *Store {
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	return &Store{
		clock: clk,
		data: store.New[Record](ceiling,
			store.Index[Record]{Name: "target", Extract: func(r Record) (string, bool) { return r.Target, true }},
		),
		sticky:  make(map[string]Status),
		history: make(map[string][]maintenanceEntry),
	}
}

// Attach records a new evidence entry against target.
func (s *Store) Attach(target string, typ Type, dir Direction, strength float64, data map[string]any, source string) (Record, *apperr.Error) {
	if !validType(typ) {
		return Record{}, apperr.New(apperr.InvalidEvidenceType, "invalid evidence type %q", typ)
	}
	if !validDirection(dir) {
		return Record{}, apperr.New(apperr.InvalidDirection, "invalid direction %q", dir)
	}
	if strength < 0 || strength > 1 {
		return Record{}, apperr.New(apperr.InvalidField, "strength must be within [0,1]")
	}

	rec := Record{
		ID:        s.clock.NewID("ev"),
		Target:    target,
		Type:      typ,
		Direction: dir,
		Strength:  strength,
		Data:      data,
		Source:    source,
		CreatedAt: s.clock.Now(),
	}
	s.data.Put(rec)
	return rec, nil
}

// EvidenceFor returns every evidence record attached to kuId, in
// insertion order.
func (s *Store) EvidenceFor(kuID string) []Record {
	ids := s.data.ByIndex("target", kuID)
	sort.Strings(ids) // ids encode creation order (time36 prefix) so this is stable chronological order
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.data.Get(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// DeriveStatus is a pure function of the evidence set plus any sticky
// maintenance status, following the algorithm in spec.md 4.D.
func DeriveStatus(evidence []Record, sticky Status, stickySet bool) Status {
	if stickySet {
		return sticky
	}
	if len(evidence) == 0 {
		return StatusUnverified
	}

	var supportSum, refuteSum float64
	hasPassingTest := false
	hasSupportingCrossRef := false
	for _, e := range evidence {
		switch e.Direction {
		case DirSupports:
			supportSum += e.Strength
		case DirRefutes:
			refuteSum += e.Strength
		}
		if e.Type == TypeTestResult {
			if result, ok := e.Data["result"].(string); ok && result == "pass" {
				hasPassingTest = true
			}
		}
		if e.Type == TypeCrossReference && e.Direction == DirSupports {
			hasSupportingCrossRef = true
		}
	}

	if supportSum > 0 && refuteSum > 0 {
		maxSR := math.Max(supportSum, refuteSum)
		if math.Abs(supportSum-refuteSum) <= 0.3*maxSR {
			return StatusDisputed
		}
	}

	if hasPassingTest && hasSupportingCrossRef {
		return StatusVerified
	}
	if hasPassingTest {
		return StatusTested
	}
	if supportSum > 0 {
		return StatusBelieved
	}
	return StatusUnverified
}

// Status returns the derived status for kuID, combining live evidence
// with any sticky maintenance flag.
func (s *Store) Status(kuID string) Status {
	s.mu.Lock()
	sticky, ok := s.sticky[kuID]
	s.mu.Unlock()
	return DeriveStatus(s.EvidenceFor(kuID), sticky, ok)
}

// Deprecate sets a sticky "deprecated" status and appends a maintenance
// history entry. Sticky statuses are final until a new one is set.
func (s *Store) Deprecate(kuID, reason, successorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky[kuID] = StatusDeprecated
	s.history[kuID] = append(s.history[kuID], maintenanceEntry{
		Status:      StatusDeprecated,
		Reason:      reason,
		SuccessorID: successorID,
		At:          s.clock.Now(),
	})
}

// Retract sets a sticky "retracted" status and appends a maintenance
// history entry, optionally citing the evidence id that prompted it.
func (s *Store) Retract(kuID, reason, evidenceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky[kuID] = StatusRetracted
	s.history[kuID] = append(s.history[kuID], maintenanceEntry{
		Status:     StatusRetracted,
		Reason:     reason,
		EvidenceID: evidenceID,
		At:         s.clock.Now(),
	})
}

// MaintenanceHistoryLen reports how many maintenance actions a KU has
// accumulated; used by tests and operator introspection.
func (s *Store) MaintenanceHistoryLen(kuID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history[kuID])
}
