// Package clock provides the identifier and clock service (spec component 4.A).
// Every store in the engine takes a Source instead of calling time.Now or
// reading math/rand directly, so tests can inject a controlled clock.
package clock

import (
	"crypto/rand"
	"encoding/base32"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Source issues monotonic instants and unique, prefixed ids.
type Source interface {
	// Now returns a UTC instant. Successive calls on the same Source
	// never go backwards.
	Now() time.Time
	// NewID returns an id of the form "<prefix>_<time36>_<rand6>".
	NewID(prefix string) string
}

// System is the production Source, backed by the wall clock.
type System struct {
	mu   sync.Mutex
	last time.Time
}

// NewSystem creates a System clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current UTC instant, ratcheted so it never regresses
// even if the OS clock is adjusted backwards between calls.
func (s *System) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// NewID returns a unique id prefixed with prefix, using the current
// instant (base36) and 6 random base32 characters for collision safety
// under concurrent callers.
func (s *System) NewID(prefix string) string {
	return newID(prefix, s.Now())
}

func newID(prefix string, t time.Time) string {
	ts := strconv.FormatInt(t.UnixNano(), 36)
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	suffix := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:]))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return prefix + "_" + ts + "_" + suffix
}

// Fake is a deterministic Source for tests. Now() advances by a fixed
// step on every call unless Set is used to pin a specific instant.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
	counter uint64
}

// NewFake creates a Fake clock starting at start, advancing by step on
// every Now() call (step may be zero to hold time still).
func NewFake(start time.Time, step time.Duration) *Fake {
	return &Fake{current: start.UTC(), step: step}
}

// Now returns the current fake instant and advances it by the step.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.current
	f.current = f.current.Add(f.step)
	return now
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t.UTC()
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// NewID returns a deterministic, monotonically distinguishable id: the
// counter guarantees uniqueness without relying on real randomness.
func (f *Fake) NewID(prefix string) string {
	f.mu.Lock()
	f.counter++
	n := f.counter
	now := f.current
	f.mu.Unlock()
	return prefix + "_" + strconv.FormatInt(now.UnixNano(), 36) + "_" + strconv.FormatUint(n, 36)
}
