package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_NowNeverRegresses(t *testing.T) {
	s := NewSystem()
	prev := s.Now()
	for i := 0; i < 1000; i++ {
		next := s.Now()
		assert.True(t, next.After(prev), "clock must be strictly increasing")
		prev = next
	}
}

func TestSystem_NewIDUniqueUnderConcurrency(t *testing.T) {
	s := NewSystem()
	const n = 200
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() { ids <- s.NewID("ku") }()
	}
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := <-ids
		assert.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
		assert.Regexp(t, `^ku_[0-9a-z]+_[0-9a-z]{1,6}$`, id)
	}
}

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start, time.Second)

	first := f.Now()
	assert.Equal(t, start, first)
	second := f.Now()
	assert.Equal(t, start.Add(time.Second), second)

	f.Set(start.Add(time.Hour))
	third := f.Now()
	assert.Equal(t, start.Add(time.Hour), third)

	// the Now() above already stepped the clock by one second
	f.Advance(10 * time.Minute)
	fourth := f.Now()
	assert.Equal(t, start.Add(time.Hour+10*time.Minute+time.Second), fourth)
}

func TestFake_NewIDDeterministicButUnique(t *testing.T) {
	f := NewFake(time.Unix(0, 0), 0)
	a := f.NewID("ev")
	b := f.NewID("ev")
	assert.NotEqual(t, a, b)
}
