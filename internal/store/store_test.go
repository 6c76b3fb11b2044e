package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	id     string
	tier   string
	domain string
}

func (w widget) RecordID() string { return w.id }

func newWidgetStore(ceiling int) *Bounded[widget] {
	return New[widget](ceiling,
		Index[widget]{Name: "tier", Extract: func(w widget) (string, bool) { return w.tier, w.tier != "" }},
		Index[widget]{Name: "domain", Extract: func(w widget) (string, bool) { return w.domain, w.domain != "" }},
	)
}

func TestBounded_PutGetList(t *testing.T) {
	s := newWidgetStore(0)
	s.Put(widget{id: "a", tier: "base"})
	s.Put(widget{id: "b", tier: "base"})

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.id)
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.List(), 2)
}

func TestBounded_ByIndexNeverStale(t *testing.T) {
	s := newWidgetStore(0)
	s.Put(widget{id: "a", tier: "base", domain: "x"})
	s.Put(widget{id: "b", tier: "base", domain: "y"})

	ids := s.ByIndex("tier", "base")
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	s.Remove("a")
	ids = s.ByIndex("tier", "base")
	assert.Equal(t, []string{"b"}, ids)

	// Re-putting under a new tier must remove it from the old index.
	s.Put(widget{id: "b", tier: "mega", domain: "y"})
	assert.Empty(t, s.ByIndex("tier", "base"))
	assert.Equal(t, []string{"b"}, s.ByIndex("tier", "mega"))
}

func TestBounded_FIFOEviction(t *testing.T) {
	s := newWidgetStore(3)
	for i := 0; i < 5; i++ {
		s.Put(widget{id: fmt.Sprintf("w%d", i), tier: "base"})
	}
	assert.Equal(t, 3, s.Len())
	_, ok := s.Get("w0")
	assert.False(t, ok, "oldest record should have been evicted")
	_, ok = s.Get("w1")
	assert.False(t, ok)
	_, ok = s.Get("w4")
	assert.True(t, ok)

	// Index must not retain evicted ids.
	ids := s.ByIndex("tier", "base")
	assert.ElementsMatch(t, []string{"w2", "w3", "w4"}, ids)
}

func TestBounded_RemoveUnknownIsNoop(t *testing.T) {
	s := newWidgetStore(0)
	assert.False(t, s.Remove("missing"))
}
