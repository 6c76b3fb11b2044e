package graphutil

import "testing"

func TestHasPath_DirectAndTransitive(t *testing.T) {
	edges := map[string][]string{"a": {"b"}, "b": {"c"}}
	if !HasPath(edges, "a", "c") {
		t.Fatal("expected a to reach c transitively")
	}
	if HasPath(edges, "c", "a") {
		t.Fatal("did not expect c to reach a")
	}
}

func TestWouldCreateCycle_DetectsBackEdge(t *testing.T) {
	edges := map[string][]string{"a": {"b"}, "b": {"c"}}
	if !WouldCreateCycle(edges, "c", "a") {
		t.Fatal("expected c->a to create a cycle since a already reaches c")
	}
	if WouldCreateCycle(edges, "a", "d") {
		t.Fatal("did not expect a->d to create a cycle")
	}
}

func TestTransitiveDependents_FollowsChain(t *testing.T) {
	edges := map[string][]string{"a": {"b", "c"}, "b": {"d"}}
	deps := TransitiveDependents(edges, "a")
	want := map[string]bool{"b": true, "c": true, "d": true}
	if len(deps) != 3 {
		t.Fatalf("got %v", deps)
	}
	for _, d := range deps {
		if !want[d] {
			t.Fatalf("unexpected dependent %s", d)
		}
	}
}
