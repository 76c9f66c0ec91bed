package dag

import (
	"reflect"
	"testing"
	"time"
)

func TestTopologicalSortLinear(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("c"), newTask("a"), newTask("b"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "b", "c")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("order = %v", order)
	}
}

func TestTopologicalSortDeterministic(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("z"), newTask("m"), newTask("a"))

	first, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	// No edges: pure lexicographic order, stable across runs.
	if !reflect.DeepEqual(first, []string{"a", "m", "z"}) {
		t.Errorf("order = %v", first)
	}
	for i := 0; i < 5; i++ {
		again, _ := g.TopologicalSort()
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "b", "a")

	if _, err := g.TopologicalSort(); err == nil {
		t.Error("expected error for cyclic graph")
	}
}

func TestLevels(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"), newTask("c"), newTask("d"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "a", "c")
	mustEdge(t, g, "b", "d")
	mustEdge(t, g, "c", "d")

	levels, maxLevel, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	want := map[string]int{"a": 0, "b": 1, "c": 1, "d": 2}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
	if maxLevel != 2 {
		t.Errorf("maxLevel = %d, want 2", maxLevel)
	}
}

func TestCircularChainsTriangle(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("x"), newTask("y"), newTask("z"))
	mustEdge(t, g, "x", "y")
	mustEdge(t, g, "y", "z")
	mustEdge(t, g, "z", "x")

	chains := g.CircularChains()
	if len(chains) != 1 {
		t.Fatalf("chains = %v, want one chain", chains)
	}
	// Chain starts at the lexicographically smallest member and closes on
	// its first element.
	if !reflect.DeepEqual(chains[0], []string{"x", "y", "z", "x"}) {
		t.Errorf("chain = %v", chains[0])
	}
}

func TestCircularChainsSelfLoop(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("t"))
	if err := g.AddEdge(&Edge{From: "t", To: "t", Kind: EdgeExplicit}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	chains := g.CircularChains()
	if len(chains) != 1 || !reflect.DeepEqual(chains[0], []string{"t", "t"}) {
		t.Errorf("chains = %v, want [[t t]]", chains)
	}
}

func TestCircularChainsAcyclic(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"))
	mustEdge(t, g, "a", "b")

	if chains := g.CircularChains(); len(chains) != 0 {
		t.Errorf("chains = %v, want none", chains)
	}
}

func TestCriticalPathDiamond(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g,
		newTask("a", withDuration(time.Minute)),
		newTask("b", withDuration(3*time.Minute)),
		newTask("c", withDuration(time.Minute)),
		newTask("d", withDuration(time.Minute)),
	)
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "a", "c")
	mustEdge(t, g, "b", "d")
	mustEdge(t, g, "c", "d")

	path, duration, err := g.CriticalPath()
	if err != nil {
		t.Fatalf("CriticalPath: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"a", "b", "d"}) {
		t.Errorf("path = %v, want [a b d]", path)
	}
	if duration != 5*time.Minute {
		t.Errorf("duration = %s, want 5m", duration)
	}
}

func TestCriticalPathTieBreaksLexicographic(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g,
		newTask("a", withDuration(time.Minute)),
		newTask("b", withDuration(time.Minute)),
		newTask("c", withDuration(time.Minute)),
		newTask("d", withDuration(time.Minute)),
	)
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "a", "c")
	mustEdge(t, g, "b", "d")
	mustEdge(t, g, "c", "d")

	path, _, err := g.CriticalPath()
	if err != nil {
		t.Fatalf("CriticalPath: %v", err)
	}
	// b and c tie on duration and priority; b wins lexicographically.
	if !reflect.DeepEqual(path, []string{"a", "b", "d"}) {
		t.Errorf("path = %v, want [a b d]", path)
	}
}

func TestTransitiveDependents(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"), newTask("c"), newTask("d"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "b", "c")

	if got := g.TransitiveDependents("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("TransitiveDependents(a) = %v", got)
	}
	if got := g.TransitiveDependents("d"); len(got) != 0 {
		t.Errorf("TransitiveDependents(d) = %v, want none", got)
	}
}

func TestCriticalTasksIncludesPath(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"), newTask("c"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "b", "c")

	critical := g.CriticalTasks([]string{"a", "b", "c"})
	if !reflect.DeepEqual(critical, []string{"a", "b", "c"}) {
		t.Errorf("critical = %v", critical)
	}
}

func TestRedundantEdges(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"), newTask("c"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "b", "c")
	mustEdge(t, g, "a", "c") // redundant: a -> b -> c exists

	if got := g.RedundantEdges(); got != 1 {
		t.Errorf("RedundantEdges = %d, want 1", got)
	}
}

func TestTransitiveClosure(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, newTask("a"), newTask("b"), newTask("c"))
	mustEdge(t, g, "a", "b")
	mustEdge(t, g, "b", "c")

	closure := g.TransitiveClosure()
	if !closure["a"]["c"] {
		t.Error("closure should connect a to c")
	}
	if closure["c"]["a"] {
		t.Error("closure should not connect c back to a")
	}
}
