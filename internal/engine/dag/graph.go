package dag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/taskforge/taskforge-cli/internal/types"
)

// Graph is a directed graph over tasks. Edges run in execution order:
// Edge(From, To) means From must be sequenced no later than To.
//
// Adjacency is kept as two flat tables (successors and predecessors); no
// node holds an owning back-pointer. Cycles are representable; they are
// data to report, not a structural error.
type Graph struct {
	mu sync.RWMutex

	tasks map[string]*types.Task
	succ  map[string][]*Edge // from -> outgoing edges
	pred  map[string][]*Edge // to -> incoming edges
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tasks: make(map[string]*types.Task),
		succ:  make(map[string][]*Edge),
		pred:  make(map[string][]*Edge),
	}
}

// AddTask registers a task node. Adding a task twice is an error.
func (g *Graph) AddTask(task *types.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	g.tasks[task.ID] = task
	return nil
}

// AddEdge adds a directed edge. Both endpoints must exist. Adding the same
// (from, to, kind) twice is idempotent. Self-loops are recorded so cycle
// detection can report them.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge == nil {
		return fmt.Errorf("edge cannot be nil")
	}
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("edge endpoints cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.tasks[edge.From]; !ok {
		return fmt.Errorf("source task %s not found", edge.From)
	}
	if _, ok := g.tasks[edge.To]; !ok {
		return fmt.Errorf("target task %s not found", edge.To)
	}

	for _, existing := range g.succ[edge.From] {
		if existing.To == edge.To && existing.Kind == edge.Kind {
			return nil
		}
	}

	g.succ[edge.From] = append(g.succ[edge.From], edge)
	g.pred[edge.To] = append(g.pred[edge.To], edge)
	return nil
}

// RemoveTask removes a task and every edge touching it.
func (g *Graph) RemoveTask(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.tasks[id]; !ok {
		return fmt.Errorf("task %s not found", id)
	}

	delete(g.succ, id)
	delete(g.pred, id)
	for from := range g.succ {
		g.succ[from] = dropEdges(g.succ[from], func(e *Edge) bool { return e.To == id })
	}
	for to := range g.pred {
		g.pred[to] = dropEdges(g.pred[to], func(e *Edge) bool { return e.From == id })
	}
	delete(g.tasks, id)
	return nil
}

func dropEdges(edges []*Edge, match func(*Edge) bool) []*Edge {
	kept := edges[:0]
	for _, e := range edges {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	return kept
}

// Task returns the task with the given id, or nil.
func (g *Graph) Task(id string) *types.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tasks[id]
}

// TaskIDs returns all task ids in lexicographic order. Every traversal in
// this package iterates ids in this order so results are deterministic.
func (g *Graph) TaskIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedIDs()
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Predecessors returns the ids that must run before id, sorted.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.predecessorIDs(id)
}

func (g *Graph) predecessorIDs(id string) []string {
	edges := g.pred[id]
	out := make([]string, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}

// Successors returns the ids that must run after id, sorted.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.successorIDs(id)
}

func (g *Graph) successorIDs(id string) []string {
	edges := g.succ[id]
	out := make([]string, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// InDegree returns the number of distinct predecessors of id.
func (g *Graph) InDegree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.predecessorIDs(id))
}

// OutDegree returns the number of distinct successors of id.
func (g *Graph) OutDegree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.successorIDs(id))
}

// TaskCount returns the number of tasks.
func (g *Graph) TaskCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, edges := range g.succ {
		n += len(edges)
	}
	return n
}

// Edges returns every edge sorted by (from, to, kind).
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Edge, 0)
	for _, edges := range g.succ {
		out = append(out, edges...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// HasEdge reports whether any edge runs from one id to another.
func (g *Graph) HasEdge(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, e := range g.succ[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// Roots returns ids with no predecessors, sorted.
func (g *Graph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	roots := make([]string, 0)
	for _, id := range g.sortedIDs() {
		if len(g.pred[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns ids with no successors, sorted.
func (g *Graph) Leaves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	leaves := make([]string, 0)
	for _, id := range g.sortedIDs() {
		if len(g.succ[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Independent returns ids with neither predecessors nor successors.
func (g *Graph) Independent() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0)
	for _, id := range g.sortedIDs() {
		if len(g.pred[id]) == 0 && len(g.succ[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// IsReachable reports whether a forward path exists between two ids.
func (g *Graph) IsReachable(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if from == to {
		return true
	}
	visited := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, e := range g.succ[cur] {
			if e.To == to {
				return true
			}
			if !visited[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// Clone returns a deep copy of the graph; tasks are shared (the engine
// treats them as immutable snapshots), edges are copied.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := NewGraph()
	for id, t := range g.tasks {
		clone.tasks[id] = t
	}
	for from, edges := range g.succ {
		for _, e := range edges {
			ec := *e
			clone.succ[from] = append(clone.succ[from], &ec)
			clone.pred[e.To] = append(clone.pred[e.To], &ec)
		}
	}
	return clone
}

// Validate checks internal consistency: every edge endpoint must name a
// known task, and forward/reverse tables must mirror each other. A failure
// here is an invariant violation, not a data-level problem.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for from, edges := range g.succ {
		if _, ok := g.tasks[from]; !ok {
			return fmt.Errorf("edge references unknown source %s", from)
		}
		for _, e := range edges {
			if _, ok := g.tasks[e.To]; !ok {
				return fmt.Errorf("edge %s->%s references unknown target", from, e.To)
			}
			if !containsEdge(g.pred[e.To], e) {
				return fmt.Errorf("edge %s->%s missing from predecessor table", from, e.To)
			}
		}
	}
	for to, edges := range g.pred {
		for _, e := range edges {
			if !containsEdge(g.succ[e.From], e) {
				return fmt.Errorf("edge %s->%s missing from successor table", e.From, to)
			}
		}
	}
	return nil
}

func containsEdge(edges []*Edge, want *Edge) bool {
	for _, e := range edges {
		if e == want {
			return true
		}
	}
	return false
}
