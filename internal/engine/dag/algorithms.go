package dag

import (
	"fmt"
	"sort"
	"time"
)

// TopologicalSort returns task ids in dependency order using Kahn's
// algorithm. The ready set is kept sorted so the order is deterministic
// for a fixed graph. Fails if the graph has a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topologicalSortLocked()
}

func (g *Graph) topologicalSortLocked() ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	for id := range g.tasks {
		inDegree[id] = len(g.predecessorIDs(id))
	}

	ready := make([]string, 0)
	for _, id := range g.sortedIDs() {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)

		released := make([]string, 0)
		for _, succ := range g.successorIDs(cur) {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				released = append(released, succ)
			}
		}
		// Keep the ready set sorted for stable output.
		ready = append(ready, released...)
		sort.Strings(ready)
	}

	if len(order) != len(g.tasks) {
		return nil, fmt.Errorf("topological sort incomplete: processed %d of %d tasks (cycle present)", len(order), len(g.tasks))
	}
	return order, nil
}

// Levels assigns each task its dependency level: 0 for tasks with no
// predecessors, otherwise 1 + the maximum predecessor level.
func (g *Graph) Levels() (map[string]int, int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, err := g.topologicalSortLocked()
	if err != nil {
		return nil, 0, err
	}

	levels := make(map[string]int, len(order))
	maxLevel := 0
	for _, id := range order {
		level := 0
		for _, pred := range g.predecessorIDs(id) {
			if levels[pred]+1 > level {
				level = levels[pred] + 1
			}
		}
		levels[id] = level
		if level > maxLevel {
			maxLevel = level
		}
	}
	return levels, maxLevel, nil
}

// CircularChains finds every strongly connected component of size > 1
// (plus self-loops) using Tarjan's algorithm and renders each as an
// ordered id list closing back on its first element. Chains start at
// their lexicographically smallest member.
func (g *Graph) CircularChains() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	index := 0
	indices := make(map[string]int)
	lowLinks := make(map[string]int)
	onStack := make(map[string]bool)
	stack := make([]string, 0)
	var sccs [][]string

	var strongConnect func(id string)
	strongConnect = func(id string) {
		indices[id] = index
		lowLinks[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, succ := range g.successorIDs(id) {
			if _, seen := indices[succ]; !seen {
				strongConnect(succ)
				if lowLinks[succ] < lowLinks[id] {
					lowLinks[id] = lowLinks[succ]
				}
			} else if onStack[succ] {
				if indices[succ] < lowLinks[id] {
					lowLinks[id] = indices[succ]
				}
			}
		}

		if lowLinks[id] == indices[id] {
			scc := make([]string, 0)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == id {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, id := range g.sortedIDs() {
		if _, seen := indices[id]; !seen {
			strongConnect(id)
		}
	}

	chains := make([][]string, 0)
	for _, scc := range sccs {
		if len(scc) > 1 {
			chains = append(chains, g.orderChain(scc))
			continue
		}
		// Single-node SCC: only a cycle if it has a self-loop.
		id := scc[0]
		for _, e := range g.succ[id] {
			if e.To == id {
				chains = append(chains, []string{id, id})
				break
			}
		}
	}

	sort.Slice(chains, func(i, j int) bool { return chains[i][0] < chains[j][0] })
	return chains
}

// orderChain walks an SCC starting from its smallest id, following
// successor edges inside the component, and closes the chain on the
// first element.
func (g *Graph) orderChain(scc []string) []string {
	member := make(map[string]bool, len(scc))
	for _, id := range scc {
		member[id] = true
	}

	start := scc[0]
	for _, id := range scc {
		if id < start {
			start = id
		}
	}

	chain := []string{start}
	visited := map[string]bool{start: true}
	cur := start
	for len(chain) < len(scc) {
		next := ""
		for _, succ := range g.successorIDs(cur) {
			if member[succ] && !visited[succ] {
				next = succ
				break
			}
		}
		if next == "" {
			// Branchy component: append remaining members in sorted order.
			for _, id := range scc {
				if !visited[id] {
					chain = append(chain, id)
					visited[id] = true
				}
			}
			sort.Strings(chain[1:])
			break
		}
		chain = append(chain, next)
		visited[next] = true
		cur = next
	}

	return append(chain, start)
}

// CriticalPath computes the longest path by summed estimated duration
// using topological relaxation. Ties break toward higher priority, then
// lexicographically smaller id. Fails if the graph has a cycle.
func (g *Graph) CriticalPath() ([]string, time.Duration, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, err := g.topologicalSortLocked()
	if err != nil {
		return nil, 0, err
	}
	if len(order) == 0 {
		return []string{}, 0, nil
	}

	finish := make(map[string]time.Duration, len(order))
	parent := make(map[string]string, len(order))

	for _, id := range order {
		task := g.tasks[id]
		bestParent := ""
		for _, pred := range g.predecessorIDs(id) {
			if bestParent == "" ||
				finish[pred] > finish[bestParent] ||
				(finish[pred] == finish[bestParent] && g.preferTask(pred, bestParent)) {
				bestParent = pred
			}
		}
		finish[id] = finish[bestParent] + task.EffectiveDuration()
		parent[id] = bestParent
	}

	end := order[0]
	for _, id := range order[1:] {
		if finish[id] > finish[end] || (finish[id] == finish[end] && g.preferTask(id, end)) {
			end = id
		}
	}

	path := make([]string, 0)
	for cur := end; cur != ""; cur = parent[cur] {
		path = append([]string{cur}, path...)
	}
	return path, finish[end], nil
}

// preferTask reports whether task a wins a tie against b: higher priority
// first, then lexicographically smaller id.
func (g *Graph) preferTask(a, b string) bool {
	ta, tb := g.tasks[a], g.tasks[b]
	if ta == nil || tb == nil {
		return a < b
	}
	if ta.Priority.Rank() != tb.Priority.Rank() {
		return ta.Priority.Rank() > tb.Priority.Rank()
	}
	return a < b
}

// TransitiveDependents returns every id that transitively depends on id.
func (g *Graph) TransitiveDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, succ := range g.successorIDs(cur) {
			if !visited[succ] {
				visited[succ] = true
				stack = append(stack, succ)
			}
		}
	}

	out := make([]string, 0, len(visited))
	for dep := range visited {
		if dep != id {
			out = append(out, dep)
		}
	}
	sort.Strings(out)
	return out
}

// disconnectThreshold is the fraction of remaining tasks a single removal
// must cut off from their roots for the task to count as critical.
const disconnectThreshold = 0.25

// CriticalTasks returns the union of critical-path members and tasks whose
// removal would disconnect more than 25% of the remaining tasks from the
// graph's roots.
func (g *Graph) CriticalTasks(criticalPath []string) []string {
	critical := make(map[string]bool, len(criticalPath))
	for _, id := range criticalPath {
		critical[id] = true
	}

	ids := g.TaskIDs()
	n := len(ids)
	if n > 2 {
		before := g.reachableFromRoots("")
		for _, id := range ids {
			if critical[id] {
				continue
			}
			after := g.reachableFromRoots(id)
			disconnected := 0
			for other := range before {
				if other != id && !after[other] {
					disconnected++
				}
			}
			if float64(disconnected) > disconnectThreshold*float64(n-1) {
				critical[id] = true
			}
		}
	}

	out := make([]string, 0, len(critical))
	for id := range critical {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// reachableFromRoots returns the set of ids reachable from any root when
// the task named by skip (may be empty) is excluded from the graph.
func (g *Graph) reachableFromRoots(skip string) map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	stack := make([]string, 0)
	for _, id := range g.sortedIDs() {
		if id == skip {
			continue
		}
		// Roots ignore edges from the skipped task.
		isRoot := true
		for _, pred := range g.predecessorIDs(id) {
			if pred != skip {
				isRoot = false
				break
			}
		}
		if isRoot {
			stack = append(stack, id)
		}
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, succ := range g.successorIDs(cur) {
			if succ != skip && !visited[succ] {
				stack = append(stack, succ)
			}
		}
	}
	return visited
}

// TransitiveClosure returns reachability over the graph, including each
// node reaching itself.
func (g *Graph) TransitiveClosure() map[string]map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	closure := make(map[string]map[string]bool, len(g.tasks))
	for id := range g.tasks {
		closure[id] = map[string]bool{id: true}
		for _, e := range g.succ[id] {
			closure[id][e.To] = true
		}
	}
	for k := range g.tasks {
		for i := range g.tasks {
			if !closure[i][k] {
				continue
			}
			for j := range g.tasks {
				if closure[k][j] {
					closure[i][j] = true
				}
			}
		}
	}
	return closure
}

// RedundantEdges counts edges (from, to) for which an alternative path
// from -> intermediate -> to exists; these are candidates for transitive
// reduction.
func (g *Graph) RedundantEdges() int {
	closure := g.TransitiveClosure()

	g.mu.RLock()
	defer g.mu.RUnlock()

	redundant := 0
	for from, edges := range g.succ {
		for _, e := range edges {
			for mid := range g.tasks {
				if mid == from || mid == e.To {
					continue
				}
				if closure[from][mid] && closure[mid][e.To] {
					redundant++
					break
				}
			}
		}
	}
	return redundant
}
