package dag

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/types"
)

// AnalyzerOptions tunes edge discovery.
type AnalyzerOptions struct {
	// JaccardThreshold is the minimum keyword overlap for a content edge.
	JaccardThreshold float64

	// MinConfidence filters discovered (non-explicit) edges below this
	// confidence.
	MinConfidence float64

	// TemporalWindow clusters deadlines that fall within this span.
	TemporalWindow time.Duration

	// EnableImplicit toggles the content and category passes.
	EnableImplicit bool

	// EnableResource toggles the capability-sharing pass.
	EnableResource bool

	// EnableTemporal toggles the deadline-clustering pass.
	EnableTemporal bool
}

// DefaultAnalyzerOptions returns production defaults with every discovery
// pass enabled.
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{
		JaccardThreshold: 0.25,
		MinConfidence:    0,
		TemporalWindow:   time.Hour,
		EnableImplicit:   true,
		EnableResource:   true,
		EnableTemporal:   true,
	}
}

// Analyzer discovers dependency edges from task descriptors and derives
// the analysis artifacts: levels, critical path, circular chains,
// independent and critical tasks.
type Analyzer struct {
	opts   AnalyzerOptions
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer. A nil logger falls back to a no-op.
func NewAnalyzer(opts AnalyzerOptions, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{opts: opts, logger: logger}
}

// Analyze builds the dependency graph for the given tasks and computes
// the full analysis. Data-level problems (missing targets, malformed
// descriptors) are enumerated in the result; only invariant violations
// return an error.
func (a *Analyzer) Analyze(tasks []*types.Task) (*Graph, *Analysis, error) {
	valid := make([]*types.Task, 0, len(tasks))
	analysis := &Analysis{
		Levels:     make(map[string]int),
		EdgeCounts: make(map[EdgeKind]int),
	}

	for _, t := range tasks {
		if t == nil || t.ID == "" {
			analysis.Warnings = append(analysis.Warnings, "skipped task with missing id")
			analysis.Errors = append(analysis.Errors, IssueRecord{
				Kind:    IssueMalformedTask,
				Message: "task descriptor missing id",
			})
			continue
		}
		valid = append(valid, t)
	}
	types.SortTasksByID(valid)

	graph := NewGraph()
	byID := make(map[string]*types.Task, len(valid))
	for _, t := range valid {
		if err := graph.AddTask(t); err != nil {
			analysis.Warnings = append(analysis.Warnings, fmt.Sprintf("skipped duplicate task %s", t.ID))
			continue
		}
		byID[t.ID] = t
		analysis.Nodes = append(analysis.Nodes, t.ID)
	}

	edges := a.discoverEdges(valid, byID, analysis)
	for _, e := range edges {
		if e.Kind != EdgeExplicit && e.Confidence < a.opts.MinConfidence {
			continue
		}
		if err := graph.AddEdge(e); err != nil {
			return nil, nil, fmt.Errorf("add edge %s->%s: %w", e.From, e.To, err)
		}
	}

	analysis.Edges = graph.Edges()
	for _, e := range analysis.Edges {
		analysis.EdgeCounts[e.Kind]++
	}

	analysis.CircularChains = graph.CircularChains()
	for _, chain := range analysis.CircularChains {
		analysis.Errors = append(analysis.Errors, IssueRecord{
			Kind:    IssueCircularDependency,
			TaskIDs: chain[:len(chain)-1],
			Message: fmt.Sprintf("circular dependency: %s", strings.Join(chain, " -> ")),
		})
	}

	analysis.IndependentTasks = graph.Independent()

	// Cycles stop level and critical-path derivation; they are reported,
	// never silently broken.
	if !analysis.HasCycles() {
		levels, maxLevel, err := graph.Levels()
		if err != nil {
			return nil, nil, fmt.Errorf("compute levels: %w", err)
		}
		analysis.Levels = levels
		analysis.MaxLevel = maxLevel

		path, duration, err := graph.CriticalPath()
		if err != nil {
			return nil, nil, fmt.Errorf("compute critical path: %w", err)
		}
		analysis.CriticalPath = path
		analysis.CriticalPathDuration = duration
		analysis.CriticalTasks = graph.CriticalTasks(path)
	}

	a.logger.Debug("dependency analysis complete",
		zap.Int("tasks", len(analysis.Nodes)),
		zap.Int("edges", len(analysis.Edges)),
		zap.Int("cycles", len(analysis.CircularChains)),
		zap.Int("errors", len(analysis.Errors)))

	return graph, analysis, nil
}

// discoverEdges runs the discovery passes in a fixed order so results are
// deterministic for a fixed task set.
func (a *Analyzer) discoverEdges(tasks []*types.Task, byID map[string]*types.Task, analysis *Analysis) []*Edge {
	edges := a.explicitEdges(tasks, byID, analysis)
	if a.opts.EnableImplicit {
		edges = append(edges, a.contentEdges(tasks)...)
		edges = append(edges, a.categoryEdges(tasks, byID, edges)...)
	}
	if a.opts.EnableResource {
		edges = append(edges, a.capabilityEdges(tasks)...)
	}
	if a.opts.EnableTemporal {
		edges = append(edges, a.temporalEdges(tasks)...)
	}
	return edges
}

// explicitEdges emits one edge per declared dependency reference. Missing
// targets produce a missing-dependency error unless the reference is
// optional.
func (a *Analyzer) explicitEdges(tasks []*types.Task, byID map[string]*types.Task, analysis *Analysis) []*Edge {
	edges := make([]*Edge, 0)
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep.TaskID]; !ok {
				if dep.Optional {
					continue
				}
				analysis.Errors = append(analysis.Errors, IssueRecord{
					Kind:    IssueMissingDependency,
					TaskIDs: []string{t.ID, dep.TaskID},
					Message: fmt.Sprintf("task %s depends on unknown task %s", t.ID, dep.TaskID),
				})
				continue
			}

			switch dep.Kind {
			case types.DependencyResourceShared:
				from, to := orderIDs(dep.TaskID, t.ID)
				edges = append(edges, &Edge{
					From: from, To: to, Kind: EdgeResource,
					Confidence: ConfidenceResource,
					Reason:     "declared shared resource",
				})
			case types.DependencyTemporal:
				edges = append(edges, &Edge{
					From: dep.TaskID, To: t.ID, Kind: EdgeTemporal,
					Confidence: ConfidenceTemporal,
					Reason:     "declared temporal ordering",
				})
			default:
				confidence := ConfidenceExplicit
				if dep.Optional || dep.Kind == types.DependencySoftPrerequisite {
					confidence = ConfidenceOptional
				}
				edges = append(edges, &Edge{
					From: dep.TaskID, To: t.ID, Kind: EdgeExplicit,
					Confidence: confidence,
					Reason:     "declared dependency",
				})
			}
		}
	}
	return edges
}

// precedenceVocabulary lists title keywords that mark a task as naturally
// preceding related work.
var precedenceVocabulary = []string{
	"setup", "set up", "initialize", "init", "bootstrap", "prepare",
	"analyze", "analysis", "design", "plan", "research", "scaffold",
	"provision", "configure",
}

func titleSuggestsPrecedence(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range precedenceVocabulary {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// contentEdges infers ordering from keyword overlap: when an older task
// whose title suggests precedence shares enough vocabulary with a newer
// task, the older one is assumed to come first.
func (a *Analyzer) contentEdges(tasks []*types.Task) []*Edge {
	bags := make([]map[string]bool, len(tasks))
	for i, t := range tasks {
		bags[i] = keywordBag(t.Title + " " + t.Description)
	}

	edges := make([]*Edge, 0)
	for i, older := range tasks {
		if !titleSuggestsPrecedence(older.Title) {
			continue
		}
		for j, newer := range tasks {
			if i == j || older.CreatedAt.After(newer.CreatedAt) {
				continue
			}
			overlap := jaccard(bags[i], bags[j])
			if overlap <= a.opts.JaccardThreshold {
				continue
			}
			edges = append(edges, &Edge{
				From: older.ID, To: newer.ID, Kind: EdgeImplicit,
				Confidence: overlap,
				Reason:     "content overlap with precedence title",
			})
		}
	}
	return edges
}

// categoryEdges imposes the canonical pipeline ordering between category
// stages unless an explicit edge already relates the pair.
func (a *Analyzer) categoryEdges(tasks []*types.Task, byID map[string]*types.Task, existing []*Edge) []*Edge {
	related := make(map[string]bool)
	for _, e := range existing {
		if e.Kind == EdgeExplicit {
			related[e.From+"\x00"+e.To] = true
			related[e.To+"\x00"+e.From] = true
		}
	}

	edges := make([]*Edge, 0)
	for _, earlier := range tasks {
		es := earlier.Category.PipelineStage()
		if es < 0 {
			continue
		}
		for _, later := range tasks {
			ls := later.Category.PipelineStage()
			if ls < 0 || es >= ls {
				continue
			}
			if related[earlier.ID+"\x00"+later.ID] {
				continue
			}
			edges = append(edges, &Edge{
				From: earlier.ID, To: later.ID, Kind: EdgeImplicit,
				Confidence: ConfidenceStructural,
				Reason:     fmt.Sprintf("category order %s before %s", earlier.Category, later.Category),
			})
		}
	}
	return edges
}

// capabilityEdges serializes tasks that declare the same capability tag.
// Pairs are emitted in lexicographic id order so the relation stays total,
// deterministic, and acyclic.
func (a *Analyzer) capabilityEdges(tasks []*types.Task) []*Edge {
	groups := make(map[string][]string)
	for _, t := range tasks {
		for _, cap := range t.Capabilities {
			groups[cap] = append(groups[cap], t.ID)
		}
	}

	caps := make([]string, 0, len(groups))
	for cap := range groups {
		caps = append(caps, cap)
	}
	sort.Strings(caps)

	edges := make([]*Edge, 0)
	for _, cap := range caps {
		ids := groups[cap]
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				edges = append(edges, &Edge{
					From: ids[i], To: ids[j], Kind: EdgeResource,
					Confidence: ConfidenceResource,
					Reason:     fmt.Sprintf("shared capability %q", cap),
				})
			}
		}
	}
	return edges
}

// temporalEdges chains tasks whose deadlines fall inside the configured
// window, earliest deadline first.
func (a *Analyzer) temporalEdges(tasks []*types.Task) []*Edge {
	withDeadline := make([]*types.Task, 0)
	for _, t := range tasks {
		if t.Deadline != nil {
			withDeadline = append(withDeadline, t)
		}
	}
	if len(withDeadline) < 2 {
		return nil
	}

	sort.Slice(withDeadline, func(i, j int) bool {
		di, dj := *withDeadline[i].Deadline, *withDeadline[j].Deadline
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return withDeadline[i].ID < withDeadline[j].ID
	})

	edges := make([]*Edge, 0)
	clusterStart := 0
	for i := 1; i <= len(withDeadline); i++ {
		inCluster := i < len(withDeadline) &&
			withDeadline[i].Deadline.Sub(*withDeadline[i-1].Deadline) <= a.opts.TemporalWindow
		if inCluster {
			continue
		}
		// Close the cluster [clusterStart, i) and chain its members.
		for j := clusterStart + 1; j < i; j++ {
			edges = append(edges, &Edge{
				From: withDeadline[j-1].ID, To: withDeadline[j].ID, Kind: EdgeTemporal,
				Confidence: ConfidenceTemporal,
				Reason:     "deadlines cluster within window",
			})
		}
		clusterStart = i
	}
	return edges
}

// stopWords are filtered out of keyword bags before overlap scoring.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true,
	"is": true, "are": true, "be": true, "this": true, "that": true,
	"it": true, "as": true, "at": true, "by": true, "from": true,
	"task": true, "new": true,
}

// keywordBag tokenizes text into a lowercased, stop-word filtered set.
func keywordBag(text string) map[string]bool {
	bag := make(map[string]bool)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, tok := range tokens {
		if len(tok) < 2 || stopWords[tok] {
			continue
		}
		bag[tok] = true
	}
	return bag
}

// jaccard returns |a ∩ b| / |a ∪ b|.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// orderIDs returns the pair in lexicographic order.
func orderIDs(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
