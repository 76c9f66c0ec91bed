// Package dag implements the planning and scheduling core: the dependency
// graph store, edge discovery, priority scoring, plan construction, queue
// optimization, and execution monitoring.
package dag

import (
	"time"
)

// EdgeKind classifies how a dependency edge was discovered.
type EdgeKind string

const (
	// EdgeExplicit comes from a declared dependency reference.
	EdgeExplicit EdgeKind = "explicit"

	// EdgeImplicit was inferred from content overlap or category ordering.
	EdgeImplicit EdgeKind = "implicit"

	// EdgeResource orders tasks that share a capability.
	EdgeResource EdgeKind = "resource"

	// EdgeTemporal chains tasks whose deadlines cluster together.
	EdgeTemporal EdgeKind = "temporal"
)

// Edge is a directed dependency: From must be sequenced no later than To.
type Edge struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Kind       EdgeKind `json:"kind"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
}

// Confidence levels assigned by the discovery heuristics.
const (
	ConfidenceExplicit   = 1.0
	ConfidenceResource   = 0.7
	ConfidenceTemporal   = 0.6
	ConfidenceStructural = 0.5
	ConfidenceOptional   = 0.5
)

// Analysis is the full result of a dependency-analysis pass.
type Analysis struct {
	Nodes                []string         `json:"nodes"`
	Edges                []*Edge          `json:"edges"`
	Levels               map[string]int   `json:"levels"`
	MaxLevel             int              `json:"maxLevel"`
	CriticalPath         []string         `json:"criticalPath"`
	CriticalPathDuration time.Duration    `json:"criticalPathDuration"`
	IndependentTasks     []string         `json:"independentTasks"`
	CriticalTasks        []string         `json:"criticalTasks"`
	CircularChains       [][]string       `json:"circularChains"`
	EdgeCounts           map[EdgeKind]int `json:"edgeCountsByKind"`
	Errors               []IssueRecord    `json:"errors,omitempty"`
	Warnings             []string         `json:"warnings,omitempty"`
}

// HasCycles reports whether the analysis found any circular chain.
func (a *Analysis) HasCycles() bool { return len(a.CircularChains) > 0 }

// OnCriticalPath reports whether id lies on the critical path.
func (a *Analysis) OnCriticalPath(id string) bool {
	for _, cp := range a.CriticalPath {
		if cp == id {
			return true
		}
	}
	return false
}

// IssueKind names a data-level problem found during analysis or planning.
type IssueKind string

const (
	IssueMissingDependency  IssueKind = "missing_dependency"
	IssueCircularDependency IssueKind = "circular_dependency"
	IssueMalformedTask      IssueKind = "malformed_task"
	IssueResourceContention IssueKind = "resource_contention"
	IssuePriorityInversion  IssueKind = "priority_inversion"
)

// IssueRecord is one enumerated problem; data-level problems are reported,
// never raised.
type IssueRecord struct {
	Kind    IssueKind `json:"kind"`
	TaskIDs []string  `json:"taskIds"`
	Message string    `json:"message"`
}

// Severity grades conflicts and bottlenecks.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Conflict is a named, scored obstruction to plan validity.
type Conflict struct {
	Kind       IssueKind `json:"kind"`
	TaskIDs    []string  `json:"taskIds"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Resolution string    `json:"resolution,omitempty"`
}

// ValidationResult enumerates every validation problem; it never
// short-circuits on the first error.
type ValidationResult struct {
	IsValid              bool          `json:"isValid"`
	Errors               []IssueRecord `json:"errors"`
	MissingDependencies  []string      `json:"missingDependencies"`
	CircularDependencies [][]string    `json:"circularDependencies"`
}

// Strategy selects how the planner sequences tasks.
type Strategy string

const (
	StrategyFIFO            Strategy = "fifo"
	StrategyPriority        Strategy = "priority"
	StrategyCriticalPath    Strategy = "critical_path"
	StrategyResourceOptimal Strategy = "resource_optimal"
	StrategyDependencyAware Strategy = "dependency_aware"
)

// KnownStrategies lists every planner strategy in a stable order.
var KnownStrategies = []Strategy{
	StrategyFIFO,
	StrategyPriority,
	StrategyCriticalPath,
	StrategyResourceOptimal,
	StrategyDependencyAware,
}

// ValidStrategy reports whether s names a known planner strategy.
func ValidStrategy(s Strategy) bool {
	for _, k := range KnownStrategies {
		if s == k {
			return true
		}
	}
	return false
}

// BatchingStrategy selects how the optimizer groups tasks into batches.
type BatchingStrategy string

const (
	BatchSimilarTasks         BatchingStrategy = "similar_tasks"
	BatchResourceOptimization BatchingStrategy = "resource_optimization"
	BatchTemporal             BatchingStrategy = "temporal"
)

// ValidBatchingStrategy reports whether b names a known batching strategy.
func ValidBatchingStrategy(b BatchingStrategy) bool {
	switch b {
	case BatchSimilarTasks, BatchResourceOptimization, BatchTemporal:
		return true
	}
	return false
}

// Group is one parallel batch of a plan: all members may run concurrently
// once every earlier group has finished.
type Group struct {
	Tasks             []string      `json:"tasks"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	MaxConcurrency    int           `json:"maxConcurrency"`
	Priority          float64       `json:"priority"`
}

// PlanMetadata records how a plan was produced.
type PlanMetadata struct {
	Algorithm   string    `json:"algorithm"`
	Factors     []string  `json:"factors"`
	Constraints []string  `json:"constraints"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Plan is an ordered sequence of parallel groups.
type Plan struct {
	ID                string        `json:"id"`
	Strategy          Strategy      `json:"strategy"`
	Groups            []Group       `json:"groups"`
	CriticalPath      []string      `json:"criticalPath"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	MaxConcurrency    int           `json:"maxConcurrency"`
	Metadata          PlanMetadata  `json:"metadata"`
}

// TaskCount returns the number of tasks across all groups.
func (p *Plan) TaskCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Tasks)
	}
	return n
}

// GroupOf returns the index of the group containing id, or -1.
func (p *Plan) GroupOf(id string) int {
	for i, g := range p.Groups {
		for _, t := range g.Tasks {
			if t == id {
				return i
			}
		}
	}
	return -1
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	clone := *p
	clone.Groups = make([]Group, len(p.Groups))
	for i, g := range p.Groups {
		g.Tasks = append([]string(nil), g.Tasks...)
		clone.Groups[i] = g
	}
	clone.CriticalPath = append([]string(nil), p.CriticalPath...)
	clone.Metadata.Factors = append([]string(nil), p.Metadata.Factors...)
	clone.Metadata.Constraints = append([]string(nil), p.Metadata.Constraints...)
	return &clone
}

// PlanMetrics is a compact snapshot of plan shape, used in recommendation
// before/after comparisons.
type PlanMetrics struct {
	Groups            int           `json:"groups"`
	Tasks             int           `json:"tasks"`
	MaxConcurrency    int           `json:"maxConcurrency"`
	AvgGroupSize      float64       `json:"avgGroupSize"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
}

// MetricsOf summarizes a plan into PlanMetrics.
func MetricsOf(p *Plan) PlanMetrics {
	m := PlanMetrics{
		Groups:            len(p.Groups),
		Tasks:             p.TaskCount(),
		MaxConcurrency:    p.MaxConcurrency,
		EstimatedDuration: p.EstimatedDuration,
	}
	if m.Groups > 0 {
		m.AvgGroupSize = float64(m.Tasks) / float64(m.Groups)
	}
	return m
}

// PlanAnalysis summarizes the shape of a plan.
type PlanAnalysis struct {
	TotalTasks            int           `json:"totalTasks"`
	TotalGroups           int           `json:"totalGroups"`
	AvgGroupSize          float64       `json:"avgGroupSize"`
	MaxGroupSize          int           `json:"maxGroupSize"`
	MinGroupSize          int           `json:"minGroupSize"`
	ParallelizationFactor float64       `json:"parallelizationFactor"`
	Efficiency            float64       `json:"efficiency"`
	EstimatedDuration     time.Duration `json:"estimatedDuration"`
}

// AnalyzePlan computes summary metrics for a plan against a concurrency
// limit.
func AnalyzePlan(p *Plan, maxConcurrent int) *PlanAnalysis {
	if p == nil {
		return nil
	}
	a := &PlanAnalysis{
		TotalGroups:       len(p.Groups),
		EstimatedDuration: p.EstimatedDuration,
	}
	for _, g := range p.Groups {
		size := len(g.Tasks)
		a.TotalTasks += size
		if size > a.MaxGroupSize {
			a.MaxGroupSize = size
		}
		if a.MinGroupSize == 0 || size < a.MinGroupSize {
			a.MinGroupSize = size
		}
	}
	if a.TotalGroups > 0 {
		a.AvgGroupSize = float64(a.TotalTasks) / float64(a.TotalGroups)
		a.ParallelizationFactor = a.AvgGroupSize
	}
	if maxConcurrent > 0 {
		a.Efficiency = a.ParallelizationFactor / float64(maxConcurrent)
		if a.Efficiency > 1 {
			a.Efficiency = 1
		}
	}
	return a
}

// PlanComparison reports how two plans differ.
type PlanComparison struct {
	DurationDifference    time.Duration `json:"durationDifference"`
	DurationPercentChange float64       `json:"durationPercentChange"`
	GroupDifference       int           `json:"groupDifference"`
	ParallelizationChange float64       `json:"parallelizationChange"`
	Recommendation        string        `json:"recommendation"`
}

// ComparePlans compares two plans and recommends one.
func ComparePlans(a, b *Plan) *PlanComparison {
	if a == nil || b == nil {
		return nil
	}
	ma, mb := MetricsOf(a), MetricsOf(b)
	cmp := &PlanComparison{
		DurationDifference:    mb.EstimatedDuration - ma.EstimatedDuration,
		GroupDifference:       mb.Groups - ma.Groups,
		ParallelizationChange: mb.AvgGroupSize - ma.AvgGroupSize,
	}
	if ma.EstimatedDuration > 0 {
		cmp.DurationPercentChange = float64(cmp.DurationDifference) / float64(ma.EstimatedDuration) * 100
	}
	switch {
	case cmp.DurationDifference < 0:
		cmp.Recommendation = "second plan is faster"
	case cmp.DurationDifference > 0:
		cmp.Recommendation = "first plan is faster"
	case cmp.ParallelizationChange > 0:
		cmp.Recommendation = "second plan parallelizes better"
	default:
		cmp.Recommendation = "plans are equivalent"
	}
	return cmp
}
