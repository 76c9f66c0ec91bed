package dag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/types"
)

// OptimizationStrategy selects the optimizer's objective.
type OptimizationStrategy string

const (
	OptimizeThroughput         OptimizationStrategy = "throughput_maximization"
	OptimizeLatency            OptimizationStrategy = "latency_minimization"
	OptimizeResourceEfficiency OptimizationStrategy = "resource_efficiency"
	OptimizeDeadline           OptimizationStrategy = "deadline_optimization"
)

// ValidOptimizationStrategy reports whether s names a known objective.
func ValidOptimizationStrategy(s OptimizationStrategy) bool {
	switch s {
	case OptimizeThroughput, OptimizeLatency, OptimizeResourceEfficiency, OptimizeDeadline:
		return true
	}
	return false
}

// RecommendationKind names one kind of optimizer output.
type RecommendationKind string

const (
	RecConcurrencyAdjustment      RecommendationKind = "concurrency_adjustment"
	RecParallelExecution          RecommendationKind = "parallel_execution"
	RecResourceBalancing          RecommendationKind = "resource_balancing"
	RecPriorityAdjustment         RecommendationKind = "priority_adjustment"
	RecCriticalPathOptimization   RecommendationKind = "critical_path_optimization"
	RecTaskPreemption             RecommendationKind = "task_preemption"
	RecDeadlineScheduling         RecommendationKind = "deadline_scheduling"
	RecDeadlineViolationWarning   RecommendationKind = "deadline_violation_warning"
	RecResourceConflictResolution RecommendationKind = "resource_conflict_resolution"
	RecTaskBatching               RecommendationKind = "task_batching"
	RecRedundantDependencies      RecommendationKind = "redundant_dependencies"
)

// Recommendation is one structured optimizer suggestion. Impact is the
// projected percentage improvement on the strategy's objective. When a
// recommendation rewrites the plan, Details carries a "metrics" entry with
// beforeOptimization and afterOptimization snapshots.
type Recommendation struct {
	Kind                 RecommendationKind `json:"kind"`
	Impact               float64            `json:"impact"`
	EstimatedImprovement string             `json:"estimatedImprovement"`
	Details              map[string]any     `json:"details,omitempty"`
}

// OptimizationResult is the output of one optimizer pass.
type OptimizationResult struct {
	Strategy        OptimizationStrategy `json:"strategy"`
	Recommendations []Recommendation     `json:"recommendations"`
	RewrittenPlan   *Plan                `json:"rewrittenPlan,omitempty"`
	Duration        time.Duration        `json:"duration"`
	GeneratedAt     time.Time            `json:"generatedAt"`

	// ResourceWarnings lists tasks whose individual demand exceeds the
	// per-resource budget.
	ResourceWarnings []string `json:"resourceWarnings,omitempty"`
}

// LearningMetrics summarizes past optimizer passes.
type LearningMetrics struct {
	TotalOptimizations int                              `json:"totalOptimizations"`
	AverageImpact      float64                          `json:"averageImpact"`
	StrategyWinRates   map[OptimizationStrategy]float64 `json:"strategyWinRates"`
}

// optimizationRecord is one entry in the bounded learning ring.
type optimizationRecord struct {
	strategy        OptimizationStrategy
	recommendations int
	duration        time.Duration
	projectedImpact float64
}

// OptimizerOptions tunes the optimizer.
type OptimizerOptions struct {
	Strategy       OptimizationStrategy
	Batching       BatchingStrategy
	EnableBatching bool
	MaxBatchSize   int
	ResourceBudget types.ResourceDemand

	// TemporalWindow clusters deadlines for temporal batching.
	TemporalWindow time.Duration

	// HistorySize bounds the learning ring.
	HistorySize int
}

// DefaultOptimizerOptions returns production defaults.
func DefaultOptimizerOptions() OptimizerOptions {
	return OptimizerOptions{
		Strategy:       OptimizeThroughput,
		Batching:       BatchSimilarTasks,
		EnableBatching: true,
		MaxBatchSize:   5,
		TemporalWindow: time.Hour,
		HistorySize:    100,
	}
}

// demandSimilarityEpsilon is the relative tolerance for treating two
// demand vectors as near-identical in resource batching.
const demandSimilarityEpsilon = 0.10

// budgetSaturation is the fraction of the resource budget beyond which
// throughput optimization stops recommending more concurrency.
const budgetSaturation = 0.80

// Optimizer inspects a plan against the dependency analysis and runtime
// metrics and emits recommendations, possibly rewriting the plan.
type Optimizer struct {
	mu sync.Mutex

	opts    OptimizerOptions
	history []optimizationRecord
	logger  *zap.Logger
}

// NewOptimizer creates an optimizer. A nil logger falls back to a no-op.
func NewOptimizer(opts OptimizerOptions, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Strategy == "" {
		opts.Strategy = OptimizeThroughput
	}
	if opts.MaxBatchSize < 1 {
		opts.MaxBatchSize = 5
	}
	if opts.TemporalWindow <= 0 {
		opts.TemporalWindow = time.Hour
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = 100
	}
	return &Optimizer{opts: opts, logger: logger}
}

// Optimize runs one pass. Metrics may be nil when no executions have been
// observed yet.
func (o *Optimizer) Optimize(graph *Graph, analysis *Analysis, plan *Plan, metrics *ExecutionMetrics, now time.Time) *OptimizationResult {
	start := time.Now()

	result := &OptimizationResult{
		Strategy:        o.opts.Strategy,
		Recommendations: make([]Recommendation, 0),
		GeneratedAt:     now,
	}

	switch o.opts.Strategy {
	case OptimizeLatency:
		o.optimizeLatency(graph, analysis, plan, metrics, result)
	case OptimizeResourceEfficiency:
		o.optimizeResources(graph, analysis, plan, result)
	case OptimizeDeadline:
		o.optimizeDeadlines(graph, analysis, plan, now, result)
	default:
		o.optimizeThroughput(graph, analysis, plan, result)
	}

	if o.opts.EnableBatching {
		o.recommendBatches(graph, result)
	}
	o.scanResourceLimits(graph, result)
	o.scanRedundantEdges(graph, result)

	sort.SliceStable(result.Recommendations, func(i, j int) bool {
		return result.Recommendations[i].Impact > result.Recommendations[j].Impact
	})

	result.Duration = time.Since(start)
	o.record(result)

	o.logger.Debug("optimization pass complete",
		zap.String("strategy", string(o.opts.Strategy)),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Duration("took", result.Duration))

	return result
}

// optimizeThroughput raises concurrency toward budget saturation, pairs
// resource-complementary tasks, and surfaces unexploited parallelism.
func (o *Optimizer) optimizeThroughput(graph *Graph, analysis *Analysis, plan *Plan, result *OptimizationResult) {
	if plan == nil {
		return
	}

	// Concurrency headroom: grow while peak demand stays under saturation.
	if len(o.opts.ResourceBudget) > 0 {
		peak := peakGroupDemand(graph, plan)
		headroom := 1.0
		for name, max := range o.opts.ResourceBudget {
			if max <= 0 {
				continue
			}
			frac := peak[name] / max
			if frac < headroom {
				headroom = frac
			}
		}
		if headroom < budgetSaturation {
			suggested := plan.MaxConcurrency + 1
			result.Recommendations = append(result.Recommendations, Recommendation{
				Kind:                 RecConcurrencyAdjustment,
				Impact:               (budgetSaturation - headroom) * 100,
				EstimatedImprovement: fmt.Sprintf("raise max concurrency to %d", suggested),
				Details: map[string]any{
					"currentConcurrency":   plan.MaxConcurrency,
					"suggestedConcurrency": suggested,
					"budgetUtilization":    headroom,
				},
			})
		}
	}

	// Complementary pairs: one heavy on cpu, the other heavy elsewhere.
	pairs := complementaryPairs(graph)
	if len(pairs) > 0 {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecParallelExecution,
			Impact:               float64(len(pairs)) * 5,
			EstimatedImprovement: fmt.Sprintf("%d resource-complementary pairs can co-schedule", len(pairs)),
			Details:              map[string]any{"pairs": pairs},
		})
	}

	// Levels wider than any emitted group indicate unexploited parallelism.
	widths := make(map[int]int)
	for _, lvl := range analysis.Levels {
		widths[lvl]++
	}
	maxWidth := 0
	for _, w := range widths {
		if w > maxWidth {
			maxWidth = w
		}
	}
	if maxWidth > plan.MaxConcurrency {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecParallelExecution,
			Impact:               float64(maxWidth-plan.MaxConcurrency) * 10,
			EstimatedImprovement: fmt.Sprintf("levels hold up to %d parallel tasks but groups cap at %d", maxWidth, plan.MaxConcurrency),
			Details: map[string]any{
				"widestLevel":    maxWidth,
				"maxConcurrency": plan.MaxConcurrency,
			},
		})
	}
}

// optimizeLatency favors the critical path: reorder toward score-first,
// preempt long low-priority blockers, and split oversized groups.
func (o *Optimizer) optimizeLatency(graph *Graph, analysis *Analysis, plan *Plan, metrics *ExecutionMetrics, result *OptimizationResult) {
	if len(analysis.CriticalPath) > 0 {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecCriticalPathOptimization,
			Impact:               float64(len(analysis.CriticalPath)) * 5,
			EstimatedImprovement: "schedule critical-path tasks ahead of off-path work at each level",
			Details: map[string]any{
				"criticalPath":         analysis.CriticalPath,
				"criticalPathDuration": analysis.CriticalPathDuration.String(),
			},
		})
	}

	// Preempt long low-priority tasks that block urgent work.
	for _, id := range graph.TaskIDs() {
		task := graph.Task(id)
		if task.Priority.Rank() > types.PriorityMedium.Rank() {
			continue
		}
		if task.EffectiveDuration() < 5*time.Minute {
			continue
		}
		blocked := blockedUrgentWork(graph, id)
		if len(blocked) == 0 {
			continue
		}
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecTaskPreemption,
			Impact:               float64(len(blocked)) * 8,
			EstimatedImprovement: fmt.Sprintf("preempting %s unblocks %d urgent tasks", id, len(blocked)),
			Details: map[string]any{
				"task":         id,
				"blockedTasks": blocked,
				"duration":     task.EffectiveDuration().String(),
			},
		})
	}

	// Oversized groups serialize behind their slowest member.
	if plan != nil {
		for i, g := range plan.Groups {
			if len(g.Tasks) <= 2 {
				continue
			}
			spread := durationSpread(graph, g.Tasks)
			if spread < 2*time.Minute {
				continue
			}
			result.Recommendations = append(result.Recommendations, Recommendation{
				Kind:                 RecParallelExecution,
				Impact:               float64(spread) / float64(time.Minute),
				EstimatedImprovement: fmt.Sprintf("split group %d: members differ by %s in duration", i, spread),
				Details:              map[string]any{"group": i, "durationSpread": spread.String()},
			})
		}
	}

	if metrics != nil && metrics.AverageExecutionTime > 0 {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecPriorityAdjustment,
			Impact:               5,
			EstimatedImprovement: "re-score queued tasks against observed execution times",
			Details:              map[string]any{"observedAverage": metrics.AverageExecutionTime.String()},
		})
	}
}

// optimizeResources repacks the plan into fewer, fuller groups and flags
// over-budget tasks.
func (o *Optimizer) optimizeResources(graph *Graph, analysis *Analysis, plan *Plan, result *OptimizationResult) {
	if plan == nil || len(o.opts.ResourceBudget) == 0 {
		return
	}

	packer := NewPlanner(PlannerOptions{
		Strategy:       StrategyResourceOptimal,
		MaxConcurrent:  maxInt(plan.MaxConcurrency, 1),
		ResourceBudget: o.opts.ResourceBudget,
	}, o.logger)

	repacked, err := packer.BuildPlan(graph, analysis, nil, plan.Metadata.GeneratedAt)
	if err == nil && len(repacked.Groups) < len(plan.Groups) {
		before, after := MetricsOf(plan), MetricsOf(repacked)
		result.RewrittenPlan = repacked
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecResourceBalancing,
			Impact:               percentChange(len(plan.Groups), len(repacked.Groups)),
			EstimatedImprovement: fmt.Sprintf("repack %d groups into %d within budget", len(plan.Groups), len(repacked.Groups)),
			Details: map[string]any{
				"metrics": map[string]any{
					"beforeOptimization": before,
					"afterOptimization":  after,
				},
			},
		})
	}
}

// optimizeDeadlines simulates the plan timeline, warns on violations, and
// rewrites each level earliest-deadline-first.
func (o *Optimizer) optimizeDeadlines(graph *Graph, analysis *Analysis, plan *Plan, now time.Time, result *OptimizationResult) {
	if plan == nil {
		return
	}

	finish := simulateEarliestFinish(graph, plan)
	for _, id := range graph.TaskIDs() {
		task := graph.Task(id)
		if task.Deadline == nil {
			continue
		}
		available := task.Deadline.Sub(now)
		slack := available - finish[id]
		if slack >= 0 {
			continue
		}
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecDeadlineViolationWarning,
			Impact:               float64(-slack) / float64(time.Minute),
			EstimatedImprovement: fmt.Sprintf("task %s finishes %s past its deadline", id, (-slack).String()),
			Details: map[string]any{
				"task":                 id,
				"slack":                slack.String(),
				"earliestFinish":       finish[id].String(),
				"blockingPredecessors": graph.Predecessors(id),
			},
		})
	}

	rewritten := rewriteEarliestDeadlineFirst(graph, plan)
	if rewritten != nil {
		before, after := MetricsOf(plan), MetricsOf(rewritten)
		result.RewrittenPlan = rewritten
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecDeadlineScheduling,
			Impact:               10,
			EstimatedImprovement: "order each group earliest-deadline-first",
			Details: map[string]any{
				"metrics": map[string]any{
					"beforeOptimization": before,
					"afterOptimization":  after,
				},
			},
		})
	}
}

// recommendBatches applies the configured batching strategy and emits one
// task_batching recommendation per batch of two or more tasks.
func (o *Optimizer) recommendBatches(graph *Graph, result *OptimizationResult) {
	var batches [][]string
	switch o.opts.Batching {
	case BatchResourceOptimization:
		batches = o.batchByDemand(graph)
	case BatchTemporal:
		batches = o.batchByDeadline(graph)
	default:
		batches = o.batchBySimilarity(graph)
	}

	for _, batch := range batches {
		if len(batch) < 2 {
			continue
		}
		result.Recommendations = append(result.Recommendations, Recommendation{
			Kind:                 RecTaskBatching,
			Impact:               float64(len(batch)) * 3,
			EstimatedImprovement: fmt.Sprintf("batch %d similar tasks", len(batch)),
			Details: map[string]any{
				"strategy": string(o.opts.Batching),
				"tasks":    batch,
			},
		})
	}
}

// batchBySimilarity clusters tasks by their dominant shared tag or title
// token. Batch sizes never exceed the configured maximum.
func (o *Optimizer) batchBySimilarity(graph *Graph) [][]string {
	clusters := make(map[string][]string)
	for _, id := range graph.TaskIDs() {
		task := graph.Task(id)
		key := dominantToken(task)
		if key == "" {
			continue
		}
		clusters[key] = append(clusters[key], id)
	}
	return o.boundedBatches(clusters)
}

// batchByDemand groups tasks whose demand vectors match within the
// similarity epsilon.
func (o *Optimizer) batchByDemand(graph *Graph) [][]string {
	ids := graph.TaskIDs()
	used := make(map[string]bool)
	batches := make([][]string, 0)

	for _, id := range ids {
		if used[id] || len(graph.Task(id).Resources) == 0 {
			continue
		}
		batch := []string{id}
		used[id] = true
		for _, other := range ids {
			if used[other] || len(batch) >= o.opts.MaxBatchSize {
				continue
			}
			if demandsSimilar(graph.Task(id).Resources, graph.Task(other).Resources) {
				batch = append(batch, other)
				used[other] = true
			}
		}
		batches = append(batches, batch)
	}
	return batches
}

// batchByDeadline groups tasks whose deadlines fall within the temporal
// window of each other.
func (o *Optimizer) batchByDeadline(graph *Graph) [][]string {
	type entry struct {
		id       string
		deadline time.Time
	}
	entries := make([]entry, 0)
	for _, id := range graph.TaskIDs() {
		task := graph.Task(id)
		if task.Deadline != nil {
			entries = append(entries, entry{id, *task.Deadline})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].deadline.Equal(entries[j].deadline) {
			return entries[i].deadline.Before(entries[j].deadline)
		}
		return entries[i].id < entries[j].id
	})

	batches := make([][]string, 0)
	var current []string
	var anchor time.Time
	for _, e := range entries {
		if len(current) == 0 || e.deadline.Sub(anchor) > o.opts.TemporalWindow || len(current) >= o.opts.MaxBatchSize {
			if len(current) > 0 {
				batches = append(batches, current)
			}
			current = []string{e.id}
			anchor = e.deadline
			continue
		}
		current = append(current, e.id)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// boundedBatches flattens clusters into batches capped at MaxBatchSize,
// iterating keys in sorted order for determinism.
func (o *Optimizer) boundedBatches(clusters map[string][]string) [][]string {
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batches := make([][]string, 0)
	for _, k := range keys {
		ids := clusters[k]
		sort.Strings(ids)
		for start := 0; start < len(ids); start += o.opts.MaxBatchSize {
			end := start + o.opts.MaxBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			batches = append(batches, ids[start:end])
		}
	}
	return batches
}

// scanResourceLimits flags tasks whose individual demand exceeds the
// per-resource budget. Capacity problems surface as recommendations,
// never as errors.
func (o *Optimizer) scanResourceLimits(graph *Graph, result *OptimizationResult) {
	if len(o.opts.ResourceBudget) == 0 {
		return
	}
	for _, id := range graph.TaskIDs() {
		task := graph.Task(id)
		for _, name := range task.Resources.Names() {
			max, bounded := o.opts.ResourceBudget[name]
			if !bounded || task.Resources[name] <= max {
				continue
			}
			result.ResourceWarnings = append(result.ResourceWarnings, id)
			result.Recommendations = append(result.Recommendations, Recommendation{
				Kind:                 RecResourceConflictResolution,
				Impact:               (task.Resources[name]/max - 1) * 100,
				EstimatedImprovement: fmt.Sprintf("task %s demands %.1f %s but budget is %.1f", id, task.Resources[name], name, max),
				Details: map[string]any{
					"task":     id,
					"resource": name,
					"demand":   task.Resources[name],
					"budget":   max,
				},
			})
			break
		}
	}
}

// scanRedundantEdges surfaces transitive-reduction candidates: edges whose
// ordering is already implied by an alternative path.
func (o *Optimizer) scanRedundantEdges(graph *Graph, result *OptimizationResult) {
	redundant := graph.RedundantEdges()
	if redundant == 0 {
		return
	}
	result.Recommendations = append(result.Recommendations, Recommendation{
		Kind:                 RecRedundantDependencies,
		Impact:               float64(redundant) * 2,
		EstimatedImprovement: fmt.Sprintf("%d dependencies are implied transitively and can be removed", redundant),
		Details:              map[string]any{"redundantEdges": redundant},
	})
}

// record appends a pass to the bounded learning ring.
func (o *Optimizer) record(result *OptimizationResult) {
	projected := 0.0
	for _, rec := range result.Recommendations {
		if rec.Impact > projected {
			projected = rec.Impact
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, optimizationRecord{
		strategy:        result.Strategy,
		recommendations: len(result.Recommendations),
		duration:        result.Duration,
		projectedImpact: projected,
	})
	if len(o.history) > o.opts.HistorySize {
		o.history = o.history[len(o.history)-o.opts.HistorySize:]
	}
}

// Learning returns the aggregate view of past passes.
func (o *Optimizer) Learning() LearningMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	m := LearningMetrics{
		TotalOptimizations: len(o.history),
		StrategyWinRates:   make(map[OptimizationStrategy]float64),
	}
	if len(o.history) == 0 {
		return m
	}

	totalImpact := 0.0
	passes := make(map[OptimizationStrategy]int)
	wins := make(map[OptimizationStrategy]int)
	for _, rec := range o.history {
		totalImpact += rec.projectedImpact
		passes[rec.strategy]++
		if rec.projectedImpact > 0 {
			wins[rec.strategy]++
		}
	}
	m.AverageImpact = totalImpact / float64(len(o.history))
	for strategy, n := range passes {
		m.StrategyWinRates[strategy] = float64(wins[strategy]) / float64(n)
	}
	return m
}

// simulateEarliestFinish walks the plan's groups in order and returns each
// task's earliest finish offset from plan start. Groups run sequentially;
// a task finishes at its group's start plus its own duration.
func simulateEarliestFinish(graph *Graph, plan *Plan) map[string]time.Duration {
	finish := make(map[string]time.Duration)
	offset := time.Duration(0)
	for _, g := range plan.Groups {
		for _, id := range g.Tasks {
			task := graph.Task(id)
			if task == nil {
				continue
			}
			finish[id] = offset + task.EffectiveDuration()
		}
		offset += g.EstimatedDuration
	}
	return finish
}

// rewriteEarliestDeadlineFirst reorders each group's members by deadline,
// earliest first, tasks without deadlines last. Group membership is
// unchanged so dependency validity is preserved.
func rewriteEarliestDeadlineFirst(graph *Graph, plan *Plan) *Plan {
	clone := plan.Clone()
	for i := range clone.Groups {
		tasks := clone.Groups[i].Tasks
		sort.SliceStable(tasks, func(a, b int) bool {
			ta, tb := graph.Task(tasks[a]), graph.Task(tasks[b])
			if ta == nil || tb == nil {
				return tasks[a] < tasks[b]
			}
			switch {
			case ta.Deadline == nil && tb.Deadline == nil:
				return tasks[a] < tasks[b]
			case ta.Deadline == nil:
				return false
			case tb.Deadline == nil:
				return true
			case !ta.Deadline.Equal(*tb.Deadline):
				return ta.Deadline.Before(*tb.Deadline)
			}
			return tasks[a] < tasks[b]
		})
	}
	clone.Metadata.Factors = append(clone.Metadata.Factors, "earliest_deadline_first")
	return clone
}

// peakGroupDemand returns, per resource, the largest summed demand of any
// single group.
func peakGroupDemand(graph *Graph, plan *Plan) types.ResourceDemand {
	peak := make(types.ResourceDemand)
	for _, g := range plan.Groups {
		sum := make(types.ResourceDemand)
		for _, id := range g.Tasks {
			task := graph.Task(id)
			if task == nil {
				continue
			}
			for name, units := range task.Resources {
				sum[name] += units
			}
		}
		for name, units := range sum {
			if units > peak[name] {
				peak[name] = units
			}
		}
	}
	return peak
}

// complementaryPairs finds task pairs where each is heavy on a different
// resource, making them cheap to co-schedule.
func complementaryPairs(graph *Graph) [][]string {
	ids := graph.TaskIDs()
	pairs := make([][]string, 0)
	for i := 0; i < len(ids); i++ {
		hi := heavyResource(graph.Task(ids[i]))
		if hi == "" {
			continue
		}
		for j := i + 1; j < len(ids); j++ {
			hj := heavyResource(graph.Task(ids[j]))
			if hj == "" || hi == hj {
				continue
			}
			if graph.IsReachable(ids[i], ids[j]) || graph.IsReachable(ids[j], ids[i]) {
				continue
			}
			pairs = append(pairs, []string{ids[i], ids[j]})
		}
	}
	return pairs
}

// heavyResource returns the resource holding the majority of a task's
// demand, or empty when demand is absent or balanced.
func heavyResource(task *types.Task) string {
	if task == nil || len(task.Resources) == 0 {
		return ""
	}
	total := totalDemand(task)
	if total == 0 {
		return ""
	}
	for _, name := range task.Resources.Names() {
		if task.Resources[name] > total/2 {
			return name
		}
	}
	return ""
}

// blockedUrgentWork returns successors of id that are high priority or
// deadline-bearing.
func blockedUrgentWork(graph *Graph, id string) []string {
	blocked := make([]string, 0)
	for _, succ := range graph.TransitiveDependents(id) {
		task := graph.Task(succ)
		if task == nil {
			continue
		}
		if task.Priority.Rank() >= types.PriorityHigh.Rank() || task.Deadline != nil {
			blocked = append(blocked, succ)
		}
	}
	return blocked
}

// durationSpread returns the gap between the longest and shortest member
// durations.
func durationSpread(graph *Graph, ids []string) time.Duration {
	var min, max time.Duration
	for i, id := range ids {
		d := graph.Task(id).EffectiveDuration()
		if i == 0 || d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return max - min
}

// dominantToken returns the task's first tag, or the longest title token
// past the stop-word filter.
func dominantToken(task *types.Task) string {
	if len(task.Tags) > 0 {
		tags := append([]string(nil), task.Tags...)
		sort.Strings(tags)
		return tags[0]
	}
	best := ""
	for tok := range keywordBag(task.Title) {
		if len(tok) > len(best) || (len(tok) == len(best) && tok < best) {
			best = tok
		}
	}
	return best
}

// demandsSimilar reports whether two demand vectors name the same
// resources with every per-resource difference inside the similarity
// epsilon, relative to the larger of the two values.
func demandsSimilar(a, b types.ResourceDemand) bool {
	if len(a) != len(b) {
		return false
	}
	for name, ua := range a {
		ub, ok := b[name]
		if !ok {
			return false
		}
		ref := ua
		if ub > ref {
			ref = ub
		}
		if ref == 0 {
			continue
		}
		diff := ua - ub
		if diff < 0 {
			diff = -diff
		}
		if diff/ref > demandSimilarityEpsilon {
			return false
		}
	}
	return true
}

func percentChange(before, after int) float64 {
	if before == 0 {
		return 0
	}
	return float64(before-after) / float64(before) * 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// String renders a recommendation for log lines.
func (r Recommendation) String() string {
	return fmt.Sprintf("%s (impact %.1f%%): %s", r.Kind, r.Impact, strings.TrimSpace(r.EstimatedImprovement))
}
