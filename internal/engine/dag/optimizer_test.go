package dag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge-cli/internal/types"
)

func optimizerFixture(t *testing.T, tasks []*types.Task, opts OptimizerOptions) (*Graph, *Analysis, *Plan, *Optimizer) {
	t.Helper()
	graph, analysis, plan := analyzeAndPlan(t, tasks, DefaultPlannerOptions())
	return graph, analysis, plan, NewOptimizer(opts, nil)
}

func findRecommendation(recs []Recommendation, kind RecommendationKind) (Recommendation, bool) {
	for _, rec := range recs {
		if rec.Kind == kind {
			return rec, true
		}
	}
	return Recommendation{}, false
}

func TestOptimizeDeadlineViolationWarning(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	task := newTask("late", withDuration(10*time.Second))
	at := now.Add(5 * time.Second)
	task.Deadline = &at

	opts := DefaultOptimizerOptions()
	opts.Strategy = OptimizeDeadline
	graph, analysis, plan, optimizer := optimizerFixture(t, []*types.Task{task}, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, now)

	rec, found := findRecommendation(result.Recommendations, RecDeadlineViolationWarning)
	require.True(t, found, "expected deadline_violation_warning, got %v", result.Recommendations)
	assert.Equal(t, "late", rec.Details["task"])
	assert.Equal(t, (-5 * time.Second).String(), rec.Details["slack"])
}

func TestOptimizeDeadlineMetWithinSlack(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	task := newTask("ok", withDuration(5*time.Second))
	at := now.Add(time.Hour)
	task.Deadline = &at

	opts := DefaultOptimizerOptions()
	opts.Strategy = OptimizeDeadline
	graph, analysis, plan, optimizer := optimizerFixture(t, []*types.Task{task}, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, now)
	_, found := findRecommendation(result.Recommendations, RecDeadlineViolationWarning)
	assert.False(t, found)
}

func TestOptimizeBatchSizesBounded(t *testing.T) {
	tasks := make([]*types.Task, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		task := newTask(id)
		task.Tags = []string{"ingest"}
		tasks = append(tasks, task)
	}

	opts := DefaultOptimizerOptions()
	opts.Batching = BatchSimilarTasks
	opts.MaxBatchSize = 3
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())
	sawBatch := false
	for _, rec := range result.Recommendations {
		if rec.Kind != RecTaskBatching {
			continue
		}
		sawBatch = true
		batch := rec.Details["tasks"].([]string)
		assert.LessOrEqual(t, len(batch), 3, "batch exceeds configured maximum")
	}
	assert.True(t, sawBatch, "expected task_batching recommendations")
}

func TestOptimizeResourceConflictResolution(t *testing.T) {
	task := newTask("hog")
	task.Resources = types.ResourceDemand{"memory": 100}

	opts := DefaultOptimizerOptions()
	opts.ResourceBudget = types.ResourceDemand{"memory": 10}
	graph, analysis, plan, optimizer := optimizerFixture(t, []*types.Task{task}, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())

	rec, found := findRecommendation(result.Recommendations, RecResourceConflictResolution)
	require.True(t, found)
	assert.Equal(t, "hog", rec.Details["task"])
	assert.Equal(t, []string{"hog"}, result.ResourceWarnings)
}

func TestOptimizeThroughputSurfacesParallelism(t *testing.T) {
	tasks := []*types.Task{newTask("a"), newTask("b"), newTask("c"), newTask("d"), newTask("e"), newTask("f")}

	graph, analysis, err := newTestAnalyzer().Analyze(tasks)
	require.NoError(t, err)
	planner := NewPlanner(PlannerOptions{Strategy: StrategyDependencyAware, MaxConcurrent: 2}, nil)
	plan, err := planner.BuildPlan(graph, analysis, nil, time.Now())
	require.NoError(t, err)

	optimizer := NewOptimizer(DefaultOptimizerOptions(), nil)
	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())

	rec, found := findRecommendation(result.Recommendations, RecParallelExecution)
	require.True(t, found, "six independent tasks capped at 2 should surface parallelism")
	assert.Greater(t, rec.Impact, 0.0)
}

func TestOptimizeLatencyPreemption(t *testing.T) {
	blocker := newTask("blocker", withPriority(types.PriorityLow), withDuration(time.Hour))
	urgent := newTask("urgent", withPriority(types.PriorityCritical), withDeps(dep("blocker")))

	opts := DefaultOptimizerOptions()
	opts.Strategy = OptimizeLatency
	graph, analysis, plan, optimizer := optimizerFixture(t, []*types.Task{blocker, urgent}, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())
	rec, found := findRecommendation(result.Recommendations, RecTaskPreemption)
	require.True(t, found)
	assert.Equal(t, "blocker", rec.Details["task"])
}

func TestOptimizeRecommendationsSortedByImpact(t *testing.T) {
	tasks := []*types.Task{
		newTask("a", withDuration(time.Hour), withPriority(types.PriorityLow)),
		newTask("b", withDeps(dep("a")), withPriority(types.PriorityCritical)),
		newTask("c"),
	}
	opts := DefaultOptimizerOptions()
	opts.Strategy = OptimizeLatency
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())
	for i := 1; i < len(result.Recommendations); i++ {
		assert.GreaterOrEqual(t,
			result.Recommendations[i-1].Impact,
			result.Recommendations[i].Impact,
			"recommendations must be ordered by impact")
	}
}

func TestOptimizeConvergesOnStableInput(t *testing.T) {
	tasks := []*types.Task{
		newTask("a"),
		newTask("b", withDeps(dep("a"))),
	}
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, DefaultOptimizerOptions())

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := optimizer.Optimize(graph, analysis, plan, nil, now)
	for i := 0; i < 3; i++ {
		again := optimizer.Optimize(graph, analysis, plan, nil, now)
		assert.Equal(t, len(first.Recommendations), len(again.Recommendations),
			"recommendation set must stabilize on unchanged input")
	}
}

func TestOptimizerLearningMetrics(t *testing.T) {
	tasks := []*types.Task{newTask("a")}
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, DefaultOptimizerOptions())

	assert.Zero(t, optimizer.Learning().TotalOptimizations)

	for i := 0; i < 3; i++ {
		optimizer.Optimize(graph, analysis, plan, nil, time.Now())
	}
	learning := optimizer.Learning()
	assert.Equal(t, 3, learning.TotalOptimizations)
	assert.Contains(t, learning.StrategyWinRates, OptimizeThroughput)
}

func TestOptimizerLearningRingBounded(t *testing.T) {
	tasks := []*types.Task{newTask("a")}
	opts := DefaultOptimizerOptions()
	opts.HistorySize = 5
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, opts)

	for i := 0; i < 12; i++ {
		optimizer.Optimize(graph, analysis, plan, nil, time.Now())
	}
	assert.Equal(t, 5, optimizer.Learning().TotalOptimizations)
}

func TestOptimizeTemporalBatching(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tasks := []*types.Task{
		newTask("m1", withDeadline(base)),
		newTask("m2", withDeadline(base.Add(10*time.Minute))),
		newTask("far", withDeadline(base.Add(72*time.Hour))),
	}

	opts := DefaultOptimizerOptions()
	opts.Batching = BatchTemporal
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, base.Add(-time.Hour))
	rec, found := findRecommendation(result.Recommendations, RecTaskBatching)
	require.True(t, found)
	batch := rec.Details["tasks"].([]string)
	assert.ElementsMatch(t, []string{"m1", "m2"}, batch)
}

func TestOptimizeRedundantDependencyDetection(t *testing.T) {
	tasks := []*types.Task{
		newTask("a"),
		newTask("b", withDeps(dep("a"))),
		newTask("c", withDeps(dep("a"), dep("b"))),
	}
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, DefaultOptimizerOptions())

	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())

	// a -> c is implied by a -> b -> c.
	rec, found := findRecommendation(result.Recommendations, RecRedundantDependencies)
	require.True(t, found)
	assert.Equal(t, 1, rec.Details["redundantEdges"])
}

func TestDemandsSimilar(t *testing.T) {
	assert.True(t, demandsSimilar(types.ResourceDemand{"cpu": 10}, types.ResourceDemand{"cpu": 10.5}))
	assert.False(t, demandsSimilar(types.ResourceDemand{"cpu": 10}, types.ResourceDemand{"cpu": 12}))
	assert.False(t, demandsSimilar(types.ResourceDemand{"cpu": 10}, types.ResourceDemand{"memory": 10}))
	assert.False(t, demandsSimilar(types.ResourceDemand{"cpu": 10}, types.ResourceDemand{"cpu": 10, "memory": 1}))
	assert.True(t, demandsSimilar(types.ResourceDemand{}, types.ResourceDemand{}))
}

func TestOptimizeResourceBatching(t *testing.T) {
	demands := []float64{10, 10.1, 10.2, 10.3, 10.4}
	tasks := make([]*types.Task, 0, 6)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		task := newTask(id)
		task.Resources = types.ResourceDemand{"cpu": demands[i]}
		tasks = append(tasks, task)
	}
	outlier := newTask("f")
	outlier.Resources = types.ResourceDemand{"cpu": 50}
	tasks = append(tasks, outlier)

	opts := DefaultOptimizerOptions()
	opts.Batching = BatchResourceOptimization
	opts.MaxBatchSize = 3
	graph, analysis, plan, optimizer := optimizerFixture(t, tasks, opts)

	result := optimizer.Optimize(graph, analysis, plan, nil, time.Now())

	sawBatch := false
	for _, rec := range result.Recommendations {
		if rec.Kind != RecTaskBatching {
			continue
		}
		sawBatch = true
		batch := rec.Details["tasks"].([]string)
		assert.LessOrEqual(t, len(batch), 3, "batch exceeds configured maximum")
		assert.NotContains(t, batch, "f", "dissimilar demand must not batch")
	}
	assert.True(t, sawBatch, "expected demand-similar tasks to batch")
}
