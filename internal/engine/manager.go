// Package engine hosts the dependency manager façade: it owns the task
// repository, orchestrates analysis, scoring, planning, optimization and
// monitoring, and serves cached results keyed by task-set fingerprint.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/config"
	"github.com/taskforge/taskforge-cli/internal/engine/dag"
	"github.com/taskforge/taskforge-cli/internal/types"
)

// ErrDegraded is returned for mutating operations after an invariant
// violation switched the manager into read-only mode.
var ErrDegraded = errors.New("engine is in degraded read-only mode")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("engine is closed")

// Manager is the dependency manager façade. Mutations to the task set are
// serialized under a single writer lock; reads run against an immutable
// snapshot taken under the read lock.
type Manager struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger *zap.Logger

	tasks map[string]*types.Task

	analyzer  *dag.Analyzer
	scorer    *dag.Scorer
	planner   *dag.Planner
	optimizer *dag.Optimizer
	monitor   *dag.Monitor

	cache   *analysisCache
	emitter *emitter

	degraded bool
	closed   bool
}

// NewManager builds a manager from validated configuration. A nil logger
// falls back to a no-op.
func NewManager(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	analyzerOpts := dag.DefaultAnalyzerOptions()
	analyzerOpts.EnableImplicit = cfg.ImplicitAnalysis
	analyzerOpts.MinConfidence = cfg.MinConfidence

	plannerOpts := dag.DefaultPlannerOptions()
	plannerOpts.Strategy = cfg.Strategy
	plannerOpts.MaxConcurrent = cfg.MaxConcurrentTasks
	plannerOpts.ResourceBudget = cfg.ResourceBudget()

	optimizerOpts := dag.DefaultOptimizerOptions()
	optimizerOpts.Strategy = cfg.OptimizationStrategy
	optimizerOpts.Batching = cfg.BatchingStrategy
	optimizerOpts.EnableBatching = cfg.EnableBatching
	optimizerOpts.MaxBatchSize = cfg.MaxBatchSize
	optimizerOpts.ResourceBudget = cfg.ResourceBudget()

	return &Manager{
		cfg:       cfg,
		logger:    logger,
		tasks:     make(map[string]*types.Task),
		analyzer:  dag.NewAnalyzer(analyzerOpts, logger),
		scorer:    dag.NewScorer(dag.DefaultScorerOptions(), logger),
		planner:   dag.NewPlanner(plannerOpts, logger),
		optimizer: dag.NewOptimizer(optimizerOpts, logger),
		monitor:   dag.NewMonitor(dag.DefaultMonitorOptions(), logger),
		cache:     newAnalysisCache(cfg.CacheSize),
		emitter:   newEmitter(),
	}, nil
}

// Subscribe returns a cancellable handle to the manager's event streams.
func (m *Manager) Subscribe(eventTypes ...EventType) *Subscription {
	return m.emitter.Subscribe(eventTypes...)
}

// AddTasks registers tasks with the engine. Existing ids are replaced.
// Registration invalidates cached analyses.
func (m *Manager) AddTasks(tasks ...*types.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writableLocked(); err != nil {
		return err
	}
	for _, t := range tasks {
		if t == nil || t.ID == "" {
			return fmt.Errorf("task must have an id")
		}
		m.tasks[t.ID] = t.Clone()
	}
	m.cache.Invalidate()
	return nil
}

// RemoveTask unregisters a task. Dangling references to it surface as
// missing-dependency errors on the next analysis.
func (m *Manager) RemoveTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writableLocked(); err != nil {
		return err
	}
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %s not found", id)
	}
	delete(m.tasks, id)
	m.cache.Invalidate()
	return nil
}

// Task returns a copy of the registered task, or nil.
func (m *Manager) Task(id string) *types.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tasks[id]; ok {
		return t.Clone()
	}
	return nil
}

// TaskCount returns the number of registered tasks.
func (m *Manager) TaskCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// snapshot returns the registered tasks as an immutable slice; the clones
// are shared with analysis results and must not be mutated.
func (m *Manager) snapshot() []*types.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]*types.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	types.SortTasksByID(tasks)
	return tasks
}

// Analyze builds (or returns the cached) dependency analysis for the
// current task set. Cached results are structurally equal to fresh runs.
func (m *Manager) Analyze(ctx context.Context) (*dag.Analysis, error) {
	if err := m.readable(); err != nil {
		return nil, err
	}

	tasks := m.snapshot()
	fingerprint := m.cache.Fingerprint(tasks)

	if cached, ok := m.cache.Get(fingerprint); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graph, analysis, err := m.analyzer.Analyze(tasks)
	if err != nil {
		m.enterDegraded(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Cancelled mid-run: discard the partial result.
		return nil, err
	}
	if err := graph.Validate(); err != nil {
		m.enterDegraded(err)
		return nil, err
	}

	m.cache.Set(fingerprint, analysis)
	m.emitter.Emit(EventAnalysisComplete, map[string]any{
		"tasks":  len(analysis.Nodes),
		"edges":  len(analysis.Edges),
		"cycles": len(analysis.CircularChains),
	})
	return analysis, nil
}

// Scores computes the composite priority scores for the current task set.
func (m *Manager) Scores(ctx context.Context) ([]dag.Score, error) {
	graph, analysis, err := m.analyzeUncachedGraph(ctx)
	if err != nil {
		return nil, err
	}
	return m.scorer.ScoreAll(graph, analysis, time.Now()), nil
}

// Plan produces an execution plan for the current task set. Planning
// refuses while a cycle exists.
func (m *Manager) Plan(ctx context.Context) (*dag.Plan, []dag.Conflict, error) {
	graph, analysis, err := m.analyzeUncachedGraph(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	scores := m.scorer.ScoreAll(graph, analysis, now)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	plan, err := m.planner.BuildPlan(graph, analysis, scores, now)
	if err != nil {
		return nil, m.planner.DetectConflicts(graph, analysis, nil), err
	}
	conflicts := m.planner.DetectConflicts(graph, analysis, plan)

	m.emitter.Emit(EventPlanComplete, map[string]any{
		"strategy":          string(plan.Strategy),
		"groups":            len(plan.Groups),
		"estimatedDuration": plan.EstimatedDuration.String(),
	})
	return plan, conflicts, nil
}

// Optimize runs one optimizer pass against the current plan and metrics.
func (m *Manager) Optimize(ctx context.Context) (*dag.OptimizationResult, error) {
	graph, analysis, err := m.analyzeUncachedGraph(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var plan *dag.Plan
	if !analysis.HasCycles() {
		scores := m.scorer.ScoreAll(graph, analysis, now)
		plan, err = m.planner.BuildPlan(graph, analysis, scores, now)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := m.optimizer.Optimize(graph, analysis, plan, m.monitor.Metrics(), now)

	m.emitter.Emit(EventOptimizationComplete, map[string]any{
		"strategy":        string(result.Strategy),
		"recommendations": len(result.Recommendations),
	})
	for _, id := range result.ResourceWarnings {
		m.emitter.Emit(EventResourceConstraint, map[string]any{"task": id})
	}
	return result, nil
}

// Validate checks the current task set for missing dependencies and
// cycles, returning the full error list.
func (m *Manager) Validate(ctx context.Context) (*dag.ValidationResult, error) {
	analysis, err := m.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return m.planner.Validate(analysis), nil
}

// UpdateDependencies replaces one task's dependency list and evicts every
// cached analysis whose fingerprint the mutation touches.
func (m *Manager) UpdateDependencies(taskID string, deps []types.DependencyRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writableLocked(); err != nil {
		return err
	}
	task, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	if deps == nil {
		deps = []types.DependencyRef{}
	}
	task.Dependencies = append([]types.DependencyRef(nil), deps...)
	task.UpdatedAt = time.Now()
	m.cache.Invalidate()

	m.emitter.Emit(EventDependencyUpdated, map[string]any{
		"task":         taskID,
		"dependencies": len(deps),
	})
	return nil
}

// RecordExecution folds one lifecycle event into the monitor and, for
// finished attempts, into the scorer's rolling statistics.
func (m *Manager) RecordExecution(event dag.TaskEvent) error {
	if err := m.readable(); err != nil {
		return err
	}

	m.mu.RLock()
	task := m.tasks[event.TaskID]
	m.mu.RUnlock()

	if err := m.monitor.Record(event, task); err != nil {
		return err
	}

	if m.cfg.AutoDependencyLearning {
		switch event.Kind {
		case dag.EventCompleted, dag.EventFailed:
			m.scorer.RecordExecution(event.TaskID, types.ExecutionRecord{
				StartedAt: event.Timestamp.Add(-event.Duration),
				EndedAt:   event.Timestamp,
				Duration:  event.Duration,
				Success:   event.Kind == dag.EventCompleted,
				Error:     event.Error,
			})
		}
	}

	m.emitter.Emit(EventTaskEventRecorded, map[string]any{
		"task": event.TaskID,
		"kind": string(event.Kind),
	})
	return nil
}

// Metrics returns the monitor's rolling aggregates.
func (m *Manager) Metrics() *dag.ExecutionMetrics {
	return m.monitor.Metrics()
}

// Bottlenecks returns the monitor's current bottleneck findings.
func (m *Manager) Bottlenecks() []dag.Bottleneck {
	return m.monitor.Bottlenecks()
}

// Health returns the four-dimension system health classification.
func (m *Manager) Health() dag.SystemHealth {
	return m.monitor.Health()
}

// LearningInsights returns the optimizer's learning metrics.
func (m *Manager) LearningInsights() dag.LearningMetrics {
	return m.optimizer.Learning()
}

// CacheStats returns analysis cache statistics.
func (m *Manager) CacheStats() CacheStats {
	return m.cache.Stats()
}

// SelfTune nudges the scorer's weights from observed history: poor
// reliability shifts weight toward historical success, slow execution
// toward shorter tasks. Adjustments are small and bounded.
func (m *Manager) SelfTune() dag.Weights {
	metrics := m.monitor.Metrics()
	weights := m.scorer.Weights()

	if metrics.CompletedTasks+metrics.FailedTasks > 0 {
		if metrics.SuccessRate < 0.9 && weights.SuccessRate < 3 {
			weights.SuccessRate += 0.5
		}
		if metrics.AverageExecutionTime > 15*time.Minute && weights.Duration < 3 {
			weights.Duration += 0.5
		}
	}

	m.scorer.SetWeights(weights)
	return weights
}

// UpdateSystemLoad feeds current resource availability into the scorer.
func (m *Manager) UpdateSystemLoad(available types.ResourceDemand) {
	budget := types.ResourceDemand(m.cfg.ResourceBudget())
	m.scorer.UpdateSystemLoad(available, budget)
}

// WhatIf applies task additions and removals to a scratch copy of the
// task set and compares the resulting plan against the current one.
// The registered task set is never mutated.
func (m *Manager) WhatIf(ctx context.Context, add []*types.Task, remove []string) (*dag.PlanComparison, error) {
	if err := m.readable(); err != nil {
		return nil, err
	}

	current, _, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}

	removed := make(map[string]bool, len(remove))
	for _, id := range remove {
		removed[id] = true
	}
	scratch := make([]*types.Task, 0)
	for _, t := range m.snapshot() {
		if !removed[t.ID] {
			scratch = append(scratch, t)
		}
	}
	for _, t := range add {
		if t != nil {
			scratch = append(scratch, t.Clone())
		}
	}

	graph, analysis, err := m.analyzer.Analyze(scratch)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	scores := m.scorer.ScoreAll(graph, analysis, now)
	altered, err := m.planner.BuildPlan(graph, analysis, scores, now)
	if err != nil {
		return nil, err
	}

	return dag.ComparePlans(current, altered), nil
}

// Close releases listeners and clears the cache. The manager rejects all
// operations afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.emitter.Close()
	m.cache.Clear()
	return nil
}

// Degraded reports whether the manager has entered read-only mode.
func (m *Manager) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// analyzeUncachedGraph runs a full analysis and keeps the graph alongside
// it; the planner and optimizer need the graph, which the cache does not
// retain.
func (m *Manager) analyzeUncachedGraph(ctx context.Context) (*dag.Graph, *dag.Analysis, error) {
	if err := m.readable(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	tasks := m.snapshot()
	graph, analysis, err := m.analyzer.Analyze(tasks)
	if err != nil {
		m.enterDegraded(err)
		return nil, nil, err
	}
	if err := graph.Validate(); err != nil {
		m.enterDegraded(err)
		return nil, nil, err
	}

	// Keep the cache warm so the next Analyze call hits.
	m.cache.Set(m.cache.Fingerprint(tasks), analysis)
	return graph, analysis, nil
}

// enterDegraded flips the manager into read-only mode after an invariant
// violation and emits a critical event.
func (m *Manager) enterDegraded(cause error) {
	m.mu.Lock()
	already := m.degraded
	m.degraded = true
	m.mu.Unlock()

	if already {
		return
	}
	m.logger.Error("invariant violation, entering degraded read-only mode", zap.Error(cause))
	m.emitter.Emit(EventInvariantViolation, map[string]any{
		"error": cause.Error(),
	})
}

func (m *Manager) readable() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Manager) writableLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.degraded {
		return ErrDegraded
	}
	return nil
}
