package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge-cli/internal/config"
	"github.com/taskforge/taskforge-cli/internal/engine/dag"
	"github.com/taskforge/taskforge-cli/internal/types"
)

func newTestManager(t *testing.T, tasks ...*types.Task) *Manager {
	t.Helper()
	m, err := NewManager(config.New(), nil)
	require.NoError(t, err)
	if len(tasks) > 0 {
		require.NoError(t, m.AddTasks(tasks...))
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func prereq(id string) types.DependencyRef {
	return types.DependencyRef{TaskID: id, Kind: types.DependencyPrerequisite}
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	cfg := config.New()
	cfg.MaxConcurrentTasks = 0
	_, err := NewManager(cfg, nil)
	assert.Error(t, err)
}

func TestManagerAnalyzeCachesResults(t *testing.T) {
	m := newTestManager(t, cacheTask("a"), cacheTask("b", prereq("a")))

	first, err := m.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Edges, 1)

	second, err := m.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached analysis must match a fresh run")
	assert.Equal(t, int64(1), m.CacheStats().HitCount)
}

func TestManagerMutationInvalidatesCache(t *testing.T) {
	m := newTestManager(t, cacheTask("a"))

	_, err := m.Analyze(context.Background())
	require.NoError(t, err)
	epoch := m.CacheStats().Epoch

	require.NoError(t, m.AddTasks(cacheTask("b")))
	assert.Greater(t, m.CacheStats().Epoch, epoch, "registration must invalidate cached analyses")

	analysis, err := m.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, analysis.Nodes)
}

func TestManagerPlanLinearChain(t *testing.T) {
	m := newTestManager(t,
		cacheTask("a"),
		cacheTask("b", prereq("a")),
		cacheTask("c", prereq("b")),
	)

	plan, conflicts, err := m.Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Groups, 3)
	assert.Equal(t, []string{"a"}, plan.Groups[0].Tasks)
	assert.Empty(t, conflicts)
}

func TestManagerPlanRefusesCycle(t *testing.T) {
	m := newTestManager(t,
		cacheTask("x", prereq("z")),
		cacheTask("y", prereq("x")),
		cacheTask("z", prereq("y")),
	)

	_, conflicts, err := m.Plan(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dag.ErrCycleDetected))
	assert.NotEmpty(t, conflicts, "cycle surfaces as a conflict alongside the error")
	assert.False(t, m.Degraded(), "cycles are input problems, not invariant violations")
}

func TestManagerValidateMissingDependency(t *testing.T) {
	m := newTestManager(t, cacheTask("a", prereq("ghost")))

	result, err := m.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"ghost"}, result.MissingDependencies)
}

func TestManagerContextCancellation(t *testing.T) {
	m := newTestManager(t, cacheTask("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Analyze(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = m.Plan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManagerUpdateDependencies(t *testing.T) {
	m := newTestManager(t, cacheTask("a"), cacheTask("b"))

	sub := m.Subscribe(EventDependencyUpdated)
	defer sub.Cancel()

	require.NoError(t, m.UpdateDependencies("b", []types.DependencyRef{prereq("a")}))

	analysis, err := m.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, analysis.Edges, 1)
	assert.Equal(t, "a", analysis.Edges[0].From)

	ev := <-sub.C
	assert.Equal(t, "b", ev.Payload["task"])

	assert.Error(t, m.UpdateDependencies("ghost", nil))
}

func TestManagerRemoveTask(t *testing.T) {
	m := newTestManager(t, cacheTask("a"), cacheTask("b", prereq("a")))

	require.NoError(t, m.RemoveTask("a"))
	assert.Error(t, m.RemoveTask("a"), "double removal fails")

	analysis, err := m.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, analysis.Errors, 1)
	assert.Equal(t, dag.IssueMissingDependency, analysis.Errors[0].Kind)
	assert.Nil(t, m.Task("a"))
	assert.Equal(t, 1, m.TaskCount())
}

func TestManagerTaskReturnsCopy(t *testing.T) {
	m := newTestManager(t, cacheTask("a"))

	got := m.Task("a")
	require.NotNil(t, got)
	got.Title = "mutated"
	assert.Equal(t, "task a", m.Task("a").Title, "callers must not reach internal state")
}

func TestManagerRecordExecution(t *testing.T) {
	m := newTestManager(t, cacheTask("a"))

	sub := m.Subscribe(EventTaskEventRecorded)
	defer sub.Cancel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.RecordExecution(dag.TaskEvent{
		TaskID: "a", Kind: dag.EventStarted, Timestamp: now,
	}))
	require.NoError(t, m.RecordExecution(dag.TaskEvent{
		TaskID: "a", Kind: dag.EventCompleted, Timestamp: now.Add(2 * time.Minute), Duration: 2 * time.Minute,
	}))

	metrics := m.Metrics()
	assert.Equal(t, 1, metrics.CompletedTasks)
	assert.Equal(t, 2*time.Minute, metrics.AverageExecutionTime)

	ev := <-sub.C
	assert.Equal(t, "a", ev.Payload["task"])

	assert.Error(t, m.RecordExecution(dag.TaskEvent{Kind: dag.EventStarted}), "empty task id rejected")
}

func TestManagerSelfTune(t *testing.T) {
	m := newTestManager(t, cacheTask("a"), cacheTask("b"))

	now := time.Now()
	require.NoError(t, m.RecordExecution(dag.TaskEvent{TaskID: "a", Kind: dag.EventCompleted, Timestamp: now, Duration: time.Minute}))
	require.NoError(t, m.RecordExecution(dag.TaskEvent{TaskID: "b", Kind: dag.EventFailed, Timestamp: now, Duration: time.Minute}))

	weights := m.SelfTune()
	assert.Equal(t, dag.DefaultWeights().SuccessRate+0.5, weights.SuccessRate,
		"poor reliability shifts weight toward historical success")
	assert.Equal(t, dag.DefaultWeights().Duration, weights.Duration,
		"fast executions leave the duration weight alone")
}

func TestManagerOptimize(t *testing.T) {
	m := newTestManager(t, cacheTask("a"), cacheTask("b"))

	sub := m.Subscribe(EventOptimizationComplete)
	defer sub.Cancel()

	result, err := m.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dag.OptimizeThroughput, result.Strategy)

	ev := <-sub.C
	assert.Equal(t, string(dag.OptimizeThroughput), ev.Payload["strategy"])
}

func TestManagerWhatIf(t *testing.T) {
	m := newTestManager(t, cacheTask("a"))

	cmp, err := m.WhatIf(context.Background(), []*types.Task{cacheTask("b", prereq("a"))}, nil)
	require.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Equal(t, 1, cmp.GroupDifference, "the added dependent serializes behind a")
	assert.Greater(t, cmp.DurationDifference, time.Duration(0))

	assert.Equal(t, 1, m.TaskCount(), "what-if must not mutate the registered set")
}

func TestManagerAnalysisEvents(t *testing.T) {
	m := newTestManager(t)

	sub := m.Subscribe(EventAnalysisComplete)
	defer sub.Cancel()

	require.NoError(t, m.AddTasks(cacheTask("a")))
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)

	ev := <-sub.C
	assert.Equal(t, EventAnalysisComplete, ev.Type)
	assert.Equal(t, 1, ev.Payload["tasks"])
}

func TestManagerClose(t *testing.T) {
	m := newTestManager(t, cacheTask("a"))
	sub := m.Subscribe()

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")

	assert.ErrorIs(t, m.AddTasks(cacheTask("b")), ErrClosed)
	_, err := m.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	_, open := <-sub.C
	assert.False(t, open, "close revokes outstanding subscriptions")
}
