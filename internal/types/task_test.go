package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityBaseScore(t *testing.T) {
	assert.Equal(t, 100.0, PriorityCritical.BaseScore())
	assert.Equal(t, 75.0, PriorityHigh.BaseScore())
	assert.Equal(t, 50.0, PriorityMedium.BaseScore())
	assert.Equal(t, 25.0, PriorityLow.BaseScore())
	assert.Equal(t, 25.0, Priority("unknown").BaseScore(), "unknown priorities score as low")
}

func TestPriorityRankOrdering(t *testing.T) {
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority("urgent").Valid())
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.Terminal(), "%s", s)
	}
	for _, s := range []Status{StatusPending, StatusQueued, StatusScheduled, StatusRunning} {
		assert.False(t, s.Terminal(), "%s", s)
	}
}

func TestCategoryPipelineStage(t *testing.T) {
	assert.Less(t, CategoryAnalysis.PipelineStage(), CategoryDesign.PipelineStage())
	assert.Less(t, CategoryDesign.PipelineStage(), CategoryFeature.PipelineStage())
	assert.Equal(t, CategoryFeature.PipelineStage(), CategoryBuild.PipelineStage())
	assert.Less(t, CategoryTesting.PipelineStage(), CategoryDeployment.PipelineStage())

	assert.Equal(t, -1, CategoryDocumentation.PipelineStage())
	assert.Equal(t, -1, CategoryOther.PipelineStage())
}

func TestEffectiveDuration(t *testing.T) {
	task := &Task{}
	assert.Equal(t, DefaultEstimatedDuration, task.EffectiveDuration())

	task.EstimatedDuration = 5 * time.Minute
	assert.Equal(t, 5*time.Minute, task.EffectiveDuration())
}

func TestTaskAge(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := &Task{CreatedAt: created}

	assert.Equal(t, 2*time.Hour, task.Age(created.Add(2*time.Hour)))
	assert.Zero(t, task.Age(created.Add(-time.Hour)), "tasks from the future have no age")
	assert.Zero(t, (&Task{}).Age(created))
}

func TestTaskCloneIsDeep(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	task := &Task{
		ID:           "t",
		Title:        "original",
		Priority:     PriorityHigh,
		Deadline:     &deadline,
		Capabilities: []string{"database"},
		Resources:    ResourceDemand{"cpu": 2},
		Dependencies: []DependencyRef{{TaskID: "other", Kind: DependencyPrerequisite}},
		History:      []ExecutionRecord{{Success: true, Resources: ResourceDemand{"cpu": 1}}},
		Extra:        map[string]any{"owner": "team-a"},
	}

	clone := task.Clone()
	clone.Title = "mutated"
	*clone.Deadline = deadline.Add(time.Hour)
	clone.Capabilities[0] = "network"
	clone.Resources["cpu"] = 99
	clone.Dependencies[0].TaskID = "changed"
	clone.History[0].Resources["cpu"] = 99
	clone.Extra["owner"] = "team-b"

	assert.Equal(t, "original", task.Title)
	assert.Equal(t, deadline, *task.Deadline)
	assert.Equal(t, "database", task.Capabilities[0])
	assert.Equal(t, 2.0, task.Resources["cpu"])
	assert.Equal(t, "other", task.Dependencies[0].TaskID)
	assert.Equal(t, 1.0, task.History[0].Resources["cpu"])
	assert.Equal(t, "team-a", task.Extra["owner"])
}

func TestTaskSuccessRate(t *testing.T) {
	task := &Task{}
	assert.Equal(t, 1.0, task.SuccessRate(), "no history means no evidence of failure")

	task.History = []ExecutionRecord{
		{Success: true},
		{Success: false},
		{Success: true},
		{Success: true},
	}
	assert.Equal(t, 0.75, task.SuccessRate())
}

func TestSortTasksByID(t *testing.T) {
	tasks := []*Task{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	SortTasksByID(tasks)
	require.Len(t, tasks, 3)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
	assert.Equal(t, "c", tasks[2].ID)
}

func TestResourceDemandHelpers(t *testing.T) {
	var nilDemand ResourceDemand
	assert.Nil(t, nilDemand.Clone())

	demand := ResourceDemand{"memory": 512, "cpu": 2}
	assert.Equal(t, []string{"cpu", "memory"}, demand.Names())

	clone := demand.Clone()
	clone["cpu"] = 8
	assert.Equal(t, 2.0, demand["cpu"])
}
