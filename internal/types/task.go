// Package types defines the task model shared by every engine component.
package types

import (
	"sort"
	"time"
)

// Priority is the declared importance of a task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// BaseScore maps a priority level to its fixed numeric base score.
func (p Priority) BaseScore() float64 {
	switch p {
	case PriorityCritical:
		return 100
	case PriorityHigh:
		return 75
	case PriorityMedium:
		return 50
	case PriorityLow:
		return 25
	default:
		return 25
	}
}

// Rank orders priorities for comparisons; higher means more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the recognized priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the task has left the engine's attention.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Category tags a task with its place in the delivery pipeline.
type Category string

const (
	CategoryAnalysis      Category = "analysis"
	CategoryDesign        Category = "design"
	CategoryFeature       Category = "feature"
	CategoryBuild         Category = "build"
	CategoryTesting       Category = "testing"
	CategoryDocumentation Category = "documentation"
	CategoryDeployment    Category = "deployment"
	CategoryOther         Category = "other"
)

// PipelineStage returns the canonical ordering position of the category:
// analysis → design → feature/build → testing → deployment. Categories
// outside the pipeline (documentation, other) return -1 and never
// contribute structural edges.
func (c Category) PipelineStage() int {
	switch c {
	case CategoryAnalysis:
		return 0
	case CategoryDesign:
		return 1
	case CategoryFeature, CategoryBuild:
		return 2
	case CategoryTesting:
		return 3
	case CategoryDeployment:
		return 4
	default:
		return -1
	}
}

// DependencyKind classifies a declared dependency reference.
type DependencyKind string

const (
	DependencyPrerequisite     DependencyKind = "prerequisite"
	DependencySoftPrerequisite DependencyKind = "soft_prerequisite"
	DependencyResourceShared   DependencyKind = "resource_shared"
	DependencyTemporal         DependencyKind = "temporal"
)

// DependencyRef is a declared reference from one task to another.
// Optional references to absent targets are ignored rather than reported
// as validation errors.
type DependencyRef struct {
	TaskID   string         `json:"taskId" yaml:"taskId" validate:"required"`
	Kind     DependencyKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Optional bool           `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ResourceDemand maps a named resource (cpu, memory, network, ...) to the
// number of units a task requires.
type ResourceDemand map[string]float64

// Clone returns a copy of the demand vector.
func (r ResourceDemand) Clone() ResourceDemand {
	if r == nil {
		return nil
	}
	out := make(ResourceDemand, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Names returns the resource names in sorted order.
func (r ResourceDemand) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ExecutionRecord captures one observed attempt at running a task.
type ExecutionRecord struct {
	StartedAt time.Time      `json:"startedAt" yaml:"startedAt"`
	EndedAt   time.Time      `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
	Duration  time.Duration  `json:"duration" yaml:"duration"`
	Success   bool           `json:"success" yaml:"success"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Resources ResourceDemand `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// DefaultEstimatedDuration is assumed when a descriptor omits an estimate.
const DefaultEstimatedDuration = time.Minute

// Task is a unit of schedulable work. The engine never mutates a task's
// semantic fields; only recorded history and derived caches change.
type Task struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Title       string   `json:"title" yaml:"title" validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category `json:"category,omitempty" yaml:"category,omitempty"`
	Priority    Priority `json:"priority" yaml:"priority" validate:"required"`
	Status      Status   `json:"status" yaml:"status"`

	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`

	EstimatedDuration time.Duration `json:"estimatedDuration,omitempty" yaml:"estimatedDuration,omitempty"`

	Capabilities []string        `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Resources    ResourceDemand  `json:"resourceRequirements,omitempty" yaml:"resourceRequirements,omitempty"`
	Dependencies []DependencyRef `json:"dependencies" yaml:"dependencies"`
	Tags         []string        `json:"tags,omitempty" yaml:"tags,omitempty"`

	RetryCount int               `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`
	LastError  string            `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	History    []ExecutionRecord `json:"executionHistory,omitempty" yaml:"executionHistory,omitempty"`

	// Extra preserves unknown descriptor fields verbatim.
	Extra map[string]any `json:"-" yaml:"-"`
}

// EffectiveDuration returns the estimated duration, falling back to the
// default when the descriptor omitted one.
func (t *Task) EffectiveDuration() time.Duration {
	if t.EstimatedDuration > 0 {
		return t.EstimatedDuration
	}
	return DefaultEstimatedDuration
}

// Age returns how long the task has existed relative to now.
func (t *Task) Age(now time.Time) time.Duration {
	if t.CreatedAt.IsZero() || now.Before(t.CreatedAt) {
		return 0
	}
	return now.Sub(t.CreatedAt)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := *t
	if t.Deadline != nil {
		d := *t.Deadline
		clone.Deadline = &d
	}
	clone.Capabilities = append([]string(nil), t.Capabilities...)
	clone.Tags = append([]string(nil), t.Tags...)
	clone.Resources = t.Resources.Clone()
	clone.Dependencies = append([]DependencyRef(nil), t.Dependencies...)
	if t.History != nil {
		clone.History = make([]ExecutionRecord, len(t.History))
		for i, rec := range t.History {
			rec.Resources = rec.Resources.Clone()
			clone.History[i] = rec
		}
	}
	if t.Extra != nil {
		clone.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// SuccessRate computes the historical success fraction, defaulting to 1.0
// when there is no history.
func (t *Task) SuccessRate() float64 {
	if len(t.History) == 0 {
		return 1.0
	}
	ok := 0
	for _, rec := range t.History {
		if rec.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(t.History))
}

// SortTasksByID sorts tasks in place by id for deterministic iteration.
func SortTasksByID(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}
